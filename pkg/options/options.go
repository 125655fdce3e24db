// Package options provides data structures and functions for configuring
// the Ember storage engine. It defines the parameters that control the
// write path and on-disk layout: directory paths, the WAL size tier that
// bounds every sorted table, chunk capacity, and durability behavior.
package options

import (
	"strings"
)

// Defines configurable parameters for the write-ahead log.
// The WAL size tier doubles as the fixed size of every sorted table the
// WAL is persisted into, so it is the single most important sizing knob.
type walOptions struct {
	// Defines the size tier of the WAL in bytes. When the accumulated data
	// would no longer fit into a table of this size, the WAL is persisted
	// as a sorted table of exactly this many bytes and starts over.
	//
	//  - Default: 128MB
	//  - Minimum: 512 bytes (tiny tiers exist for tests)
	MaxSize int64 `json:"maxSize"`

	// Defines how many records an in-memory chunk holds before it is
	// sealed, checksummed and appended to the log file. Smaller chunks
	// bound the loss window of the raw side journal; larger chunks
	// amortize the per-chunk metadata.
	//
	// Default: 256
	ChunkCapacity int `json:"chunkCapacity"`

	// Controls whether the side journal is fsynced after every accepted
	// record. Disabling trades crash durability of the in-progress chunk
	// for write throughput.
	//
	// Default: true
	SyncOnAppend bool `json:"syncOnAppend"`
}

// Defines configurable parameters for sorted-table readers.
type tableOptions struct {
	// Controls whether each opened table builds an in-memory bloom filter
	// over its record keys. The filter is never persisted; it screens
	// point lookups before any chunk is touched.
	//
	// Default: true
	BloomFilter bool `json:"bloomFilter"`

	// Target false-positive rate for the bloom filter.
	//
	// Default: 0.01
	BloomFalsePositiveRate float64 `json:"bloomFalsePositiveRate"`
}

// Defines the configuration parameters for an Ember engine instance.
type Options struct {
	// Specifies the directory holding every engine file: the WAL, its
	// side journal, and the sorted tables. The directory is treated as
	// exclusively owned by one engine instance.
	//
	// Default: "/var/lib/emberdb"
	DataDir string `json:"dataDir"`

	// Configures the write-ahead log: size tier, chunk capacity, durability.
	WalOptions *walOptions `json:"walOptions"`

	// Configures sorted-table readers.
	TableOptions *tableOptions `json:"tableOptions"`
}

// OptionFunc is a function type that modifies the engine configuration.
type OptionFunc func(*Options)

// WithDataDir sets the data directory for the engine.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithWalMaxSize selects the WAL size tier. Every sorted table produced by
// this engine will be exactly this many bytes. Values below the minimum are
// ignored.
func WithWalMaxSize(size int64) OptionFunc {
	return func(o *Options) {
		if size >= MinWalMaxSize {
			o.WalOptions.MaxSize = size
		}
	}
}

// WithChunkCapacity sets how many records an in-memory chunk holds before
// it is sealed. Non-positive values are ignored.
func WithChunkCapacity(capacity int) OptionFunc {
	return func(o *Options) {
		if capacity > 0 {
			o.WalOptions.ChunkCapacity = capacity
		}
	}
}

// WithSyncOnAppend controls whether the side journal is fsynced on every
// accepted record.
func WithSyncOnAppend(sync bool) OptionFunc {
	return func(o *Options) {
		o.WalOptions.SyncOnAppend = sync
	}
}

// WithBloomFilter controls whether opened tables build an in-memory bloom
// filter over their keys.
func WithBloomFilter(enabled bool) OptionFunc {
	return func(o *Options) {
		o.TableOptions.BloomFilter = enabled
	}
}
