// Package ember provides an embedded, single-writer key/value store built
// as a Log-Structured Merge tree. Writes land in an in-memory buffer
// protected by a chunked, CRC-checked write-ahead log and are periodically
// flushed as immutable sorted tables; reads consult the buffer first and
// the tables newest-to-oldest. It is designed for hosts that want durable
// local storage with a small API: set, delete, get, plus explicit flush and
// compaction hooks for the embedder's own maintenance policy.
package ember

import (
	"context"
	stdErrors "errors"

	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/internal/engine"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/logger"
	"github.com/iamNilotpal/ember/pkg/options"
)

var (
	// ErrKeyNotFound is returned by Get when the key has never been set or
	// its newest record is a tombstone.
	ErrKeyNotFound = stdErrors.New("ember: key not found")
)

// TableInfo describes one on-disk sorted table. Hosts drive compaction
// from this: pick two overlapping tables and pass their IDs to Compact.
type TableInfo struct {
	ID       string // UUID identity from the table header.
	Path     string // File path inside the data directory.
	Level    uint8  // Compaction generation: 0 fresh from the WAL, max(inputs)+1 after a merge.
	Chunks   int    // Number of chunks laid out in the file.
	Records  int64  // Number of records, duplicates included.
	FirstKey []byte // Smallest key in the table.
	LastKey  []byte // Largest key in the table.
}

// Instance represents one Ember store over one exclusively owned data
// directory. It is the primary entry point for hosts, wrapping the core
// engine with the key/value record shape.
type Instance struct {
	engine  *engine.Engine[[]byte] // The underlying engine handling read/write operations.
	options *options.Options       // Configuration options applied to this instance.
}

// New creates and initializes an Ember instance. The service name labels
// log output; functional options override the defaults.
func New(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	eng, err := engine.New(ctx, &engine.Config[[]byte]{
		Kind:    data.KV,
		Logger:  log,
		Options: &defaultOpts,
	})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// Open creates an instance over the given data directory with default
// settings. Shorthand for New with WithDataDir.
func Open(ctx context.Context, path string, opts ...options.OptionFunc) (*Instance, error) {
	return New(ctx, "ember", append([]options.OptionFunc{options.WithDataDir(path)}, opts...)...)
}

// Set stores a key/value pair. If the key already exists its value is
// replaced. The write is journaled before Set returns, so an accepted Set
// survives a crash.
func (i *Instance) Set(ctx context.Context, key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) > data.MaxValueSize {
		return errors.NewFieldRangeError("value", len(value), 0, data.MaxValueSize)
	}

	return i.engine.Append(ctx, data.Record[[]byte]{
		Op:        data.OpUpsert,
		Key:       cloneBytes(key),
		Value:     cloneBytes(value),
		Timestamp: data.Now(),
		Offset:    -1,
	})
}

// Delete removes a key by writing a tombstone that masks every earlier
// value. Deleting an absent key succeeds.
func (i *Instance) Delete(ctx context.Context, key []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	return i.engine.Append(ctx, data.Record[[]byte]{
		Op:        data.OpDelete,
		Key:       cloneBytes(key),
		Timestamp: data.Now(),
		Offset:    -1,
	})
}

// Get retrieves the newest value for the key, or ErrKeyNotFound when the
// key was never set or was deleted. A Get observes every Set and Delete
// that returned before it.
func (i *Instance) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	rec, ok, err := i.engine.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || rec.Op == data.OpDelete {
		return nil, ErrKeyNotFound
	}
	return rec.Value, nil
}

// Flush force-rotates the write-ahead log into a sorted table. A store
// with no buffered writes flushes successfully without creating a file.
func (i *Instance) Flush(ctx context.Context) error {
	return i.engine.Flush(ctx)
}

// Compact merges the two named tables into one, deleting the inputs. The
// table registered later wins key collisions. Ember never compacts on its
// own: pair this with Tables to implement whatever policy fits the host.
func (i *Instance) Compact(ctx context.Context, aID, bID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.engine.Compact(ctx, aID, bID)
}

// Tables describes every on-disk table, oldest first.
func (i *Instance) Tables() []TableInfo {
	internal := i.engine.Tables()

	infos := make([]TableInfo, 0, len(internal))
	for _, t := range internal {
		infos = append(infos, TableInfo{
			ID:       t.ID,
			Path:     t.Path,
			Level:    t.Level,
			Chunks:   t.Chunks,
			Records:  t.Records,
			FirstKey: cloneBytes(t.First),
			LastKey:  cloneBytes(t.Last),
		})
	}
	return infos
}

// Close shuts the store down, releasing the WAL's file handles and every
// table's mapping. Buffered writes are already durable in the log and the
// side journal; they are replayed on the next open.
func (i *Instance) Close(ctx context.Context) error {
	return i.engine.Close()
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return errors.NewRequiredFieldError("key")
	}
	if len(key) > data.MaxKeySize {
		return errors.NewFieldRangeError("key", len(key), 1, data.MaxKeySize)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
