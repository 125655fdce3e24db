// Package sst implements the immutable sorted-table format: the writer
// that materializes a set of sealed chunks as one fixed-size table file,
// and the memory-mapped index that answers point lookups against it.
//
// File layout (all integers little-endian):
//
//	metadata   : shared Meta block, table tag = Index, count = chunks
//	level      : 1
//	index      : count × ( offset:8 | first_key | last_key )
//	padding    : zero-filled
//	chunks     : laid out descending from the end of the file
//
// Chunks occupy the high addresses: the writer seeks to the end of the
// reserved file and steps back chunk.Size() bytes per chunk, so it can lay
// out a variable number of variable-size chunks without knowing their total
// in advance while keeping the metadata and index at offset zero for cheap
// reads. Index entries are emitted in chunk order, oldest first, so a
// reader walking entries in reverse sees the newest data first.
package sst

import (
	"io"
	"os"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/chunk"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// WriteConfig carries everything needed to materialize one table.
type WriteConfig[K any] struct {
	Kind data.Kind[K]

	// ID becomes the table's identity in its header. One ASCII UUID.
	ID string

	// Level is the compaction generation recorded in the header: zero for
	// tables persisted straight from the WAL, max(inputs)+1 for merged ones.
	Level uint8

	// Size is the fixed total file size: the WAL size tier.
	Size int64

	// Chunks are the sealed chunks to lay out, oldest first. Every chunk
	// must be non-empty with a computed size.
	Chunks []*chunk.Chunk[K]
}

// Write materializes the table into f, which is truncated to exactly
// cfg.Size bytes. On success the file is synced and the total size is
// returned; on error the file contents are unspecified and the caller
// decides whether to keep the orphan.
func Write[K any](f *os.File, cfg *WriteConfig[K]) (int64, error) {
	if len(cfg.Chunks) == 0 {
		return 0, errors.NewValidationError(nil, errors.ErrorCodeInternal, "cannot write a table with no chunks").
			WithField("chunks").WithRule("non_empty")
	}
	if len(cfg.ID) != chunk.IDSize {
		return 0, errors.NewValidationError(nil, errors.ErrorCodeInternal, "table id is not a 36-byte UUID").
			WithField("id").WithProvided(cfg.ID)
	}

	kind := cfg.Kind

	// Aggregate the key range and validate chunk sizes up front; an unsized
	// chunk here is a programming error, not an I/O condition.
	var first, last K
	var chunkTotal int64
	for i, ch := range cfg.Chunks {
		if ch.Size() == 0 {
			return 0, errors.NewStorageError(nil, errors.ErrorCodeUnknownChunkSize,
				"chunk reached the table writer without a computed size").
				WithTableID(cfg.ID).
				WithDetail("chunk", ch.ID())
		}
		chunkTotal += int64(ch.Size())

		if i == 0 {
			first, last = ch.First(), ch.Last()
			continue
		}
		if kind.Compare(ch.First(), first) < 0 {
			first = ch.First()
		}
		if kind.Compare(ch.Last(), last) > 0 {
			last = ch.Last()
		}
	}

	meta := chunk.Meta[K]{
		Table: chunk.TableIndex,
		ID:    cfg.ID,
		Count: uint64(len(cfg.Chunks)),
		First: first,
		Last:  last,
	}

	indexSize := 0
	for _, ch := range cfg.Chunks {
		indexSize += 8 + kind.KeySize(ch.First()) + kind.KeySize(ch.Last())
	}
	headerEnd := int64(meta.WireSize(kind)) + 1 + int64(indexSize)

	// The chunk region grows downward from the end; refuse to let it reach
	// into the header and index region.
	lowest := cfg.Size - chunkTotal
	if lowest < headerEnd {
		return 0, errors.NewStorageError(nil, errors.ErrorCodeInternal,
			"table contents do not fit the configured size tier").
			WithTableID(cfg.ID).
			WithDetail("sizeTier", cfg.Size).
			WithDetail("chunkBytes", chunkTotal).
			WithDetail("headerBytes", headerEnd)
	}

	if err := f.Truncate(cfg.Size); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to reserve table file").
			WithTableID(cfg.ID).WithFileName(f.Name())
	}

	h := bio.NewFile(f)

	// Chunks first, high to low.
	offsets := make([]uint64, len(cfg.Chunks))
	pos := cfg.Size
	for i, ch := range cfg.Chunks {
		pos -= int64(ch.Size())
		offsets[i] = uint64(pos)

		if _, err := h.Seek(pos, io.SeekStart); err != nil {
			return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to chunk position").
				WithTableID(cfg.ID).WithOffset(pos)
		}

		n, err := ch.Write(h, true)
		if err != nil {
			return 0, err
		}
		if uint64(n) != ch.Size() {
			return 0, errors.NewStorageError(nil, errors.ErrorCodeInternal,
				"chunk serialization size changed between sizing and writing").
				WithTableID(cfg.ID).
				WithDetail("chunk", ch.ID()).
				WithDetail("sized", ch.Size()).
				WithDetail("written", n)
		}
	}

	// Header and sparse index at offset zero.
	if _, err := h.Seek(0, io.SeekStart); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to table header").
			WithTableID(cfg.ID)
	}
	if _, err := meta.Write(h, kind); err != nil {
		return 0, err
	}
	if err := bio.WriteU8(h, cfg.Level); err != nil {
		return 0, err
	}
	for i, ch := range cfg.Chunks {
		if err := bio.WriteU64(h, offsets[i]); err != nil {
			return 0, err
		}
		if err := kind.WriteKey(h, ch.First()); err != nil {
			return 0, err
		}
		if err := kind.WriteKey(h, ch.Last()); err != nil {
			return 0, err
		}
	}

	if err := f.Sync(); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to sync table file").
			WithTableID(cfg.ID).WithFileName(f.Name())
	}

	return cfg.Size, nil
}
