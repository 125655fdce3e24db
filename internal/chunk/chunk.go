// Package chunk implements the bounded, ordered record batch that is the
// unit of WAL persistence and the building block of sorted tables.
//
// A chunk accepts records in arrival order up to a fixed capacity. Its
// serialized form is sorted: Write stable-sorts by the record order (key,
// then op tag), emits optional metadata and a size word, then each record,
// and finally backpatches the size word once the real footprint is known.
// Read consumes exactly the bytes Write produced. The size word counts
// every byte of the chunk (metadata when present, the word itself, and the
// records), which is what lets the table writer walk a file backwards chunk
// by chunk.
package chunk

import (
	stdErrors "errors"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/pkg/errors"
)

var (
	// ErrChunkFull is returned by Append once the chunk holds its full
	// capacity of records. The append has no partial effect.
	ErrChunkFull = stdErrors.New("chunk: full")
)

// Chunk is a bounded batch of records plus its metadata. The zero value is
// not usable; construct with New or Read.
type Chunk[K any] struct {
	kind     data.Kind[K]
	meta     Meta[K]
	records  []data.Record[K]
	capacity int
	sorted   bool
}

// New creates an empty chunk with a fresh UUID identity.
func New[K any](kind data.Kind[K], capacity int) *Chunk[K] {
	return &Chunk[K]{
		kind:     kind,
		capacity: capacity,
		meta:     Meta[K]{Table: TableWal, ID: uuid.NewString()},
		records:  make([]data.Record[K], 0, capacity),
	}
}

// Append adds a record in arrival order. Returns ErrChunkFull when the
// chunk already holds its capacity; the chunk is left unchanged.
func (c *Chunk[K]) Append(r data.Record[K]) error {
	if len(c.records) >= c.capacity {
		return ErrChunkFull
	}

	c.records = append(c.records, r)
	c.meta.Count = uint64(len(c.records))

	// Any cached size describes the previous record set.
	c.meta.Size = 0
	c.sorted = false
	return nil
}

// Len reports the number of records held.
func (c *Chunk[K]) Len() int { return len(c.records) }

// Empty reports whether the chunk holds no records.
func (c *Chunk[K]) Empty() bool { return len(c.records) == 0 }

// Full reports whether the chunk reached its capacity.
func (c *Chunk[K]) Full() bool { return len(c.records) >= c.capacity }

// ID returns the chunk's UUID identity.
func (c *Chunk[K]) ID() string { return c.meta.ID }

// Size returns the cached on-disk footprint in bytes, or zero when no
// serialization has computed it yet.
func (c *Chunk[K]) Size() uint64 { return c.meta.Size }

// First returns the smallest key. Only meaningful on a non-empty chunk;
// sorts on demand.
func (c *Chunk[K]) First() K {
	c.sort()
	return c.meta.First
}

// Last returns the largest key. Only meaningful on a non-empty chunk;
// sorts on demand.
func (c *Chunk[K]) Last() K {
	c.sort()
	return c.meta.Last
}

// Records exposes the held records. The slice is borrowed: callers must
// not append to it. Order is arrival order until the first sort, sorted
// afterwards.
func (c *Chunk[K]) Records() []data.Record[K] { return c.records }

func (c *Chunk[K]) sort() {
	if c.sorted || len(c.records) == 0 {
		return
	}

	// Stable keeps arrival order among equal (key, op) pairs, so the last
	// record for a key stays last and lookups resolve to the newest write.
	sort.SliceStable(c.records, func(i, j int) bool {
		return data.CompareRecords(c.kind, c.records[i], c.records[j]) < 0
	})

	c.meta.First = c.records[0].Key
	c.meta.Last = c.records[len(c.records)-1].Key
	c.sorted = true
}

// Write serializes the chunk at the handle's current position:
//
//	[metadata]   when withMeta (see Meta)
//	size : 8     total chunk bytes, including this word and any metadata
//	records      count × record serialization, sorted
//
// Records are stamped with their absolute positions in the handle. The
// computed size is cached on the chunk and returned.
func (c *Chunk[K]) Write(h bio.Handle, withMeta bool) (int64, error) {
	if len(c.records) == 0 {
		return 0, errors.NewValidationError(nil, errors.ErrorCodeInternal, "cannot serialize an empty chunk").
			WithField("records").WithRule("non_empty")
	}

	c.sort()

	start, err := h.Pos()
	if err != nil {
		return 0, err
	}

	if withMeta {
		if _, err := c.meta.Write(h, c.kind); err != nil {
			return 0, err
		}
	}

	sizePos, err := h.Pos()
	if err != nil {
		return 0, err
	}
	if err := bio.WriteU64(h, 0); err != nil {
		return 0, err
	}

	for i := range c.records {
		pos, err := h.Pos()
		if err != nil {
			return 0, err
		}
		if _, err := c.records[i].Write(h, c.kind); err != nil {
			return 0, err
		}
		c.records[i].Offset = pos
	}

	end, err := h.Pos()
	if err != nil {
		return 0, err
	}

	// Backpatch the size word now that the real footprint is known.
	size := end - start
	if _, err := h.Seek(sizePos, io.SeekStart); err != nil {
		return 0, err
	}
	if err := bio.WriteU64(h, uint64(size)); err != nil {
		return 0, err
	}
	if _, err := h.Seek(end, io.SeekStart); err != nil {
		return 0, err
	}

	c.meta.Size = uint64(size)
	return size, nil
}

// ComputeSize serializes the chunk into a scratch buffer to learn and cache
// its on-disk footprint without touching any file. Serialization is
// deterministic, so a later Write emits exactly this many bytes.
func (c *Chunk[K]) ComputeSize(withMeta bool) (uint64, error) {
	if c.meta.Size != 0 {
		return c.meta.Size, nil
	}
	if _, err := c.Write(bio.NewBuffer(), withMeta); err != nil {
		return 0, err
	}
	return c.meta.Size, nil
}

// Read is the inverse of Write: it consumes exactly one serialized chunk
// from the handle's current position. Records come back sorted (Write
// sorted them) with their absolute positions stamped.
func Read[K any](h bio.Handle, kind data.Kind[K], withMeta bool) (*Chunk[K], error) {
	start, err := h.Pos()
	if err != nil {
		return nil, err
	}

	c := &Chunk[K]{kind: kind, meta: Meta[K]{Table: TableWal}}

	if withMeta {
		m, _, err := ReadMeta(h, kind)
		if err != nil {
			return nil, err
		}
		if m.Table != TableWal {
			return nil, corrupt(nil, "metadata does not describe a chunk").
				WithDetail("table", byte(m.Table))
		}
		c.meta = m
	} else {
		c.meta.ID = uuid.NewString()
	}

	size, err := bio.ReadU64(h)
	if err != nil {
		return nil, corrupt(err, "failed to read chunk size")
	}

	pos, err := h.Pos()
	if err != nil {
		return nil, err
	}

	consumed := pos - start
	if int64(size) < consumed {
		return nil, corrupt(nil, "chunk size smaller than its own framing").
			WithOffset(start).WithDetail("size", size)
	}

	remaining := int64(size) - consumed
	for remaining > 0 {
		rec, n, err := data.ReadRecord(h, kind)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, corrupt(err, "failed to read chunk record").WithOffset(start)
		}
		if int64(n) > remaining {
			return nil, corrupt(nil, "chunk record overruns chunk size").
				WithOffset(rec.Offset).WithDetail("size", size)
		}
		c.records = append(c.records, rec)
		remaining -= int64(n)
	}

	if withMeta && c.meta.Count != uint64(len(c.records)) {
		return nil, corrupt(nil, "chunk record count does not match metadata").
			WithOffset(start).
			WithDetail("metaCount", c.meta.Count).
			WithDetail("records", len(c.records))
	}

	if len(c.records) == 0 {
		return nil, corrupt(nil, "chunk holds no records").WithOffset(start)
	}

	c.capacity = len(c.records)
	c.meta.Count = uint64(len(c.records))
	c.meta.Size = size
	c.meta.First = c.records[0].Key
	c.meta.Last = c.records[len(c.records)-1].Key
	c.sorted = true

	return c, nil
}

// Find returns the newest record for the key, or false when the key is not
// present. On a sorted chunk this is a binary search resolved to the last
// equal record; on an unsorted (in-progress) chunk it scans backwards so
// the most recent append wins.
func (c *Chunk[K]) Find(key K) (data.Record[K], bool) {
	var zero data.Record[K]

	if len(c.records) == 0 {
		return zero, false
	}

	if !c.sorted {
		for i := len(c.records) - 1; i >= 0; i-- {
			if c.kind.Compare(c.records[i].Key, key) == 0 {
				return c.records[i], true
			}
		}
		return zero, false
	}

	// First index strictly past the key; the candidate sits just before it.
	i := sort.Search(len(c.records), func(i int) bool {
		return c.kind.Compare(c.records[i].Key, key) > 0
	})
	if i == 0 {
		return zero, false
	}
	if c.kind.Compare(c.records[i-1].Key, key) != 0 {
		return zero, false
	}
	return c.records[i-1], true
}
