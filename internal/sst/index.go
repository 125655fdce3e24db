package sst

import (
	"io"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/chunk"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// Entry mirrors one sparse-index slot: where a chunk starts and the key
// range it covers. Entries keep the writer's chunk order, oldest first.
type Entry[K any] struct {
	Offset uint64
	First  K
	Last   K
}

// Config carries the dependencies an Index needs.
type Config[K any] struct {
	Kind   data.Kind[K]
	Logger *zap.SugaredLogger

	// Path of the table file to open.
	Path string

	// BloomFilter enables the in-memory key filter. Building it reads every
	// chunk once at open time; lookups then skip the file entirely for most
	// absent keys. The filter is never persisted.
	BloomFilter bool

	// BloomFalsePositiveRate is the filter's target false-positive rate.
	BloomFalsePositiveRate float64
}

// Index is the in-memory mirror of one table: its header, its sparse index
// entries, an open read-only mapping of the file, and optionally a bloom
// filter over its record keys. The Index exclusively owns the file handle
// and the mapping; Close releases both and is safe to call repeatedly.
type Index[K any] struct {
	kind data.Kind[K]
	log  *zap.SugaredLogger

	path string
	file *os.File
	mm   *bio.Mmap
	size int64

	id      string
	level   uint8
	first   K
	last    K
	entries []Entry[K]
	records int64

	filter *bloom.BloomFilter
	closed bool
}

// Open memory-maps the table read-only and loads its header and sparse
// index. The mapping and file handle are released on every failure path.
func Open[K any](cfg *Config[K]) (*Index[K], error) {
	if cfg == nil || cfg.Kind == nil || cfg.Logger == nil || cfg.Path == "" {
		return nil, errors.NewRequiredFieldError("config")
	}

	file, err := os.OpenFile(cfg.Path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, cfg.Path, "")
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat table file").
			WithPath(cfg.Path)
	}

	mm, err := bio.OpenMmap(file, stat.Size(), false)
	if err != nil {
		_ = file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to map table file").
			WithPath(cfg.Path)
	}

	idx := &Index[K]{
		kind: cfg.Kind,
		log:  cfg.Logger,
		path: cfg.Path,
		file: file,
		mm:   mm,
		size: stat.Size(),
	}

	if err := idx.load(); err != nil {
		_ = idx.Close()
		return nil, err
	}

	if cfg.BloomFilter {
		if err := idx.buildFilter(cfg.BloomFalsePositiveRate); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}

	return idx, nil
}

// load parses the header and index entries out of the mapping.
func (idx *Index[K]) load() error {
	h := idx.mm.Handle()

	meta, _, err := chunk.ReadMeta(h, idx.kind)
	if err != nil {
		return err
	}
	if meta.Table != chunk.TableIndex {
		return errors.NewStorageError(nil, errors.ErrorCodeCorrupt, "file header does not describe a table").
			WithPath(idx.path).
			WithDetail("table", byte(meta.Table))
	}

	level, err := bio.ReadU8(h)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read table level").
			WithPath(idx.path)
	}

	entries := make([]Entry[K], 0, meta.Count)
	for i := uint64(0); i < meta.Count; i++ {
		offset, err := bio.ReadU64(h)
		if err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read index entry offset").
				WithPath(idx.path)
		}
		if offset >= uint64(idx.size) {
			return errors.NewStorageError(nil, errors.ErrorCodeCorrupt, "index entry offset beyond file end").
				WithPath(idx.path).
				WithDetail("entry", i).
				WithDetail("offset", offset)
		}

		first, err := idx.kind.ReadKey(h)
		if err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read index entry first key").
				WithPath(idx.path)
		}
		last, err := idx.kind.ReadKey(h)
		if err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read index entry last key").
				WithPath(idx.path)
		}

		entries = append(entries, Entry[K]{Offset: offset, First: first, Last: last})
	}

	// Record count comes from the chunk metadata blocks; reading just the
	// metas avoids decoding record bodies.
	var records int64
	for i := range entries {
		ch := bio.NewFixedBuffer(idx.mm.Bytes())
		if _, err := ch.Seek(int64(entries[i].Offset), io.SeekStart); err != nil {
			return err
		}
		m, _, err := chunk.ReadMeta(ch, idx.kind)
		if err != nil {
			return err
		}
		records += int64(m.Count)
	}

	idx.id = meta.ID
	idx.level = level
	idx.first = meta.First
	idx.last = meta.Last
	idx.entries = entries
	idx.records = records
	return nil
}

// buildFilter seeds the bloom filter with every record key in the table.
func (idx *Index[K]) buildFilter(falsePositiveRate float64) error {
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	capacity := uint(idx.records)
	if capacity == 0 {
		capacity = 1
	}

	filter := bloom.NewWithEstimates(capacity, falsePositiveRate)
	for i := range idx.entries {
		ch, err := idx.readChunk(i)
		if err != nil {
			return err
		}
		for _, rec := range ch.Records() {
			filter.Add(idx.kind.KeyBytes(rec.Key))
		}
	}

	idx.filter = filter
	return nil
}

// readChunk demand-reads the i-th chunk out of the mapping.
func (idx *Index[K]) readChunk(i int) (*chunk.Chunk[K], error) {
	h := idx.mm.Handle()
	if _, err := h.Seek(int64(idx.entries[i].Offset), io.SeekStart); err != nil {
		return nil, err
	}

	ch, err := chunk.Read(h, idx.kind, true)
	if err != nil {
		return nil, errors.NewTableError(err, errors.ErrorCodeCorrupt, "failed to read table chunk").
			WithTableID(idx.id).
			WithOperation("read_chunk").
			WithDetail("offset", idx.entries[i].Offset)
	}
	return ch, nil
}

// ID returns the table's UUID identity.
func (idx *Index[K]) ID() string { return idx.id }

// Level returns the compaction generation recorded in the header.
func (idx *Index[K]) Level() uint8 { return idx.level }

// Path returns the table file path.
func (idx *Index[K]) Path() string { return idx.path }

// First returns the smallest key in the table.
func (idx *Index[K]) First() K { return idx.first }

// Last returns the largest key in the table.
func (idx *Index[K]) Last() K { return idx.last }

// Chunks reports how many chunks the table holds.
func (idx *Index[K]) Chunks() int { return len(idx.entries) }

// RecordCount reports how many records the table holds, duplicates included.
func (idx *Index[K]) RecordCount() int64 { return idx.records }

// IsBetween reports whether the key falls inside the table's key range.
func (idx *Index[K]) IsBetween(key K) bool {
	return idx.kind.Compare(idx.first, key) <= 0 && idx.kind.Compare(key, idx.last) <= 0
}

// Find answers a point lookup. It screens with the key range and the bloom
// filter, then walks covering index entries newest-chunk-first, demand-reads
// each candidate chunk from the mapping, and binary-searches inside it.
// Chunks within one table may overlap (they mirror WAL arrival batches), so
// the newest covering chunk that holds the key wins.
func (idx *Index[K]) Find(key K) (data.Record[K], bool, error) {
	var zero data.Record[K]

	if idx.closed {
		return zero, false, errors.NewTableError(nil, errors.ErrorCodeInternal, "table is closed").
			WithTableID(idx.id).WithOperation("find")
	}
	if !idx.IsBetween(key) {
		return zero, false, nil
	}
	if idx.filter != nil && !idx.filter.Test(idx.kind.KeyBytes(key)) {
		return zero, false, nil
	}

	for i := len(idx.entries) - 1; i >= 0; i-- {
		e := &idx.entries[i]
		if idx.kind.Compare(e.First, key) > 0 || idx.kind.Compare(key, e.Last) > 0 {
			continue
		}

		ch, err := idx.readChunk(i)
		if err != nil {
			return zero, false, err
		}
		if rec, ok := ch.Find(key); ok {
			return rec, true, nil
		}
	}

	return zero, false, nil
}

// Records returns the table's live contents: one record per key, newest
// wins, sorted ascending by key. This is the record set compaction merges.
func (idx *Index[K]) Records() ([]data.Record[K], error) {
	if idx.closed {
		return nil, errors.NewTableError(nil, errors.ErrorCodeInternal, "table is closed").
			WithTableID(idx.id).WithOperation("records")
	}

	var merged []data.Record[K]
	for i := range idx.entries {
		ch, err := idx.readChunk(i)
		if err != nil {
			return nil, err
		}
		// Chunks are visited oldest to newest, so the chunk being merged in
		// always wins collisions against what came before.
		merged = data.MergeRecords(idx.kind, merged, data.DedupeSorted(idx.kind, ch.Records()))
	}
	return merged, nil
}

// Pointers yields the table's live index slots in ascending key order.
func (idx *Index[K]) Pointers() ([]data.Pointer[K], error) {
	records, err := idx.Records()
	if err != nil {
		return nil, err
	}

	pointers := make([]data.Pointer[K], 0, len(records))
	for _, rec := range records {
		pointers = append(pointers, data.PointerTo(rec))
	}
	return pointers, nil
}

// ReadValue resolves a pointer obtained from this table back to its record.
func (idx *Index[K]) ReadValue(p data.Pointer[K]) (data.Record[K], error) {
	if idx.closed {
		return data.Record[K]{}, errors.NewTableError(nil, errors.ErrorCodeInternal, "table is closed").
			WithTableID(idx.id).WithOperation("read_value")
	}
	return p.ReadValue(idx.mm.Handle(), idx.kind)
}

// Close releases the mapping and the file handle. Idempotent.
func (idx *Index[K]) Close() error {
	if idx.closed {
		return nil
	}
	idx.closed = true

	var err error
	if idx.mm != nil {
		err = multierr.Append(err, idx.mm.Close())
	}
	if idx.file != nil {
		err = multierr.Append(err, idx.file.Close())
	}
	return err
}
