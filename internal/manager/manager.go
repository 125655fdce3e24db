// Package manager ties the write path together: it owns the one live WAL
// and the set of registered sorted tables, routes appends and point lookups,
// rotates a full WAL into a new table, and merges overlapping tables on
// request. It is the single-writer core: nothing here is safe for
// concurrent use, and the embedder serializes access.
package manager

import (
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/chunk"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/internal/sst"
	"github.com/iamNilotpal/ember/internal/storage"
	"github.com/iamNilotpal/ember/internal/wal"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/options"
)

// Config carries the dependencies a Manager needs.
type Config[K any] struct {
	Kind    data.Kind[K]
	Logger  *zap.SugaredLogger
	Options *options.Options
}

// TableInfo describes one registered table for embedders deciding what to
// compact.
type TableInfo[K any] struct {
	ID      string
	Path    string
	Level   uint8
	Chunks  int
	Records int64
	First   K
	Last    K
}

// Manager owns the WAL and every registered table index, plus the global
// key range across tables that lets lookups skip the table scan entirely.
// Tables are kept oldest-first: reverse iteration sees the newest data
// first, which is what makes overlapping tables resolve to the latest write.
type Manager[K any] struct {
	kind data.Kind[K]
	log  *zap.SugaredLogger
	opts *options.Options

	store  *storage.Manager
	wal    *wal.Wal[K]
	tables []*sst.Index[K]

	first    K
	last     K
	hasRange bool
}

// Open builds a manager over the configured data directory, running the
// startup recovery scan (see recover) before accepting any operation.
func Open[K any](cfg *Config[K]) (*Manager[K], error) {
	if cfg == nil || cfg.Kind == nil || cfg.Logger == nil || cfg.Options == nil {
		return nil, errors.NewRequiredFieldError("config")
	}

	store, err := storage.Open(&storage.Config{Logger: cfg.Logger, Dir: cfg.Options.DataDir})
	if err != nil {
		return nil, err
	}

	m := &Manager[K]{
		kind:  cfg.Kind,
		log:   cfg.Logger,
		opts:  cfg.Options,
		store: store,
	}

	if err := m.recover(); err != nil {
		// Recovery may have opened the WAL or some tables before failing.
		_ = m.Close()
		return nil, err
	}

	return m, nil
}

// Append routes one record to the WAL. A WAL that reports itself full is
// rotated into a new table before Append returns; the caller only ever
// sees success or a real error.
func (m *Manager[K]) Append(rec data.Record[K]) error {
	if _, err := m.wal.Append(rec); err != nil {
		if stdErrors.Is(err, wal.ErrTableFull) {
			return m.rotate()
		}
		return err
	}
	return nil
}

// rotate persists the WAL into a freshly minted table file and registers
// the result. An empty WAL is a no-op: the minted file is removed again.
func (m *Manager[K]) rotate() error {
	f, path, err := m.store.NewFile(storage.ExtSst)
	if err != nil {
		return err
	}

	n, err := m.wal.Persist(f)
	if err != nil {
		_ = f.Close()
		if stdErrors.Is(err, wal.ErrEmptyWal) {
			return m.store.Remove(path)
		}
		// The destination contents are unspecified; recovery prunes it if
		// empty, otherwise it is left for the operator. The WAL keeps its
		// records either way.
		return err
	}

	if err := f.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close persisted table").
			WithPath(path)
	}

	idx, err := m.openTable(path)
	if err != nil {
		return err
	}

	m.tables = append(m.tables, idx)
	m.extendRange(idx)

	m.log.Infow("Rotated WAL into table",
		"table", idx.ID(), "path", path, "bytes", n,
		"chunks", idx.Chunks(), "records", idx.RecordCount(), "tables", len(m.tables))
	return nil
}

// Flush force-rotates the WAL into a table. A WAL with no records is a
// successful no-op.
func (m *Manager[K]) Flush() error {
	return m.rotate()
}

// Find returns the newest record for the key: the WAL first, then, when
// the key falls inside the global range, registered tables newest-first,
// delegating to each covering table until one holds the key. Tombstones
// are records like any other here; interpreting a Delete as absence is the
// host layer's concern.
func (m *Manager[K]) Find(key K) (data.Record[K], bool, error) {
	var zero data.Record[K]

	if rec, ok := m.wal.Find(key); ok {
		return rec, true, nil
	}

	if len(m.tables) == 0 || !m.hasRange {
		return zero, false, nil
	}
	if m.kind.Compare(key, m.first) < 0 || m.kind.Compare(key, m.last) > 0 {
		return zero, false, nil
	}

	for i := len(m.tables) - 1; i >= 0; i-- {
		t := m.tables[i]
		if !t.IsBetween(key) {
			continue
		}

		rec, ok, err := t.Find(key)
		if err != nil {
			m.log.Errorw("Table lookup failed", "table", t.ID(), "error", err)
			return zero, false, err
		}
		if ok {
			return rec, true, nil
		}
	}

	return zero, false, nil
}

// Compact merges the two named tables into one new table: a key-sorted
// union in which the newer table wins every key collision. The output
// carries level max(inputs)+1, the inputs are deregistered and their files
// deleted. Choosing which tables to merge, and when, is the embedder's
// policy, not the engine's.
func (m *Manager[K]) Compact(aID, bID string) error {
	ai := m.tablePosition(aID)
	if ai < 0 {
		return notRegistered(aID)
	}
	bi := m.tablePosition(bID)
	if bi < 0 {
		return notRegistered(bID)
	}
	if ai == bi {
		return errors.NewValidationError(nil, errors.ErrorCodeInvalidInput,
			"compaction needs two distinct tables").
			WithField("tableID").WithProvided(aID)
	}

	// Registration order is age order: the higher position holds newer data
	// and wins key collisions in the merge.
	lo, hi := ai, bi
	if lo > hi {
		lo, hi = hi, lo
	}
	older, newer := m.tables[lo], m.tables[hi]

	olderRecs, err := older.Records()
	if err != nil {
		return err
	}
	newerRecs, err := newer.Records()
	if err != nil {
		return err
	}
	merged := data.MergeRecords(m.kind, olderRecs, newerRecs)

	chunks, err := m.buildChunks(merged)
	if err != nil {
		return err
	}

	level := older.Level()
	if newer.Level() > level {
		level = newer.Level()
	}
	level++

	f, path, err := m.store.NewFile(storage.ExtSst)
	if err != nil {
		return err
	}

	if _, err := sst.Write(f, &sst.WriteConfig[K]{
		Kind:   m.kind,
		ID:     uuid.NewString(),
		Level:  level,
		Size:   m.opts.WalOptions.MaxSize,
		Chunks: chunks,
	}); err != nil {
		_ = f.Close()
		_ = m.store.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close compacted table").
			WithPath(path)
	}

	idx, err := m.openTable(path)
	if err != nil {
		return err
	}

	olderID, newerID := older.ID(), newer.ID()
	olderPath, newerPath := older.Path(), newer.Path()
	closeErr := multierr.Append(older.Close(), newer.Close())

	// Deregister both inputs and slot the merged table where the older one
	// sat, so every table registered after the inputs keeps shadowing it.
	rebuilt := make([]*sst.Index[K], 0, len(m.tables)-1)
	for i, t := range m.tables {
		switch i {
		case lo:
			rebuilt = append(rebuilt, idx)
		case hi:
			// dropped
		default:
			rebuilt = append(rebuilt, t)
		}
	}
	m.tables = rebuilt
	m.recomputeRange()

	removeErr := multierr.Append(m.store.Remove(olderPath), m.store.Remove(newerPath))

	m.log.Infow("Compacted tables",
		"older", olderID, "newer", newerID, "table", idx.ID(),
		"level", level, "records", idx.RecordCount(), "tables", len(m.tables))

	return multierr.Append(closeErr, removeErr)
}

// buildChunks packs a sorted record run into sealed, pre-sized chunks.
func (m *Manager[K]) buildChunks(records []data.Record[K]) ([]*chunk.Chunk[K], error) {
	capacity := m.opts.WalOptions.ChunkCapacity

	var chunks []*chunk.Chunk[K]
	cur := chunk.New(m.kind, capacity)

	seal := func() error {
		if cur.Empty() {
			return nil
		}
		if _, err := cur.ComputeSize(true); err != nil {
			return err
		}
		chunks = append(chunks, cur)
		cur = chunk.New(m.kind, capacity)
		return nil
	}

	for _, rec := range records {
		if err := cur.Append(rec); err != nil {
			return nil, err
		}
		if cur.Full() {
			if err := seal(); err != nil {
				return nil, err
			}
		}
	}
	if err := seal(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// Tables describes every registered table, oldest first.
func (m *Manager[K]) Tables() []TableInfo[K] {
	infos := make([]TableInfo[K], 0, len(m.tables))
	for _, t := range m.tables {
		infos = append(infos, TableInfo[K]{
			ID:      t.ID(),
			Path:    t.Path(),
			Level:   t.Level(),
			Chunks:  t.Chunks(),
			Records: t.RecordCount(),
			First:   t.First(),
			Last:    t.Last(),
		})
	}
	return infos
}

// WalRecordCount reports how many records the live WAL holds.
func (m *Manager[K]) WalRecordCount() int { return m.wal.RecordCount() }

// WalChunkCount reports how many sealed chunks the live WAL holds.
func (m *Manager[K]) WalChunkCount() int { return m.wal.ChunkCount() }

// Close releases the WAL and every table index.
func (m *Manager[K]) Close() error {
	var err error
	if m.wal != nil {
		err = multierr.Append(err, m.wal.Close())
		m.wal = nil
	}
	for _, t := range m.tables {
		err = multierr.Append(err, t.Close())
	}
	m.tables = nil
	return err
}

func (m *Manager[K]) tablePosition(id string) int {
	for i, t := range m.tables {
		if t.ID() == id {
			return i
		}
	}
	return -1
}

func (m *Manager[K]) openTable(path string) (*sst.Index[K], error) {
	return sst.Open(&sst.Config[K]{
		Kind:                   m.kind,
		Logger:                 m.log,
		Path:                   path,
		BloomFilter:            m.opts.TableOptions.BloomFilter,
		BloomFalsePositiveRate: m.opts.TableOptions.BloomFalsePositiveRate,
	})
}

func (m *Manager[K]) extendRange(idx *sst.Index[K]) {
	if !m.hasRange {
		m.first, m.last = idx.First(), idx.Last()
		m.hasRange = true
		return
	}
	if m.kind.Compare(idx.First(), m.first) < 0 {
		m.first = idx.First()
	}
	if m.kind.Compare(idx.Last(), m.last) > 0 {
		m.last = idx.Last()
	}
}

func (m *Manager[K]) recomputeRange() {
	m.hasRange = false
	var zero K
	m.first, m.last = zero, zero

	for _, t := range m.tables {
		m.extendRange(t)
	}
}

func notRegistered(id string) error {
	return errors.NewTableError(nil, errors.ErrorCodeIDNotFound,
		fmt.Sprintf("table %q is not registered", id)).
		WithTableID(id).
		WithOperation("compact")
}
