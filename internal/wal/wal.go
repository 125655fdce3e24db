// Package wal implements the chunked write-ahead log. Accepted records are
// journaled raw to a side file and batched into an in-memory chunk; when
// the chunk seals it is appended to the log file as a CRC-protected frame.
// When the accumulated data reaches the configured size tier, the whole log
// is persisted as one immutable sorted table and starts over.
//
// On-disk forms:
//
//	log file (.wal)      sequence of frames: crc32:4 | chunk (with metadata)
//	side journal (.chk)  raw records of the in-progress chunk, arrival order
//
// The side journal is written before the in-memory append returns, so a
// crash mid-chunk loses nothing: recovery replays the log frames up to the
// first CRC mismatch and the journal up to the first torn record.
package wal

import (
	stdErrors "errors"
	"hash/crc32"
	"os"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/chunk"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/internal/sst"
	"github.com/iamNilotpal/ember/pkg/errors"
)

var (
	// ErrTableFull signals that the WAL reached its size tier. The append
	// that observed it still succeeded (the record is durable), and the
	// caller is expected to persist the WAL into a table before continuing.
	ErrTableFull = stdErrors.New("wal: table full")

	// ErrEmptyWal signals that persistence was requested on a WAL with no
	// records. The manager layer translates it into a successful no-op.
	ErrEmptyWal = stdErrors.New("wal: empty")
)

// crcBytes is the width of a frame's checksum prefix.
const crcBytes = 4

// Config carries the dependencies and tuning of a WAL.
type Config[K any] struct {
	Kind   data.Kind[K]
	Logger *zap.SugaredLogger

	// MaxSize is the size tier: the fixed size of every table this WAL
	// persists into, and the accumulation bound that triggers rotation.
	MaxSize int64

	// ChunkCapacity is the number of records per in-memory chunk.
	ChunkCapacity int

	// SyncOnAppend fsyncs the side journal after every accepted record.
	SyncOnAppend bool

	// LogPath and JournalPath locate the two files the WAL owns. Existing
	// content is replayed on open.
	LogPath     string
	JournalPath string
}

// Wal is the write-ahead log: the sealed chunks already framed into the
// log file, the in-progress chunk mirrored by the side journal, and the
// two file handles it exclusively owns.
type Wal[K any] struct {
	kind data.Kind[K]
	log  *zap.SugaredLogger
	cfg  *Config[K]

	logFile *os.File
	journal *os.File

	current *chunk.Chunk[K]
	closed  []*chunk.Chunk[K]

	// Accounting for the size-tier check: bytes of sealed chunks, the
	// largest sealed chunk seen, and the largest index entry seen.
	dataBytes     int64
	maxChunkBytes int64
	maxEntryBytes int64

	first    K
	last     K
	hasRange bool
}

// Open opens (creating as needed) the log and journal files and replays
// whatever they hold: sealed frames up to the first CRC mismatch, then
// journaled records of the interrupted chunk. A torn or corrupt tail is
// discarded with a warning; everything before it stays queryable.
func Open[K any](cfg *Config[K]) (*Wal[K], error) {
	if cfg == nil || cfg.Kind == nil || cfg.Logger == nil {
		return nil, errors.NewRequiredFieldError("config")
	}
	if cfg.MaxSize <= 0 {
		return nil, errors.NewFieldRangeError("maxSize", cfg.MaxSize, 1, nil)
	}
	if cfg.ChunkCapacity <= 0 {
		return nil, errors.NewFieldRangeError("chunkCapacity", cfg.ChunkCapacity, 1, nil)
	}

	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, cfg.LogPath, "")
	}

	journal, err := os.OpenFile(cfg.JournalPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		_ = logFile.Close()
		return nil, errors.ClassifyFileOpenError(err, cfg.JournalPath, "")
	}

	w := &Wal[K]{
		kind:    cfg.Kind,
		log:     cfg.Logger,
		cfg:     cfg,
		logFile: logFile,
		journal: journal,
		current: chunk.New(cfg.Kind, cfg.ChunkCapacity),
	}

	if err := w.replayLog(); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.replayJournal(); err != nil {
		_ = w.Close()
		return nil, err
	}

	return w, nil
}

// Append accepts one record: journal first, memory second, so durability
// order equals call order. When the in-memory chunk fills it is sealed into
// the log file, and when the accumulated data reaches the size tier the
// append returns ErrTableFull, with the record already persisted.
// On an I/O error the in-memory state is unchanged; the journaled prefix
// is recovered on restart.
func (w *Wal[K]) Append(r data.Record[K]) (int, error) {
	buf := bio.NewBuffer()
	n, err := r.Write(buf, w.kind)
	if err != nil {
		return 0, err
	}

	if _, err := w.journal.Write(buf.Bytes()); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to journal record").
			WithPath(w.cfg.JournalPath)
	}
	if w.cfg.SyncOnAppend {
		if err := w.journal.Sync(); err != nil {
			return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to sync journal").
				WithPath(w.cfg.JournalPath)
		}
	}

	if err := w.current.Append(r); err != nil {
		// The chunk is switched eagerly when it fills, so a full chunk here
		// is a bookkeeping bug, not an operational state.
		return 0, errors.NewStorageError(err, errors.ErrorCodeInternal, "in-memory chunk unexpectedly full")
	}

	w.extendRange(r.Key)

	if w.current.Full() {
		if err := w.switchChunk(); err != nil {
			return 0, err
		}
	}

	if w.full() {
		return n, ErrTableFull
	}
	return n, nil
}

// switchChunk seals the in-progress chunk: serializes it (sorting it in
// the process), frames it into the log file behind a CRC, truncates the
// side journal it mirrors, and starts a fresh chunk.
func (w *Wal[K]) switchChunk() error {
	if w.current.Empty() {
		return nil
	}

	body := bio.NewBuffer()
	if _, err := w.current.Write(body, true); err != nil {
		return err
	}

	frame := bio.NewBuffer()
	if err := bio.WriteU32(frame, crc32.ChecksumIEEE(body.Bytes())); err != nil {
		return err
	}
	if _, err := frame.Write(body.Bytes()); err != nil {
		return err
	}

	if _, err := w.logFile.Write(frame.Bytes()); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append chunk frame").
			WithPath(w.cfg.LogPath)
	}
	if err := w.logFile.Sync(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to sync log").
			WithPath(w.cfg.LogPath)
	}

	w.seal(w.current)

	// The journal's records now live in a durable frame; drop them.
	if err := w.resetJournal(); err != nil {
		return err
	}

	w.current = chunk.New(w.kind, w.cfg.ChunkCapacity)
	return nil
}

// seal registers a sealed chunk in the accounting used by the size-tier
// check and the range used to gate lookups.
func (w *Wal[K]) seal(ch *chunk.Chunk[K]) {
	w.closed = append(w.closed, ch)
	w.dataBytes += int64(ch.Size())

	if int64(ch.Size()) > w.maxChunkBytes {
		w.maxChunkBytes = int64(ch.Size())
	}

	entry := int64(8 + w.kind.KeySize(ch.First()) + w.kind.KeySize(ch.Last()))
	if entry > w.maxEntryBytes {
		w.maxEntryBytes = entry
	}

	w.extendRange(ch.First())
	w.extendRange(ch.Last())
}

func (w *Wal[K]) extendRange(key K) {
	if !w.hasRange {
		w.first, w.last = key, key
		w.hasRange = true
		return
	}
	if w.kind.Compare(key, w.first) < 0 {
		w.first = key
	}
	if w.kind.Compare(key, w.last) > 0 {
		w.last = key
	}
}

// persistedSize projects the exact table footprint of the sealed chunks:
// header, one index entry per chunk, and the chunk bytes.
func (w *Wal[K]) persistedSize() int64 {
	meta := chunk.Meta[K]{Table: chunk.TableIndex, First: w.first, Last: w.last}
	size := int64(meta.WireSize(w.kind)) + 1

	for _, ch := range w.closed {
		size += 8 + int64(w.kind.KeySize(ch.First())) + int64(w.kind.KeySize(ch.Last()))
	}
	return size + w.dataBytes
}

// full reports whether the WAL has reached its size tier. Headroom for one
// more chunk of the largest size seen is reserved, so the chunk sealed
// after the rotation signal still fits the table.
func (w *Wal[K]) full() bool {
	if len(w.closed) == 0 {
		return false
	}
	return w.persistedSize()+w.maxChunkBytes+w.maxEntryBytes >= w.cfg.MaxSize
}

// Full reports whether the next append would be answered with ErrTableFull.
func (w *Wal[K]) Full() bool { return w.full() }

// Find returns the newest record for the key: the in-progress chunk first,
// then sealed chunks newest to oldest.
func (w *Wal[K]) Find(key K) (data.Record[K], bool) {
	if rec, ok := w.current.Find(key); ok {
		return rec, true
	}
	for i := len(w.closed) - 1; i >= 0; i-- {
		if rec, ok := w.closed[i].Find(key); ok {
			return rec, true
		}
	}
	var zero data.Record[K]
	return zero, false
}

// Persist materializes the WAL as one sorted table of exactly the size
// tier into f. The in-progress chunk, if any, is sealed first. On success
// both files are truncated and the WAL starts empty; on failure the WAL
// keeps every record (the in-progress chunk may already be sealed into the
// log) and the destination contents are unspecified. A WAL with no records
// returns ErrEmptyWal and writes nothing.
func (w *Wal[K]) Persist(f *os.File) (int64, error) {
	if !w.current.Empty() {
		if err := w.switchChunk(); err != nil {
			return 0, err
		}
	}
	if len(w.closed) == 0 {
		return 0, ErrEmptyWal
	}

	n, err := sst.Write(f, &sst.WriteConfig[K]{
		Kind:   w.kind,
		ID:     uuid.NewString(),
		Level:  0,
		Size:   w.cfg.MaxSize,
		Chunks: w.closed,
	})
	if err != nil {
		return 0, err
	}

	if err := w.reset(); err != nil {
		return 0, err
	}
	return n, nil
}

// reset returns the WAL to its empty state after a successful persist.
func (w *Wal[K]) reset() error {
	if err := w.logFile.Truncate(0); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to truncate log").
			WithPath(w.cfg.LogPath)
	}
	if _, err := w.logFile.Seek(0, 0); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to rewind log").
			WithPath(w.cfg.LogPath)
	}
	if err := w.resetJournal(); err != nil {
		return err
	}

	w.current = chunk.New(w.kind, w.cfg.ChunkCapacity)
	w.closed = nil
	w.dataBytes = 0
	w.maxChunkBytes = 0
	w.maxEntryBytes = 0
	w.hasRange = false

	var zero K
	w.first, w.last = zero, zero
	return nil
}

func (w *Wal[K]) resetJournal() error {
	if err := w.journal.Truncate(0); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to truncate journal").
			WithPath(w.cfg.JournalPath)
	}
	if _, err := w.journal.Seek(0, 0); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to rewind journal").
			WithPath(w.cfg.JournalPath)
	}
	return nil
}

// ChunkCount reports the number of sealed chunks.
func (w *Wal[K]) ChunkCount() int { return len(w.closed) }

// RecordCount reports the number of records held, sealed and in-progress.
func (w *Wal[K]) RecordCount() int {
	n := w.current.Len()
	for _, ch := range w.closed {
		n += ch.Len()
	}
	return n
}

// Empty reports whether the WAL holds no records at all.
func (w *Wal[K]) Empty() bool {
	return w.current.Empty() && len(w.closed) == 0
}

// Range returns the key range over every accepted record, when one exists.
func (w *Wal[K]) Range() (first, last K, ok bool) {
	return w.first, w.last, w.hasRange
}

// Close releases both file handles. The WAL must not be used afterwards.
func (w *Wal[K]) Close() error {
	var err error
	if w.logFile != nil {
		err = multierr.Append(err, w.logFile.Close())
		w.logFile = nil
	}
	if w.journal != nil {
		err = multierr.Append(err, w.journal.Close())
		w.journal = nil
	}
	return err
}
