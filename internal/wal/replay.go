package wal

import (
	stdErrors "errors"
	"hash/crc32"
	"io"
	"os"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/chunk"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// replayLog rebuilds the sealed chunks from the log file. Frames are read
// through a read-only mapping and accepted one by one until end of file, a
// checksum mismatch, or an undecodable chunk; a bad tail is truncated away
// so later appends land after the last valid frame.
func (w *Wal[K]) replayLog() error {
	stat, err := w.logFile.Stat()
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat log").
			WithPath(w.cfg.LogPath)
	}

	size := stat.Size()
	if size == 0 {
		return nil
	}

	mm, err := bio.OpenMmap(w.logFile, size, false)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to map log").
			WithPath(w.cfg.LogPath)
	}
	defer func() { _ = mm.Close() }()

	h := mm.Handle()
	valid := int64(0)

	for {
		if h.Remaining() == 0 {
			break
		}
		if h.Remaining() < crcBytes {
			w.log.Warnw("Discarding torn frame prefix at log tail",
				"path", w.cfg.LogPath, "offset", valid)
			break
		}

		want, err := bio.ReadU32(h)
		if err != nil {
			return err
		}

		bodyStart, err := h.Pos()
		if err != nil {
			return err
		}

		ch, err := chunk.Read(h, w.kind, true)
		if err != nil {
			w.log.Warnw("Stopping log replay at undecodable chunk",
				"path", w.cfg.LogPath, "offset", valid, "error", err)
			break
		}

		bodyEnd, err := h.Pos()
		if err != nil {
			return err
		}

		if got := crc32.ChecksumIEEE(mm.Bytes()[bodyStart:bodyEnd]); got != want {
			w.log.Warnw("Stopping log replay at checksum mismatch",
				"path", w.cfg.LogPath, "offset", valid, "expected", want, "actual", got)
			break
		}

		w.seal(ch)
		valid = bodyEnd
	}

	if valid < size {
		// Everything before 'valid' is intact; the tail never becomes
		// readable again, so drop it before new frames are appended.
		if err := w.logFile.Truncate(valid); err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to truncate corrupt log tail").
				WithPath(w.cfg.LogPath).WithOffset(valid)
		}
	}

	if _, err := w.logFile.Seek(valid, io.SeekStart); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek log to append position").
			WithPath(w.cfg.LogPath)
	}

	w.log.Infow("Replayed log", "path", w.cfg.LogPath, "chunks", len(w.closed), "bytes", valid)
	return nil
}

// replayJournal rebuilds the in-progress chunk from the raw side journal.
// The journal carries no checksums by design (it is the per-record mirror
// of a chunk that never sealed), so replay stops at the first record that
// does not decode cleanly, which in practice is a torn final write.
//
// Decoded records are pushed back through the regular append path: that
// rewrites them into a fresh journal and lets an over-full set seal into a
// frame, so the state after recovery is exactly the state the same appends
// would have produced.
func (w *Wal[K]) replayJournal() error {
	stat, err := w.journal.Stat()
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat journal").
			WithPath(w.cfg.JournalPath)
	}
	if stat.Size() == 0 {
		return nil
	}

	raw, err := os.ReadFile(w.cfg.JournalPath)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read journal").
			WithPath(w.cfg.JournalPath)
	}

	var records []data.Record[K]
	h := bio.NewFixedBuffer(raw)

	for h.Remaining() > 0 {
		rec, _, err := data.ReadRecord(h, w.kind)
		if err != nil {
			pos, _ := h.Pos()
			w.log.Warnw("Stopping journal replay at undecodable record",
				"path", w.cfg.JournalPath, "offset", pos, "recovered", len(records), "error", err)
			break
		}
		records = append(records, rec)
	}

	if err := w.resetJournal(); err != nil {
		return err
	}

	for _, rec := range records {
		if _, err := w.Append(rec); err != nil && !stdErrors.Is(err, ErrTableFull) {
			return err
		}
	}

	w.log.Infow("Replayed journal", "path", w.cfg.JournalPath, "records", len(records))
	return nil
}
