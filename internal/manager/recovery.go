package manager

import (
	"os"
	"sort"
	"time"

	"github.com/iamNilotpal/ember/internal/storage"
	"github.com/iamNilotpal/ember/internal/wal"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// recover rebuilds the manager's in-memory state from whatever the data
// directory holds:
//
//  1. Empty leftover files of any kind are deleted silently (a crashed
//     rotation can leave a zero-byte table; non-empty orphans are left for
//     the operator).
//  2. At most one log and one side journal may exist; more than one of
//     either means two engines shared the directory, and startup refuses.
//  3. The WAL is opened over the surviving (or freshly minted) pair, which
//     replays sealed frames up to the first checksum mismatch and journaled
//     records up to the first torn write.
//  4. Every table file is opened, registered in age order, and folded into
//     the global key range.
//
// Running recovery twice over the same directory state yields the same
// in-memory state: its mutations (pruning empty files, minting a missing
// log or journal, truncating corrupt tails, rewriting the journal through
// the append path, rotating a full WAL) leave files that a second run
// reads back into that same state.
func (m *Manager[K]) recover() error {
	if err := m.pruneEmptyFiles(); err != nil {
		return err
	}

	logs, err := m.store.ListFiles(storage.ExtWal)
	if err != nil {
		return err
	}
	journals, err := m.store.ListFiles(storage.ExtChunk)
	if err != nil {
		return err
	}

	if len(logs) > 1 || len(journals) > 1 {
		return errors.NewStorageError(nil, errors.ErrorCodeUnexpectedWalState,
			"data directory holds more than one write-ahead log").
			WithPath(m.store.Dir()).
			WithDetail("logs", len(logs)).
			WithDetail("journals", len(journals))
	}

	logPath, err := m.pickOrMint(logs, storage.ExtWal)
	if err != nil {
		return err
	}
	journalPath, err := m.pickOrMint(journals, storage.ExtChunk)
	if err != nil {
		return err
	}

	w, err := wal.Open(&wal.Config[K]{
		Kind:          m.kind,
		Logger:        m.log,
		MaxSize:       m.opts.WalOptions.MaxSize,
		ChunkCapacity: m.opts.WalOptions.ChunkCapacity,
		SyncOnAppend:  m.opts.WalOptions.SyncOnAppend,
		LogPath:       logPath,
		JournalPath:   journalPath,
	})
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeRecoveryFailed, "failed to recover write-ahead log").
			WithPath(logPath)
	}
	m.wal = w

	if err := m.registerTables(); err != nil {
		return err
	}

	m.log.Infow("Recovered data directory",
		"dir", m.store.Dir(),
		"walChunks", m.wal.ChunkCount(),
		"walRecords", m.wal.RecordCount(),
		"tables", len(m.tables))

	// A WAL recovered at or past its size tier rotates immediately so the
	// first append doesn't have to absorb the backlog.
	if m.wal.Full() {
		return m.rotate()
	}
	return nil
}

// pruneEmptyFiles deletes zero-byte engine files of every extension.
func (m *Manager[K]) pruneEmptyFiles() error {
	for _, ext := range []string{storage.ExtWal, storage.ExtChunk, storage.ExtSst} {
		paths, err := m.store.ListFiles(ext)
		if err != nil {
			return err
		}

		for _, path := range paths {
			size, err := m.store.SizeOf(path)
			if err != nil {
				return err
			}
			if size != 0 {
				continue
			}
			if err := m.store.Remove(path); err != nil {
				return err
			}
			m.log.Debugw("Pruned empty file", "path", path)
		}
	}
	return nil
}

// pickOrMint returns the surviving path, or mints a fresh one when the
// directory holds none.
func (m *Manager[K]) pickOrMint(existing []string, ext string) (string, error) {
	if len(existing) == 1 {
		return existing[0], nil
	}
	return m.store.NewPath(ext)
}

// registerTables opens every table file and registers it. Table files are
// named by UUID, so names carry no age; registration order, which decides
// which table shadows which, comes from file modification times instead.
func (m *Manager[K]) registerTables() error {
	paths, err := m.store.ListFiles(storage.ExtSst)
	if err != nil {
		return err
	}

	type aged struct {
		path    string
		modTime time.Time
	}

	byAge := make([]aged, 0, len(paths))
	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat table file").
				WithPath(path)
		}
		byAge = append(byAge, aged{path: path, modTime: stat.ModTime()})
	}

	sort.Slice(byAge, func(i, j int) bool {
		if byAge[i].modTime.Equal(byAge[j].modTime) {
			return byAge[i].path < byAge[j].path
		}
		return byAge[i].modTime.Before(byAge[j].modTime)
	})

	for _, entry := range byAge {
		idx, err := m.openTable(entry.path)
		if err != nil {
			return err
		}

		m.tables = append(m.tables, idx)
		m.extendRange(idx)
	}

	return nil
}
