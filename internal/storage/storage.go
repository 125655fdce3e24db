// Package storage owns the engine's data directory: creating it on first
// open, minting uniquely named files for the WAL, its side journal, and
// sorted tables, and enumerating what is already there. There is no
// manifest file (the directory's contents are the manifest), so minting
// and enumeration are the only bookkeeping this layer does.
package storage

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/filesys"
)

// File extensions for the three kinds of engine files.
const (
	ExtSst   = "sst"
	ExtWal   = "wal"
	ExtChunk = "chk"
)

// mintAttempts bounds the retry loop when a generated name collides.
// UUID collisions are not a practical concern; the bound exists so a
// misbehaving filesystem turns into an error instead of a spin.
const mintAttempts = 8

// Config carries the dependencies a Manager needs.
type Config struct {
	Logger *zap.SugaredLogger

	// Dir is the data directory. Treated as exclusively owned: no other
	// process (or engine instance) may write into it.
	Dir string
}

// Manager is the data-directory handle the rest of the engine goes through
// for every file it creates, lists, or deletes.
type Manager struct {
	log *zap.SugaredLogger
	dir string
}

// Open creates the data directory if needed and returns a manager for it.
func Open(cfg *Config) (*Manager, error) {
	if cfg == nil || cfg.Logger == nil || cfg.Dir == "" {
		return nil, errors.NewRequiredFieldError("config")
	}

	if err := filesys.CreateDir(cfg.Dir, 0o755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, cfg.Dir)
	}

	return &Manager{log: cfg.Logger, dir: cfg.Dir}, nil
}

// Dir returns the data directory path.
func (m *Manager) Dir() string { return m.dir }

// NewFile mints a uniquely named file with the given extension and returns
// it open for read/write. Uniqueness is not trusted to the name generator:
// the file is created with O_EXCL, so an existing file of the same name
// fails the probe and a fresh name is tried.
func (m *Manager) NewFile(ext string) (*os.File, string, error) {
	for i := 0; i < mintAttempts; i++ {
		name := uuid.NewString() + "." + ext
		path := filepath.Join(m.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err != nil {
			if os.IsExist(err) {
				m.log.Warnw("Minted file name collided, retrying", "path", path)
				continue
			}
			return nil, "", errors.ClassifyFileOpenError(err, path, name)
		}

		return f, path, nil
	}

	return nil, "", errors.NewStorageError(nil, errors.ErrorCodeIO,
		"failed to mint a unique file name").
		WithPath(m.dir).
		WithDetail("extension", ext).
		WithDetail("attempts", mintAttempts)
}

// NewPath mints a unique path with the given extension without leaving the
// file open. The file exists (empty) when this returns.
func (m *Manager) NewPath(ext string) (string, error) {
	f, path, err := m.NewFile(ext)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close minted file").
			WithPath(path)
	}
	return path, nil
}

// ListFiles returns the paths of every file with the given extension,
// sorted by name for deterministic iteration.
func (m *Manager) ListFiles(ext string) ([]string, error) {
	paths, err := filesys.ReadDir(filepath.Join(m.dir, "*."+ext))
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list data directory").
			WithPath(m.dir).
			WithDetail("extension", ext)
	}

	sort.Strings(paths)
	return paths, nil
}

// ListNames returns the base names of every file with the given extension.
func (m *Manager) ListNames(ext string) ([]string, error) {
	paths, err := m.ListFiles(ext)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names, nil
}

// Remove deletes the file at path.
func (m *Manager) Remove(path string) error {
	if err := filesys.DeleteFile(path); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove file").
			WithPath(path)
	}
	return nil
}

// SizeOf reports the size of the file at path.
func (m *Manager) SizeOf(path string) (int64, error) {
	size, err := filesys.SizeOf(path)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat file").
			WithPath(path)
	}
	return size, nil
}
