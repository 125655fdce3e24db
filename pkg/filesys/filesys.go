// Package filesys provides the small set of file system helpers the storage
// manager builds on: directory creation, existence checks, glob-based
// enumeration, and safe size probing.
package filesys

import (
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrIsNotDir = errors.New("path isn't a directory")
)

// CreateDir creates a directory at the specified path with the given permissions.
//
// If the directory already exists:
//   - If 'force' is true, it proceeds without error.
//   - If 'force' is false, it returns an error.
//
// It also returns an error if the existing path is a file (not a directory).
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)

	// If 'force' is false and the path exists, surface that as an error
	// (the directory is already there and the caller asked us not to reuse it).
	if !force && err == nil {
		return os.ErrExist
	}

	// If the path exists and it's not a directory, refuse to proceed.
	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, permission)
}

// ReadDir reads the files matched by the glob pattern `pattern` and returns
// the matching paths. Example: "/var/lib/emberdb/*.sst".
func ReadDir(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// DeleteFile deletes the file at the specified path.
// It returns an error if the file cannot be removed.
func DeleteFile(filePath string) error {
	return os.Remove(filePath)
}

// Exists checks if a file or directory at the given path exists.
// It returns true if the path exists, false if it does not, and an error
// if there's any other issue checking its status.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// SizeOf returns the size in bytes of the file at the given path.
func SizeOf(path string) (int64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}
