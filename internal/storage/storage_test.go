package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/ember/pkg/logger"
)

func openManager(t *testing.T) *Manager {
	t.Helper()

	m, err := Open(&Config{Logger: logger.NewNop(), Dir: filepath.Join(t.TempDir(), "data")})
	require.NoError(t, err)
	return m
}

func TestOpenCreatesDirectory(t *testing.T) {
	m := openManager(t)

	stat, err := os.Stat(m.Dir())
	require.NoError(t, err)
	require.True(t, stat.IsDir())

	// Reopening an existing directory succeeds.
	_, err = Open(&Config{Logger: logger.NewNop(), Dir: m.Dir()})
	require.NoError(t, err)
}

func TestOpenRejectsMissingConfig(t *testing.T) {
	_, err := Open(nil)
	require.Error(t, err)

	_, err = Open(&Config{Logger: logger.NewNop()})
	require.Error(t, err)
}

func TestNewFileMintsUniqueNames(t *testing.T) {
	m := openManager(t)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		f, path, err := m.NewFile(ExtSst)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		require.False(t, seen[path], "duplicate minted path %q", path)
		seen[path] = true

		require.True(t, strings.HasSuffix(path, ".sst"))
		_, err = os.Stat(path)
		require.NoError(t, err)
	}
}

func TestListFilesFiltersByExtension(t *testing.T) {
	m := openManager(t)

	wantSst := 3
	for i := 0; i < wantSst; i++ {
		_, err := m.NewPath(ExtSst)
		require.NoError(t, err)
	}
	_, err := m.NewPath(ExtWal)
	require.NoError(t, err)
	_, err = m.NewPath(ExtChunk)
	require.NoError(t, err)

	ssts, err := m.ListFiles(ExtSst)
	require.NoError(t, err)
	require.Len(t, ssts, wantSst)

	wals, err := m.ListFiles(ExtWal)
	require.NoError(t, err)
	require.Len(t, wals, 1)

	names, err := m.ListNames(ExtChunk)
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.NotContains(t, names[0], string(os.PathSeparator))
}

func TestRemoveAndSizeOf(t *testing.T) {
	m := openManager(t)

	f, path, err := m.NewFile(ExtWal)
	require.NoError(t, err)
	_, err = f.WriteString("payload")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	size, err := m.SizeOf(path)
	require.NoError(t, err)
	require.Equal(t, int64(7), size)

	require.NoError(t, m.Remove(path))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
