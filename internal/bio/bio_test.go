package bio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferReadWriteSeek(t *testing.T) {
	b := NewBuffer()

	require.NoError(t, WriteU8(b, 0xAB))
	require.NoError(t, WriteU16(b, 0x0102))
	require.NoError(t, WriteU32(b, 0x03040506))
	require.NoError(t, WriteU64(b, 0x0708090A0B0C0D0E))

	pos, err := b.Pos()
	require.NoError(t, err)
	require.Equal(t, int64(15), pos)

	_, err = b.Seek(0, io.SeekStart)
	require.NoError(t, err)

	v8, err := ReadU8(b)
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), v8)

	v16, err := ReadU16(b)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), v16)

	v32, err := ReadU32(b)
	require.NoError(t, err)
	require.Equal(t, uint32(0x03040506), v32)

	v64, err := ReadU64(b)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0708090A0B0C0D0E), v64)

	_, err = ReadU8(b)
	require.ErrorIs(t, err, io.EOF)
}

func TestBufferLittleEndianLayout(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, WriteU16(b, 0x01EB))
	require.Equal(t, []byte{0xEB, 0x01}, b.Bytes())
}

func TestBufferBackpatch(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, WriteU64(b, 0))
	require.NoError(t, WriteU32(b, 0xDEADBEEF))

	end, err := b.Pos()
	require.NoError(t, err)

	_, err = b.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, WriteU64(b, uint64(end)))

	_, err = b.Seek(0, io.SeekStart)
	require.NoError(t, err)
	patched, err := ReadU64(b)
	require.NoError(t, err)
	require.Equal(t, uint64(end), patched)
}

func TestFixedBufferRefusesGrowth(t *testing.T) {
	b := NewFixedBuffer(make([]byte, 4))

	require.NoError(t, WriteU32(b, 1))
	err := WriteU8(b, 1)
	require.ErrorIs(t, err, ErrFixedBufferFull)
}

func TestBufferSeekNegative(t *testing.T) {
	b := NewBuffer()
	_, err := b.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrNegativePosition)
}

func TestFileHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handle.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	h := NewFile(f)
	require.NoError(t, WriteU64(h, 42))

	_, err = h.Seek(0, io.SeekStart)
	require.NoError(t, err)

	v, err := ReadU64(h)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

func TestMmapReadsFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapped.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello mapping"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	stat, err := f.Stat()
	require.NoError(t, err)

	m, err := OpenMmap(f, stat.Size(), false)
	require.NoError(t, err)

	require.Equal(t, []byte("hello mapping"), m.Bytes())

	h := m.Handle()
	first, err := ReadU8(h)
	require.NoError(t, err)
	require.Equal(t, uint8('h'), first)

	// Close must be idempotent so deferred cleanup composes.
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestMmapRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = OpenMmap(f, 0, false)
	require.Error(t, err)
}
