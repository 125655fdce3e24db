package bio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mmap owns one memory mapping of an open file. The type exists to give the
// mapping an explicit lifetime: whoever holds the Mmap must Close it, and
// Close is safe to call more than once so deferred cleanup composes with
// early-exit error paths. Aliasing writers must not touch the file while a
// writable mapping is held.
type Mmap struct {
	data []byte
}

// OpenMmap maps size bytes of f starting at offset zero. The mapping is
// shared, so writes through a writable mapping reach the file.
func OpenMmap(f *os.File, size int64, writable bool) (*Mmap, error) {
	if size <= 0 {
		return nil, fmt.Errorf("bio: cannot map %d bytes", size)
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("bio: mmap %d bytes: %w", size, err)
	}

	return &Mmap{data: data}, nil
}

// Bytes exposes the mapped region. The slice is valid until Close.
func (m *Mmap) Bytes() []byte {
	return m.data
}

// Handle returns a fixed Buffer over the mapped region. Each call returns
// an independent cursor over the same backing memory.
func (m *Mmap) Handle() *Buffer {
	return NewFixedBuffer(m.data)
}

// Sync flushes dirty pages of a writable mapping to the file.
func (m *Mmap) Sync() error {
	if m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close releases the mapping. Safe to call multiple times; after Close any
// slice obtained from Bytes or Handle must no longer be used.
func (m *Mmap) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
