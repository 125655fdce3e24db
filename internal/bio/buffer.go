package bio

import (
	"errors"
	"io"
)

var (
	// ErrFixedBufferFull is returned when a write would grow a borrowed
	// fixed-size region, such as an mmap.
	ErrFixedBufferFull = errors.New("bio: write exceeds fixed buffer bounds")

	// ErrNegativePosition is returned when a seek resolves before the
	// start of the buffer.
	ErrNegativePosition = errors.New("bio: seek to negative position")
)

// Buffer is a Handle over a byte slice. An owned buffer grows on demand and
// is used to stage chunk bodies before they are checksummed; a fixed buffer
// borrows its backing (typically an mmap region) and refuses to grow.
type Buffer struct {
	data  []byte
	pos   int64
	fixed bool
}

// NewBuffer returns an empty, growable buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewFixedBuffer borrows b as a non-growable region. The buffer never
// copies or frees b; the caller keeps ownership of the backing memory.
func NewFixedBuffer(b []byte) *Buffer {
	return &Buffer{data: b, fixed: true}
}

// Bytes exposes the underlying slice. For an owned buffer this is the
// written prefix; for a fixed buffer it is the whole borrowed region.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len reports the buffer length in bytes.
func (b *Buffer) Len() int64 {
	return int64(len(b.data))
}

func (b *Buffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))

	if end > int64(len(b.data)) {
		if b.fixed {
			return 0, ErrFixedBufferFull
		}
		// Grow, zero-filling any gap a forward seek left behind.
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}

	n := copy(b.data[b.pos:end], p)
	b.pos = end
	return n, nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = b.pos + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, errors.New("bio: invalid seek whence")
	}

	if next < 0 {
		return 0, ErrNegativePosition
	}

	b.pos = next
	return next, nil
}

func (b *Buffer) Pos() (int64, error) {
	return b.pos, nil
}

// Remaining reports how many bytes are left between the position and the
// end of the buffer. Codecs use it to bound length-prefixed reads.
func (b *Buffer) Remaining() int64 {
	if b.pos >= int64(len(b.data)) {
		return 0
	}
	return int64(len(b.data)) - b.pos
}
