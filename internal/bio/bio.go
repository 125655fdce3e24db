// Package bio provides the byte I/O adapter the engine's codecs are written
// against: one Handle abstraction over three backings (a borrowed file, a
// byte buffer, a borrowed mmap region) plus little-endian integer helpers
// for the fixed-width fields of the persisted layouts.
//
// Every integer in every persisted layout is little-endian with a declared
// width; the helpers here are the only place widths and endianness appear,
// so a codec reads as a sequence of ReadU64/WriteU16 calls that mirror the
// format documentation line by line.
package bio

import (
	"encoding/binary"
	"io"
	"os"
)

// Handle is the uniform surface the codecs are written against. It is
// satisfied by *File (a borrowed open file), and by *Buffer (an owned
// growable byte buffer, or a borrowed fixed region such as an mmap).
type Handle interface {
	io.Reader
	io.Writer
	io.Seeker

	// Pos reports the current absolute position.
	Pos() (int64, error)
}

// File adapts a borrowed *os.File to the Handle interface. The file handle
// stays owned by the caller; closing it is not this type's job.
type File struct {
	f *os.File
}

// NewFile wraps an open file. The wrapper shares the file's seek position.
func NewFile(f *os.File) *File {
	return &File{f: f}
}

func (h *File) Read(p []byte) (int, error)  { return h.f.Read(p) }
func (h *File) Write(p []byte) (int, error) { return h.f.Write(p) }

func (h *File) Seek(offset int64, whence int) (int64, error) {
	return h.f.Seek(offset, whence)
}

func (h *File) Pos() (int64, error) {
	return h.f.Seek(0, io.SeekCurrent)
}

// ReadU8 reads one byte.
func ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian 16-bit unsigned integer.
func ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadU32 reads a little-endian 32-bit unsigned integer.
func ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadU64 reads a little-endian 64-bit unsigned integer.
func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// WriteU8 writes one byte.
func WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteU16 writes a little-endian 16-bit unsigned integer.
func WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteU32 writes a little-endian 32-bit unsigned integer.
func WriteU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteU64 writes a little-endian 64-bit unsigned integer.
func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}
