package data

import (
	"io"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// Pointer is one index slot: the operation tag and key of a record plus the
// absolute byte offset of that record inside the same file. Pointers are
// the currency of table iteration: compaction walks pointers and pulls
// record bodies on demand.
type Pointer[K any] struct {
	Op     Op
	Key    K
	Offset uint64
}

// WireSize reports the exact number of bytes Write emits for the pointer.
func (p Pointer[K]) WireSize(kind Kind[K]) int {
	return 1 + kind.KeySize(p.Key) + 8
}

// Write emits the pointer:
//
//	op     : 1
//	key    : kind-specific key serialization
//	offset : 8
func (p Pointer[K]) Write(w io.Writer, kind Kind[K]) (int, error) {
	if err := bio.WriteU8(w, uint8(p.Op)); err != nil {
		return 0, err
	}
	if err := kind.WriteKey(w, p.Key); err != nil {
		return 0, err
	}
	if err := bio.WriteU64(w, p.Offset); err != nil {
		return 0, err
	}
	return p.WireSize(kind), nil
}

// ReadPointer is the inverse of Write.
func ReadPointer[K any](r io.Reader, kind Kind[K]) (Pointer[K], error) {
	var zero Pointer[K]

	op, err := bio.ReadU8(r)
	if err != nil {
		if err == io.EOF {
			return zero, io.EOF
		}
		return zero, errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read pointer op tag")
	}
	if !Op(op).Valid() {
		return zero, errors.NewStorageError(nil, errors.ErrorCodeCorrupt, "unknown pointer op tag").
			WithDetail("op", op)
	}

	key, err := kind.ReadKey(r)
	if err != nil {
		return zero, errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read pointer key")
	}

	offset, err := bio.ReadU64(r)
	if err != nil {
		return zero, errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read pointer offset")
	}

	return Pointer[K]{Op: Op(op), Key: key, Offset: offset}, nil
}

// ReadValue seeks the handle to the pointed-at record and decodes it. The
// returned record carries the pointer's offset as its back-reference, and
// its key must equal the pointer's key; a mismatch means the index and the
// data region disagree and is reported as corruption.
func (p Pointer[K]) ReadValue(h bio.Handle, kind Kind[K]) (Record[K], error) {
	var zero Record[K]

	if _, err := h.Seek(int64(p.Offset), io.SeekStart); err != nil {
		return zero, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to record").
			WithOffset(int64(p.Offset))
	}

	rec, _, err := ReadRecord(h, kind)
	if err != nil {
		return zero, err
	}

	if kind.Compare(rec.Key, p.Key) != 0 {
		return zero, errors.NewStorageError(nil, errors.ErrorCodeCorrupt, "pointer key does not match record key").
			WithOffset(int64(p.Offset)).
			WithDetail("pointerKey", string(kind.KeyBytes(p.Key))).
			WithDetail("recordKey", string(kind.KeyBytes(rec.Key)))
	}

	return rec, nil
}

// PointerTo builds the index slot for a record that has already been
// positioned on disk.
func PointerTo[K any](r Record[K]) Pointer[K] {
	return Pointer[K]{Op: r.Op, Key: r.Key, Offset: uint64(r.Offset)}
}
