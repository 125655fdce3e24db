package data

import (
	"io"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// MaxPayloadSize bounds the declared payload length of a single record.
// Anything larger than this is treated as corruption rather than an
// allocation request.
const MaxPayloadSize = 1 << 31

// recordHeaderSize is the op byte plus the 64-bit payload length.
const recordHeaderSize = 1 + 8

// Record is one in-memory entry: an operation tag, a key, the value bytes,
// the write timestamp, and, once the record has touched disk, the
// absolute byte position it was read from or written to. Offset is -1 while
// the record only exists in memory.
//
// Records are plain values. The on-disk position is carried as a field
// computed on demand instead of an owning back-reference, so records can be
// copied, sorted, and discarded freely.
type Record[K any] struct {
	Op        Op
	Key       K
	Value     []byte
	Timestamp Time128
	Offset    int64
}

// WireSize reports the exact number of bytes Write emits for the record.
func (r Record[K]) WireSize(kind Kind[K]) int {
	return recordHeaderSize + kind.PayloadSize(r)
}

// Write emits the record:
//
//	op          : 1
//	payload_len : 8
//	payload     : payload_len   (kind-specific, §Kind.WritePayload)
//
// It returns the number of bytes written.
func (r Record[K]) Write(w io.Writer, kind Kind[K]) (int, error) {
	size := kind.PayloadSize(r)

	if err := bio.WriteU8(w, uint8(r.Op)); err != nil {
		return 0, err
	}
	if err := bio.WriteU64(w, uint64(size)); err != nil {
		return 0, err
	}
	if err := kind.WritePayload(w, r); err != nil {
		return 0, err
	}

	return recordHeaderSize + size, nil
}

// ReadRecord is the inverse of Write. It stamps the record's Offset with
// the handle position the record started at. A clean end-of-stream before
// the first byte surfaces as io.EOF; any truncation after that is reported
// as corruption.
func ReadRecord[K any](h bio.Handle, kind Kind[K]) (Record[K], int, error) {
	var zero Record[K]

	start, err := h.Pos()
	if err != nil {
		return zero, 0, err
	}

	op, err := bio.ReadU8(h)
	if err != nil {
		if err == io.EOF {
			return zero, 0, io.EOF
		}
		return zero, 0, corruptRecord(err, start, "failed to read record op tag")
	}
	if !Op(op).Valid() {
		return zero, 0, corruptRecord(nil, start, "unknown record op tag").
			WithDetail("op", op)
	}

	size, err := bio.ReadU64(h)
	if err != nil {
		return zero, 0, corruptRecord(err, start, "failed to read record payload length")
	}
	if size > MaxPayloadSize {
		return zero, 0, corruptRecord(nil, start, "record payload length exceeds bound").
			WithDetail("payloadLength", size)
	}

	rec, err := kind.ReadPayload(h, Op(op), int(size))
	if err != nil {
		return zero, 0, err
	}

	rec.Offset = start
	return rec, recordHeaderSize + int(size), nil
}

func corruptRecord(err error, offset int64, msg string) *errors.StorageError {
	return errors.NewStorageError(err, errors.ErrorCodeCorrupt, msg).WithOffset(offset)
}
