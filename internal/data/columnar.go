package data

import (
	"encoding/binary"
	"io"

	"github.com/iamNilotpal/ember/pkg/errors"
)

// columnarKind is the fixed-width timestamped-sample shape: each record is
// one measurement keyed by its timestamp. Payload layout after the op byte:
//
//	timestamp : 16   (Time128, doubles as the key)
//	sample    : 8
//
// Sample bytes are opaque to the engine; hosts typically store float64
// bits. Keys order chronologically.
type columnarKind struct{}

// Columnar is the timestamped-sample record kind.
var Columnar Kind[Time128] = columnarKind{}

// SampleSize is the fixed width of a columnar sample value.
const SampleSize = 8

func (columnarKind) Name() string { return "columnar" }

func (columnarKind) PayloadSize(r Record[Time128]) int {
	return Time128Size + SampleSize
}

func (columnarKind) WritePayload(w io.Writer, r Record[Time128]) error {
	if len(r.Value) != SampleSize {
		return errors.NewFieldRangeError("sample", len(r.Value), SampleSize, SampleSize)
	}

	// The timestamp is the key; the Key field is authoritative so sorted
	// chunks and index entries stay consistent with what lands on disk.
	if err := r.Key.Write(w); err != nil {
		return err
	}
	_, err := w.Write(r.Value)
	return err
}

func (columnarKind) ReadPayload(r io.Reader, op Op, size int) (Record[Time128], error) {
	var zero Record[Time128]

	if size != Time128Size+SampleSize {
		return zero, errors.NewStorageError(nil, errors.ErrorCodeCorrupt,
			"sample payload length inconsistent with fixed-width layout").
			WithDetail("payloadLength", size)
	}

	ts, err := ReadTime128(r)
	if err != nil {
		return zero, errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read sample timestamp")
	}

	sample := make([]byte, SampleSize)
	if _, err := io.ReadFull(r, sample); err != nil {
		return zero, errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read sample bytes")
	}

	return Record[Time128]{Op: op, Key: ts, Value: sample, Timestamp: ts, Offset: -1}, nil
}

func (columnarKind) KeySize(k Time128) int { return Time128Size }

func (columnarKind) WriteKey(w io.Writer, k Time128) error {
	return k.Write(w)
}

func (columnarKind) ReadKey(r io.Reader) (Time128, error) {
	ts, err := ReadTime128(r)
	if err != nil {
		return Time128{}, errors.NewStorageError(err, errors.ErrorCodeCorrupt, "failed to read sample key")
	}
	return ts, nil
}

func (columnarKind) KeyBytes(k Time128) []byte {
	var b [Time128Size]byte
	binary.LittleEndian.PutUint64(b[0:8], k.Lo)
	binary.LittleEndian.PutUint64(b[8:16], uint64(k.Hi))
	return b[:]
}

func (columnarKind) Compare(a, b Time128) int { return a.Compare(b) }
