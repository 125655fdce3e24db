package data

import (
	"bytes"
	"io"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/pkg/errors"
)

const (
	// MaxKeySize bounds kv keys; key lengths travel as 16-bit integers.
	MaxKeySize = 1<<16 - 1

	// MaxValueSize bounds kv values; value lengths travel as 16-bit integers.
	MaxValueSize = 1<<16 - 1
)

// kvKind is the variable-length key/value record shape. Payload layout
// after the op byte:
//
//	timestamp : 16   (Time128, low word first)
//	key_len   : 2
//	key       : key_len
//	value_len : 2
//	value     : value_len
//
// Keys serialize standalone as key_len:2 followed by the key bytes, and
// order bytewise.
type kvKind struct{}

// KV is the key/value record kind.
var KV Kind[[]byte] = kvKind{}

func (kvKind) Name() string { return "kv" }

func (kvKind) PayloadSize(r Record[[]byte]) int {
	return Time128Size + 2 + len(r.Key) + 2 + len(r.Value)
}

func (k kvKind) WritePayload(w io.Writer, r Record[[]byte]) error {
	if len(r.Key) > MaxKeySize {
		return errors.NewFieldRangeError("key", len(r.Key), 0, MaxKeySize)
	}
	if len(r.Value) > MaxValueSize {
		return errors.NewFieldRangeError("value", len(r.Value), 0, MaxValueSize)
	}

	if err := r.Timestamp.Write(w); err != nil {
		return err
	}
	if err := bio.WriteU16(w, uint16(len(r.Key))); err != nil {
		return err
	}
	if _, err := w.Write(r.Key); err != nil {
		return err
	}
	if err := bio.WriteU16(w, uint16(len(r.Value))); err != nil {
		return err
	}
	_, err := w.Write(r.Value)
	return err
}

func (k kvKind) ReadPayload(r io.Reader, op Op, size int) (Record[[]byte], error) {
	var zero Record[[]byte]

	ts, err := ReadTime128(r)
	if err != nil {
		return zero, corruptKV(err, "failed to read record timestamp")
	}

	keyLen, err := bio.ReadU16(r)
	if err != nil {
		return zero, corruptKV(err, "failed to read record key length")
	}

	// The declared payload must hold the fixed fields plus the key; check
	// before allocating so a corrupt length can't trigger a bogus read.
	if Time128Size+2+int(keyLen)+2 > size {
		return zero, corruptKV(nil, "record key length inconsistent with payload length").
			WithDetail("keyLength", keyLen).
			WithDetail("payloadLength", size)
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return zero, corruptKV(err, "failed to read record key")
	}

	valueLen, err := bio.ReadU16(r)
	if err != nil {
		return zero, corruptKV(err, "failed to read record value length")
	}

	if Time128Size+2+int(keyLen)+2+int(valueLen) != size {
		return zero, corruptKV(nil, "record value length inconsistent with payload length").
			WithDetail("valueLength", valueLen).
			WithDetail("payloadLength", size)
	}

	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return zero, corruptKV(err, "failed to read record value")
	}

	return Record[[]byte]{Op: op, Key: key, Value: value, Timestamp: ts, Offset: -1}, nil
}

func (kvKind) KeySize(k []byte) int { return 2 + len(k) }

func (kvKind) WriteKey(w io.Writer, k []byte) error {
	if len(k) > MaxKeySize {
		return errors.NewFieldRangeError("key", len(k), 0, MaxKeySize)
	}
	if err := bio.WriteU16(w, uint16(len(k))); err != nil {
		return err
	}
	_, err := w.Write(k)
	return err
}

func (kvKind) ReadKey(r io.Reader) ([]byte, error) {
	n, err := bio.ReadU16(r)
	if err != nil {
		return nil, corruptKV(err, "failed to read key length")
	}
	key := make([]byte, n)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, corruptKV(err, "failed to read key bytes")
	}
	return key, nil
}

func (kvKind) KeyBytes(k []byte) []byte { return k }

func (kvKind) Compare(a, b []byte) int { return bytes.Compare(a, b) }

func corruptKV(err error, msg string) *errors.StorageError {
	return errors.NewStorageError(err, errors.ErrorCodeCorrupt, msg)
}
