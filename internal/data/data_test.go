package data

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/pkg/errors"
)

func kvRecord(op Op, key, value string, ns int64) Record[[]byte] {
	return Record[[]byte]{
		Op:        op,
		Key:       []byte(key),
		Value:     []byte(value),
		Timestamp: TimeFromNanos(ns),
		Offset:    -1,
	}
}

func TestKVRecordRoundTrip(t *testing.T) {
	records := []Record[[]byte]{
		kvRecord(OpUpsert, "hello", "world", 1234567890),
		kvRecord(OpDelete, "hello", "", 1234567891),
		kvRecord(OpUpsert, "", "empty key is the codec's problem", 1),
		kvRecord(OpUpsert, "k", "", -42),
	}

	for _, want := range records {
		buf := bio.NewBuffer()

		n, err := want.Write(buf, KV)
		require.NoError(t, err)
		require.Equal(t, want.WireSize(KV), n)
		require.Equal(t, int64(n), buf.Len())

		_, err = buf.Seek(0, io.SeekStart)
		require.NoError(t, err)

		got, rn, err := ReadRecord(buf, KV)
		require.NoError(t, err)
		require.Equal(t, n, rn)

		// The read stamps the on-disk position.
		require.Equal(t, int64(0), got.Offset)
		got.Offset = -1

		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("record round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestKVWireLayout(t *testing.T) {
	rec := kvRecord(OpUpsert, "ab", "c", 7)
	buf := bio.NewBuffer()

	n, err := rec.Write(buf, KV)
	require.NoError(t, err)

	// op(1) + payload_len(8) + ts(16) + key_len(2) + key(2) + value_len(2) + value(1)
	require.Equal(t, 32, n)

	raw := buf.Bytes()
	require.Equal(t, byte(OpUpsert), raw[0])
	// payload_len = 23, little-endian
	require.Equal(t, byte(23), raw[1])
	// timestamp low word first
	require.Equal(t, byte(7), raw[9])
	// key_len at offset 25
	require.Equal(t, byte(2), raw[25])
	require.Equal(t, byte('a'), raw[27])
	require.Equal(t, byte('b'), raw[28])
}

func TestColumnarRecordRoundTrip(t *testing.T) {
	want := Record[Time128]{
		Op:        OpUpsert,
		Key:       TimeFromNanos(1700000000000000000),
		Value:     []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Timestamp: TimeFromNanos(1700000000000000000),
		Offset:    -1,
	}

	buf := bio.NewBuffer()
	n, err := want.Write(buf, Columnar)
	require.NoError(t, err)
	require.Equal(t, 1+8+Time128Size+SampleSize, n)

	_, err = buf.Seek(0, io.SeekStart)
	require.NoError(t, err)

	got, _, err := ReadRecord(buf, Columnar)
	require.NoError(t, err)
	got.Offset = -1

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sample round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnarRejectsBadSample(t *testing.T) {
	rec := Record[Time128]{Op: OpUpsert, Key: Now(), Value: []byte{1, 2, 3}}

	buf := bio.NewBuffer()
	_, err := rec.Write(buf, Columnar)
	require.Error(t, err)
	require.True(t, errors.IsValidationError(err))
}

func TestReadRecordRejectsCorruptLengths(t *testing.T) {
	rec := kvRecord(OpUpsert, "key", "value", 1)
	buf := bio.NewBuffer()
	_, err := rec.Write(buf, KV)
	require.NoError(t, err)

	// Inflate the declared key length past the payload.
	raw := buf.Bytes()
	raw[25] = 0xFF
	raw[26] = 0xFF

	corrupt := bio.NewFixedBuffer(raw)
	_, _, err = ReadRecord(corrupt, KV)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrorCodeCorrupt))
}

func TestReadRecordCleanEOF(t *testing.T) {
	_, _, err := ReadRecord(bio.NewFixedBuffer(nil), KV)
	require.ErrorIs(t, err, io.EOF)
}

func TestCompareRecordsKeyThenOp(t *testing.T) {
	a := kvRecord(OpUpsert, "a", "1", 0)
	b := kvRecord(OpUpsert, "b", "1", 0)
	require.Negative(t, CompareRecords(KV, a, b))
	require.Positive(t, CompareRecords(KV, b, a))

	up := kvRecord(OpUpsert, "same", "1", 0)
	del := kvRecord(OpDelete, "same", "", 0)
	require.Negative(t, CompareRecords(KV, up, del))
	require.Zero(t, CompareRecords(KV, up, up))
}

func TestTime128Ordering(t *testing.T) {
	require.Negative(t, TimeFromNanos(-5).Compare(TimeFromNanos(3)))
	require.Positive(t, TimeFromNanos(10).Compare(TimeFromNanos(-10)))
	require.Zero(t, TimeFromNanos(42).Compare(TimeFromNanos(42)))

	// Sign extension: negative values carry an all-ones high word.
	neg := TimeFromNanos(-1)
	require.Equal(t, int64(-1), neg.Hi)
	require.Equal(t, ^uint64(0), neg.Lo)
}

func TestPointerRoundTripAndReadValue(t *testing.T) {
	buf := bio.NewBuffer()

	rec := kvRecord(OpUpsert, "pointer-key", "pointer-value", 99)
	_, err := rec.Write(buf, KV)
	require.NoError(t, err)

	ptr := Pointer[[]byte]{Op: OpUpsert, Key: []byte("pointer-key"), Offset: 0}

	ptrBuf := bio.NewBuffer()
	n, err := ptr.Write(ptrBuf, KV)
	require.NoError(t, err)
	require.Equal(t, ptr.WireSize(KV), n)

	_, err = ptrBuf.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := ReadPointer(ptrBuf, KV)
	require.NoError(t, err)
	require.Equal(t, ptr.Op, got.Op)
	require.Equal(t, ptr.Key, got.Key)
	require.Equal(t, ptr.Offset, got.Offset)

	value, err := got.ReadValue(buf, KV)
	require.NoError(t, err)
	require.Equal(t, []byte("pointer-value"), value.Value)
	require.Equal(t, int64(0), value.Offset)
}

func TestPointerReadValueKeyMismatch(t *testing.T) {
	buf := bio.NewBuffer()
	rec := kvRecord(OpUpsert, "actual", "v", 1)
	_, err := rec.Write(buf, KV)
	require.NoError(t, err)

	ptr := Pointer[[]byte]{Op: OpUpsert, Key: []byte("expected"), Offset: 0}
	_, err = ptr.ReadValue(buf, KV)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrorCodeCorrupt))
}

func TestDedupeSortedKeepsLast(t *testing.T) {
	recs := []Record[[]byte]{
		kvRecord(OpUpsert, "a", "old", 1),
		kvRecord(OpUpsert, "a", "new", 2),
		kvRecord(OpUpsert, "b", "only", 3),
	}

	out := DedupeSorted(KV, recs)
	require.Len(t, out, 2)
	require.Equal(t, []byte("new"), out[0].Value)
	require.Equal(t, []byte("only"), out[1].Value)
}

func TestMergeRecordsNewerWins(t *testing.T) {
	older := []Record[[]byte]{
		kvRecord(OpUpsert, "a", "1", 1),
		kvRecord(OpUpsert, "c", "3", 1),
	}
	newer := []Record[[]byte]{
		kvRecord(OpUpsert, "b", "2", 2),
		kvRecord(OpUpsert, "c", "9", 2),
	}

	out := MergeRecords(KV, older, newer)
	require.Len(t, out, 3)
	require.Equal(t, []byte("a"), out[0].Key)
	require.Equal(t, []byte("b"), out[1].Key)
	require.Equal(t, []byte("c"), out[2].Key)
	require.Equal(t, []byte("9"), out[2].Value)
}
