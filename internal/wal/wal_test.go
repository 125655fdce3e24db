package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/chunk"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/internal/sst"
	"github.com/iamNilotpal/ember/pkg/logger"
)

func testConfig(t *testing.T, dir string, maxSize int64, capacity int) *Config[[]byte] {
	t.Helper()
	return &Config[[]byte]{
		Kind:          data.KV,
		Logger:        logger.NewNop(),
		MaxSize:       maxSize,
		ChunkCapacity: capacity,
		SyncOnAppend:  true,
		LogPath:       filepath.Join(dir, "test.wal"),
		JournalPath:   filepath.Join(dir, "test.chk"),
	}
}

func record(op data.Op, key, value string) data.Record[[]byte] {
	return data.Record[[]byte]{
		Op:        op,
		Key:       []byte(key),
		Value:     []byte(value),
		Timestamp: data.TimeFromNanos(1),
		Offset:    -1,
	}
}

func mustAppend(t *testing.T, w *Wal[[]byte], recs ...data.Record[[]byte]) {
	t.Helper()
	for _, rec := range recs {
		_, err := w.Append(rec)
		if err != nil && err != ErrTableFull {
			t.Fatalf("append: %v", err)
		}
	}
}

func TestAppendAndFind(t *testing.T) {
	w, err := Open(testConfig(t, t.TempDir(), 1<<20, 4))
	require.NoError(t, err)
	defer w.Close()

	mustAppend(t, w,
		record(data.OpUpsert, "hello", "world"),
		record(data.OpUpsert, "other", "value"),
	)

	rec, ok := w.Find([]byte("hello"))
	require.True(t, ok)
	require.Equal(t, []byte("world"), rec.Value)

	_, ok = w.Find([]byte("missing"))
	require.False(t, ok)
}

func TestLastWriterWinsAcrossChunks(t *testing.T) {
	// Capacity 2 forces the two versions of "hello" into different chunks.
	w, err := Open(testConfig(t, t.TempDir(), 1<<20, 2))
	require.NoError(t, err)
	defer w.Close()

	mustAppend(t, w,
		record(data.OpUpsert, "hello", "world"),
		record(data.OpUpsert, "pad-1", "x"),
		record(data.OpUpsert, "hello", "world2"),
	)

	require.Equal(t, 1, w.ChunkCount())

	rec, ok := w.Find([]byte("hello"))
	require.True(t, ok)
	require.Equal(t, []byte("world2"), rec.Value)
}

func TestChunkSwitchAtCapacity(t *testing.T) {
	w, err := Open(testConfig(t, t.TempDir(), 1<<20, 3))
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 7; i++ {
		mustAppend(t, w, record(data.OpUpsert, fmt.Sprintf("k%02d", i), "v"))
	}

	require.Equal(t, 2, w.ChunkCount())
	require.Equal(t, 7, w.RecordCount())

	// The journal only mirrors the in-progress chunk.
	size, err := os.Stat(filepath.Join(filepath.Dir(w.cfg.LogPath), "test.chk"))
	require.NoError(t, err)
	require.NotZero(t, size.Size())
}

func TestTableFullSignal(t *testing.T) {
	w, err := Open(testConfig(t, t.TempDir(), 1000, 5))
	require.NoError(t, err)
	defer w.Close()

	sawFull := false
	for i := 0; i < 40 && !sawFull; i++ {
		_, err := w.Append(record(data.OpUpsert, fmt.Sprintf("k%02d", i), fmt.Sprintf("v%02d", i)))
		if err == ErrTableFull {
			sawFull = true
			break
		}
		require.NoError(t, err)
	}
	require.True(t, sawFull, "WAL never reported its size tier")
	require.True(t, w.Full())
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(testConfig(t, dir, 1<<16, 3))
	require.NoError(t, err)
	defer w.Close()

	keys := []string{"echo", "alpha", "golf", "bravo", "delta", "foxtrot", "charlie"}
	for _, k := range keys {
		mustAppend(t, w, record(data.OpUpsert, k, "v-"+k))
	}

	dest := filepath.Join(dir, "out.sst")
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := w.Persist(f)
	require.NoError(t, err)
	require.Equal(t, int64(1<<16), n)
	require.NoError(t, f.Close())

	// The WAL restarts empty with truncated files.
	require.True(t, w.Empty())
	logSize, err := os.Stat(w.cfg.LogPath)
	require.NoError(t, err)
	require.Zero(t, logSize.Size())

	// Reopening the table yields exactly the appended record set, ascending.
	idx, err := sst.Open(&sst.Config[[]byte]{
		Kind:        data.KV,
		Logger:      logger.NewNop(),
		Path:        dest,
		BloomFilter: true,
	})
	require.NoError(t, err)
	defer idx.Close()

	pointers, err := idx.Pointers()
	require.NoError(t, err)
	require.Len(t, pointers, len(keys))
	for i := 1; i < len(pointers); i++ {
		require.Negative(t, data.KV.Compare(pointers[i-1].Key, pointers[i].Key))
	}

	for _, k := range keys {
		rec, ok, err := idx.Find([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		require.Equal(t, []byte("v-"+k), rec.Value)
	}
}

func TestPersistEmptyWal(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(testConfig(t, dir, 1<<16, 3))
	require.NoError(t, err)
	defer w.Close()

	dest := filepath.Join(dir, "out.sst")
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	n, err := w.Persist(f)
	require.ErrorIs(t, err, ErrEmptyWal)
	require.Zero(t, n)
}

func TestRecoverFromCrash(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, 1<<20, 10)

	w, err := Open(cfg)
	require.NoError(t, err)

	// 15 records with capacity 10: one sealed chunk plus 5 journaled records.
	for i := 0; i < 15; i++ {
		mustAppend(t, w, record(data.OpUpsert, fmt.Sprintf("k%02d", i), fmt.Sprintf("v%02d", i)))
	}
	require.Equal(t, 1, w.ChunkCount())

	// Crash: drop the handles without any orderly shutdown.
	require.NoError(t, w.Close())

	recovered, err := Open(cfg)
	require.NoError(t, err)
	defer recovered.Close()

	require.Equal(t, 1, recovered.ChunkCount())
	require.Equal(t, 15, recovered.RecordCount())

	for i := 0; i < 15; i++ {
		key := fmt.Sprintf("k%02d", i)
		rec, ok := recovered.Find([]byte(key))
		require.True(t, ok, "key %q lost in recovery", key)
		require.Equal(t, []byte(fmt.Sprintf("v%02d", i)), rec.Value)
	}
}

func TestRecoverTornJournalTail(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, 1<<20, 10)

	w, err := Open(cfg)
	require.NoError(t, err)
	mustAppend(t, w,
		record(data.OpUpsert, "intact", "yes"),
		record(data.OpUpsert, "second", "yes"),
	)
	require.NoError(t, w.Close())

	// Tear the journal mid-record.
	raw, err := os.ReadFile(cfg.JournalPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.JournalPath, raw[:len(raw)-3], 0o644))

	recovered, err := Open(cfg)
	require.NoError(t, err)
	defer recovered.Close()

	require.Equal(t, 1, recovered.RecordCount())
	_, ok := recovered.Find([]byte("intact"))
	require.True(t, ok)
	_, ok = recovered.Find([]byte("second"))
	require.False(t, ok)
}

// frameBounds walks the log file with the chunk codec and returns the byte
// range [start, end) of each frame's body.
func frameBounds(t *testing.T, path string) [][2]int64 {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var bounds [][2]int64
	h := bio.NewFixedBuffer(raw)
	for h.Remaining() > 0 {
		_, err := bio.ReadU32(h)
		require.NoError(t, err)

		start, err := h.Pos()
		require.NoError(t, err)

		_, err = chunk.Read(h, data.KV, true)
		require.NoError(t, err)

		end, err := h.Pos()
		require.NoError(t, err)

		bounds = append(bounds, [2]int64{start, end})
	}
	return bounds
}

func TestCRCFaultStopsReplay(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, 1<<20, 4)

	w, err := Open(cfg)
	require.NoError(t, err)

	// Twelve records with capacity 4: exactly three sealed frames.
	for i := 0; i < 12; i++ {
		mustAppend(t, w, record(data.OpUpsert, fmt.Sprintf("k%02d", i), fmt.Sprintf("v%02d", i)))
	}
	require.Equal(t, 3, w.ChunkCount())
	require.NoError(t, w.Close())

	bounds := frameBounds(t, cfg.LogPath)
	require.Len(t, bounds, 3)

	// Flip one bit in the middle of the second frame's body.
	f, err := os.OpenFile(cfg.LogPath, os.O_RDWR, 0o644)
	require.NoError(t, err)
	target := (bounds[1][0] + bounds[1][1]) / 2
	var b [1]byte
	_, err = f.ReadAt(b[:], target)
	require.NoError(t, err)
	b[0] ^= 0x10
	_, err = f.WriteAt(b[:], target)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recovered, err := Open(cfg)
	require.NoError(t, err)
	defer recovered.Close()

	// Replay keeps frame one and stops at the mismatch; frame three never
	// replays even though its own checksum is fine.
	require.Equal(t, 1, recovered.ChunkCount())
	require.Equal(t, 4, recovered.RecordCount())

	for i := 0; i < 4; i++ {
		_, ok := recovered.Find([]byte(fmt.Sprintf("k%02d", i)))
		require.True(t, ok)
	}
	for i := 4; i < 12; i++ {
		_, ok := recovered.Find([]byte(fmt.Sprintf("k%02d", i)))
		require.False(t, ok)
	}

	// The corrupt tail was truncated away; replay is now idempotent.
	again, err := Open(cfg)
	require.NoError(t, err)
	defer again.Close()
	require.Equal(t, 1, again.ChunkCount())
}
