package options

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	opts := NewDefaultOptions()

	require.Equal(t, DefaultDataDir, opts.DataDir)
	require.Equal(t, DefaultWalMaxSize, opts.WalOptions.MaxSize)
	require.Equal(t, DefaultChunkCapacity, opts.WalOptions.ChunkCapacity)
	require.True(t, opts.WalOptions.SyncOnAppend)
	require.True(t, opts.TableOptions.BloomFilter)
	require.Equal(t, DefaultBloomFalsePositiveRate, opts.TableOptions.BloomFalsePositiveRate)
}

func TestFunctionalOptions(t *testing.T) {
	opts := NewDefaultOptions()

	WithDataDir("/tmp/ember-test")(&opts)
	WithWalMaxSize(1 << 20)(&opts)
	WithChunkCapacity(32)(&opts)
	WithSyncOnAppend(false)(&opts)
	WithBloomFilter(false)(&opts)

	require.Equal(t, "/tmp/ember-test", opts.DataDir)
	require.Equal(t, int64(1<<20), opts.WalOptions.MaxSize)
	require.Equal(t, 32, opts.WalOptions.ChunkCapacity)
	require.False(t, opts.WalOptions.SyncOnAppend)
	require.False(t, opts.TableOptions.BloomFilter)
}

func TestInvalidOverridesIgnored(t *testing.T) {
	opts := NewDefaultOptions()

	WithDataDir("   ")(&opts)
	WithWalMaxSize(1)(&opts)
	WithChunkCapacity(0)(&opts)

	require.Equal(t, DefaultDataDir, opts.DataDir)
	require.Equal(t, DefaultWalMaxSize, opts.WalOptions.MaxSize)
	require.Equal(t, DefaultChunkCapacity, opts.WalOptions.ChunkCapacity)
}
