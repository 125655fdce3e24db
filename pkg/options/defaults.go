package options

const (
	// Specifies the default base directory where the engine stores its files.
	// If no other directory is specified during initialization, this path is used.
	DefaultDataDir = "/var/lib/emberdb"

	// Specifies the default WAL size tier in bytes (128MB). Every sorted
	// table produced under the default tier is exactly this large.
	DefaultWalMaxSize int64 = 128 * 1024 * 1024

	// Represents the minimum allowed WAL size tier in bytes. Kept small on
	// purpose: tests exercise tiny tiers to force rotation quickly.
	MinWalMaxSize int64 = 512

	// Specifies the default number of records per in-memory chunk.
	DefaultChunkCapacity = 256

	// Specifies the default false-positive rate for table bloom filters.
	DefaultBloomFalsePositiveRate = 0.01
)

// Holds the default configuration settings for an engine instance.
func NewDefaultOptions() Options {
	return Options{
		DataDir: DefaultDataDir,
		WalOptions: &walOptions{
			MaxSize:       DefaultWalMaxSize,
			ChunkCapacity: DefaultChunkCapacity,
			SyncOnAppend:  true,
		},
		TableOptions: &tableOptions{
			BloomFilter:            true,
			BloomFalsePositiveRate: DefaultBloomFalsePositiveRate,
		},
	}
}
