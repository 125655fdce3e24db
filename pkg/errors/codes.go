package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any part of the engine. These codes provide the foundation
// layer of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary: reading or writing WAL and table files, mapping and
	// unmapping file regions, and directory manipulation.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents caller-side errors where the provided
	// data doesn't meet the engine's requirements or constraints, such as an
	// oversized key or a nil configuration.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected failures that don't fit into
	// other categories: bugs, assertion failures, or other programming errors
	// that shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes extend the base taxonomy with the failure
// modes of the on-disk structures: the chunked WAL, its side journal, and
// the immutable sorted tables.
const (
	// ErrorCodeCorrupt indicates that persisted data could not be decoded:
	// a malformed header, a CRC mismatch after a valid prefix, or a pointer
	// or record whose lengths are inconsistent with the remaining bytes.
	ErrorCodeCorrupt ErrorCode = "CORRUPT"

	// ErrorCodeUnexpectedWalState indicates that the data directory holds
	// more than one write-ahead log or more than one side journal. The
	// engine cannot decide which file carries the authoritative tail, so
	// startup refuses to proceed.
	ErrorCodeUnexpectedWalState ErrorCode = "UNEXPECTED_WAL_STATE"

	// ErrorCodeUnknownChunkSize indicates that a chunk reached the table
	// writer before its on-disk size was ever computed. Chunk sizes are
	// cached by the first serialization, so hitting this code is a
	// programming error rather than an operational condition.
	ErrorCodeUnknownChunkSize ErrorCode = "UNKNOWN_CHUNK_SIZE"

	// ErrorCodeEmptyWal indicates that persistence was requested for a WAL
	// holding zero records. The manager translates this into a successful
	// no-op; the code exists so lower layers can report it precisely.
	ErrorCodeEmptyWal ErrorCode = "EMPTY_WAL"

	// ErrorCodeIDNotFound indicates that a compaction input id does not
	// name any registered table.
	ErrorCodeIDNotFound ErrorCode = "ID_NOT_FOUND"

	// ErrorCodeRecoveryFailed indicates that the startup scan of the data
	// directory could not be completed, leaving the engine without a
	// consistent view of its own files.
	ErrorCodeRecoveryFailed ErrorCode = "RECOVERY_FAILED"

	// ErrorCodePermissionDenied indicates insufficient permissions to access
	// a file or directory. Distinct from generic IO errors because it has a
	// specific resolution path: adjust permissions or run with elevated
	// privileges.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of
	// space. Requires operator intervention before writes can continue.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted
	// read-only and the data directory cannot be written.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)
