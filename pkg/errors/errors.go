// Package errors provides the structured error system used throughout the
// Ember engine. When a storage engine fails, "something went wrong" is not
// enough: the caller needs to know which file, at which offset, during which
// operation, and whether the condition is corruption, a caller mistake, or an
// environmental problem it can act on.
//
// The system is built around a hierarchical structure that starts with a
// foundational baseError and extends into domain-specific error types.
// Different parts of the engine fail in fundamentally different ways and
// require different contextual information for effective diagnosis: a
// validation error needs to know which field failed and what rule was
// violated, a storage error needs the file and byte offset involved, and a
// table error needs the table id and the key being processed. By capturing
// this domain-specific context at the point of failure, the system enables
// much more precise error handling throughout the stack.
//
// Central to the design is the ErrorCode taxonomy in codes.go, which mirrors
// the engine's documented failure modes: CORRUPT for undecodable persisted
// data, UNEXPECTED_WAL_STATE for an ambiguous data directory at startup,
// UNKNOWN_CHUNK_SIZE for the fatal programming error of persisting an
// unsized chunk, EMPTY_WAL and ID_NOT_FOUND for conditions the manager layer
// translates or surfaces, and the IO_ERROR family for environmental
// failures. Codes enable programmatic handling that doesn't rely on parsing
// error messages and give monitoring systems a stable categorization.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsValidationError checks if the given error is a ValidationError or
// contains one in its error chain.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stdErrors.As(err, &ve)
}

// IsStorageError determines if an error is related to persistence
// operations: WAL appends, chunk serialization, table writes, file mapping.
func IsStorageError(err error) bool {
	var se *StorageError
	return stdErrors.As(err, &se)
}

// IsTableError identifies errors that occurred during operations against a
// registered sorted table, such as point lookups or compaction.
func IsTableError(err error) bool {
	var te *TableError
	return stdErrors.As(err, &te)
}

// AsValidationError safely extracts a ValidationError from an error chain,
// providing access to validation-specific context such as which field failed
// and what rule was violated.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsStorageError extracts StorageError context from an error chain,
// providing access to storage-specific information such as table ids, file
// offsets, file names, and paths.
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsTableError extracts TableError context, providing access to the table
// id, the operation being performed, and the key being processed.
func AsTableError(err error) (*TableError, bool) {
	var te *TableError
	if stdErrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or
// returns ErrorCodeInternal for errors that don't have specific codes.
func GetErrorCode(err error) ErrorCode {
	if ve, ok := AsValidationError(err); ok {
		return ve.Code()
	}
	if se, ok := AsStorageError(err); ok {
		return se.Code()
	}
	if te, ok := AsTableError(err); ok {
		return te.Code()
	}
	return ErrorCodeInternal
}

// HasCode reports whether the error chain carries the given error code.
// This is the primary way callers branch on engine failure modes:
//
//	if errors.HasCode(err, errors.ErrorCodeCorrupt) {
//	    // stop replay, keep the valid prefix
//	}
func HasCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// GetErrorDetails extracts structured details from any error that supports
// them, returning an empty map for errors without details.
func GetErrorDetails(err error) map[string]any {
	if ve, ok := AsValidationError(err); ok {
		if details := ve.Details(); details != nil {
			return details
		}
	}
	if se, ok := AsStorageError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}
	if te, ok := AsTableError(err); ok {
		if details := te.Details(); details != nil {
			return details
		}
	}
	return make(map[string]any)
}

// ClassifyDirectoryCreationError analyzes directory creation failures and
// returns appropriate error codes based on the underlying system error.
// This helps embedders understand exactly what went wrong and how they
// might fix it.
func ClassifyDirectoryCreationError(err error, path string) error {
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to create data directory",
		).WithPath(path).
			WithDetail("operation", "directory_creation").
			WithDetail("suggestion", "check directory permissions or run with elevated privileges")
	}

	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"Insufficient disk space to create data directory",
				).WithPath(path).
					WithDetail("operation", "directory_creation").
					WithDetail("suggestion", "free up disk space or choose a different location")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"Cannot create directory on read-only filesystem",
				).WithPath(path).
					WithDetail("operation", "directory_creation").
					WithDetail("suggestion", "remount filesystem with write permissions")
			}
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "Failed to create data directory",
	).WithPath(path).WithDetail("operation", "directory_creation")
}

// ClassifyFileOpenError analyzes file opening failures and returns
// appropriate error codes based on the underlying system error. This
// provides much more specific information than a generic I/O error.
func ClassifyFileOpenError(err error, path, fileName string) error {
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to open file",
		).WithFileName(fileName).WithPath(path).
			WithDetail("operation", "file_open")
	}

	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull, "Insufficient disk space to open file",
				).WithFileName(fileName).WithPath(path).
					WithDetail("operation", "file_open")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"Cannot open file for writing on read-only filesystem",
				).WithFileName(fileName).WithPath(path).
					WithDetail("operation", "file_open")
			}
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "Failed to open file",
	).WithFileName(fileName).WithPath(path).WithDetail("operation", "file_open")
}
