package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageErrorContext(t *testing.T) {
	cause := stdErrors.New("disk went away")
	err := NewStorageError(cause, ErrorCodeCorrupt, "chunk checksum mismatch").
		WithTableID("0196c7a3-1111-2222-3333-444455556666").
		WithPath("/data/x.wal").
		WithOffset(4096).
		WithDetail("expected", uint32(1)).
		WithDetail("actual", uint32(2))

	require.Equal(t, "chunk checksum mismatch", err.Error())
	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrorCodeCorrupt, err.Code())
	require.Equal(t, int64(4096), err.Offset())
	require.Equal(t, "/data/x.wal", err.Path())

	require.True(t, IsStorageError(err))
	require.True(t, HasCode(err, ErrorCodeCorrupt))
	require.False(t, HasCode(err, ErrorCodeIO))

	details := GetErrorDetails(err)
	require.Equal(t, uint32(1), details["expected"])
}

func TestWrappedErrorsSurviveChains(t *testing.T) {
	inner := NewStorageError(nil, ErrorCodeUnexpectedWalState, "two logs")
	wrapped := fmt.Errorf("recovery: %w", inner)

	require.True(t, IsStorageError(wrapped))
	require.True(t, HasCode(wrapped, ErrorCodeUnexpectedWalState))

	se, ok := AsStorageError(wrapped)
	require.True(t, ok)
	require.Equal(t, ErrorCodeUnexpectedWalState, se.Code())
}

func TestTableError(t *testing.T) {
	err := NewTableError(nil, ErrorCodeIDNotFound, "no such table").
		WithTableID("abc").
		WithOperation("compact").
		WithKey("hello")

	require.True(t, IsTableError(err))
	require.Equal(t, "abc", err.TableID())
	require.Equal(t, "compact", err.Operation())
	require.Equal(t, "hello", err.Key())
	require.Equal(t, ErrorCodeIDNotFound, GetErrorCode(err))
}

func TestValidationError(t *testing.T) {
	err := NewFieldRangeError("key", 70000, 1, 65535)

	require.True(t, IsValidationError(err))
	require.Equal(t, "key", err.Field())
	require.Equal(t, "range", err.Rule())
	require.Equal(t, 70000, err.Provided())
	require.Equal(t, ErrorCodeInvalidInput, err.Code())

	req := NewRequiredFieldError("config")
	require.Equal(t, "config", req.Field())
	require.Equal(t, "required", req.Rule())
}

func TestGetErrorCodeFallback(t *testing.T) {
	require.Equal(t, ErrorCodeInternal, GetErrorCode(stdErrors.New("plain")))
	require.False(t, HasCode(nil, ErrorCodeInternal))
}
