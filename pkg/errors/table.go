package errors

// TableError is a specialized error type for operations against registered
// sorted tables: point lookups, pointer iteration, and compaction. It embeds
// baseError and adds the table and key context needed to diagnose which
// lookup against which table went wrong.
type TableError struct {
	*baseError
	tableID   string // Identifier of the table involved in the failed operation.
	operation string // The operation being performed: "find", "records", "read_value", "read_chunk", "compact".
	key       string // Rendered form of the key being processed, when applicable.
}

// NewTableError creates a new table-specific error.
func NewTableError(err error, code ErrorCode, msg string) *TableError {
	return &TableError{baseError: NewBaseError(err, code, msg)}
}

// WithTableID sets the identifier of the table involved in the error.
func (te *TableError) WithTableID(id string) *TableError {
	te.tableID = id
	return te
}

// WithOperation records which table operation failed.
func (te *TableError) WithOperation(op string) *TableError {
	te.operation = op
	return te
}

// WithKey captures the key being processed when the error occurred.
func (te *TableError) WithKey(key string) *TableError {
	te.key = key
	return te
}

// WithDetail adds contextual information while maintaining the TableError type.
func (te *TableError) WithDetail(key string, value any) *TableError {
	te.baseError.WithDetail(key, value)
	return te
}

// TableID returns the identifier of the table involved in the error.
func (te *TableError) TableID() string {
	return te.tableID
}

// Operation returns the name of the table operation that failed.
func (te *TableError) Operation() string {
	return te.operation
}

// Key returns the rendered key being processed when the error occurred.
func (te *TableError) Key() string {
	return te.key
}
