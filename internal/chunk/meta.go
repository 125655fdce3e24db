package chunk

import (
	"io"

	"github.com/google/uuid"
	"github.com/iamNilotpal/ember/internal/bio"
	"github.com/iamNilotpal/ember/internal/data"
	"github.com/iamNilotpal/ember/pkg/errors"
)

// Magic marks every metadata block. Little-endian on the wire, so the first
// two bytes of a chunk or table header are 0xEB 0x01.
const Magic uint16 = 0x01EB

// Table tags what a metadata block describes: a log chunk or a sorted
// table header. One byte on the wire.
type Table byte

const (
	// TableWal marks a chunk of the write-ahead log (also used for the
	// chunks embedded in a sorted table, which are log chunks at rest).
	TableWal Table = 0

	// TableIndex marks the header of a sorted table.
	TableIndex Table = 1
)

// IDSize is the wire width of a metadata id: one ASCII UUID.
const IDSize = 36

// Meta is the metadata block shared by chunks and table headers:
//
//	magic     : 2
//	table     : 1
//	id        : 36   (ASCII UUID)
//	count     : 8
//	first_key : kind-specific key serialization
//	last_key  : kind-specific key serialization
//
// For a chunk, count is the number of records; for a table header it is
// the number of chunks. Size caches the chunk's total on-disk footprint
// (metadata, the size word, and records) once the first serialization has
// computed it; zero means not yet known.
type Meta[K any] struct {
	Table Table
	ID    string
	Count uint64
	First K
	Last  K
	Size  uint64
}

// WireSize reports the exact number of bytes Write emits.
func (m *Meta[K]) WireSize(kind data.Kind[K]) int {
	return 2 + 1 + IDSize + 8 + kind.KeySize(m.First) + kind.KeySize(m.Last)
}

// Write emits the metadata block.
func (m *Meta[K]) Write(w io.Writer, kind data.Kind[K]) (int, error) {
	if len(m.ID) != IDSize {
		return 0, errors.NewValidationError(nil, errors.ErrorCodeInternal, "metadata id is not a 36-byte UUID").
			WithField("id").WithProvided(m.ID)
	}

	if err := bio.WriteU16(w, Magic); err != nil {
		return 0, err
	}
	if err := bio.WriteU8(w, byte(m.Table)); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, m.ID); err != nil {
		return 0, err
	}
	if err := bio.WriteU64(w, m.Count); err != nil {
		return 0, err
	}
	if err := kind.WriteKey(w, m.First); err != nil {
		return 0, err
	}
	if err := kind.WriteKey(w, m.Last); err != nil {
		return 0, err
	}

	return m.WireSize(kind), nil
}

// ReadMeta is the inverse of Meta.Write. It validates the magic and the
// table tag and leaves Size zero for the caller to fill in.
func ReadMeta[K any](r io.Reader, kind data.Kind[K]) (Meta[K], int, error) {
	var zero Meta[K]

	magic, err := bio.ReadU16(r)
	if err != nil {
		return zero, 0, corrupt(err, "failed to read metadata magic")
	}
	if magic != Magic {
		return zero, 0, corrupt(nil, "bad metadata magic").WithDetail("magic", magic)
	}

	table, err := bio.ReadU8(r)
	if err != nil {
		return zero, 0, corrupt(err, "failed to read metadata table tag")
	}
	if Table(table) != TableWal && Table(table) != TableIndex {
		return zero, 0, corrupt(nil, "unknown metadata table tag").WithDetail("table", table)
	}

	id := make([]byte, IDSize)
	if _, err := io.ReadFull(r, id); err != nil {
		return zero, 0, corrupt(err, "failed to read metadata id")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return zero, 0, corrupt(err, "metadata id is not a valid UUID")
	}

	count, err := bio.ReadU64(r)
	if err != nil {
		return zero, 0, corrupt(err, "failed to read metadata count")
	}

	first, err := kind.ReadKey(r)
	if err != nil {
		return zero, 0, corrupt(err, "failed to read metadata first key")
	}
	last, err := kind.ReadKey(r)
	if err != nil {
		return zero, 0, corrupt(err, "failed to read metadata last key")
	}

	m := Meta[K]{Table: Table(table), ID: string(id), Count: count, First: first, Last: last}
	return m, m.WireSize(kind), nil
}

func corrupt(err error, msg string) *errors.StorageError {
	return errors.NewStorageError(err, errors.ErrorCodeCorrupt, msg)
}
