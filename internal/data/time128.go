package data

import (
	"io"
	"time"

	"github.com/iamNilotpal/ember/internal/bio"
)

// Time128 is a signed 128-bit count of nanoseconds since the Unix epoch,
// carried as two machine words with defined endianness: the low word first
// on the wire, then the high word, both little-endian. Go has no native
// 128-bit integer, so comparison and sign handling live here.
type Time128 struct {
	Hi int64
	Lo uint64
}

// Time128Size is the wire width of a timestamp in bytes.
const Time128Size = 16

// Now returns the current time as a Time128.
func Now() Time128 {
	return TimeFromNanos(time.Now().UnixNano())
}

// TimeFromNanos sign-extends a 64-bit nanosecond count into 128 bits.
func TimeFromNanos(ns int64) Time128 {
	// Arithmetic shift yields 0 for non-negative values and -1 for negative
	// ones, which is exactly the two's-complement high word.
	return Time128{Hi: ns >> 63, Lo: uint64(ns)}
}

// Nanos truncates the timestamp back to 64 bits. Values outside the int64
// range wrap; the engine only produces sign-extended 64-bit times today.
func (t Time128) Nanos() int64 {
	return int64(t.Lo)
}

// Compare orders timestamps as signed 128-bit integers.
func (t Time128) Compare(o Time128) int {
	if t.Hi != o.Hi {
		if t.Hi < o.Hi {
			return -1
		}
		return 1
	}
	if t.Lo != o.Lo {
		if t.Lo < o.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// Write emits the timestamp in wire order: low word, then high word.
func (t Time128) Write(w io.Writer) error {
	if err := bio.WriteU64(w, t.Lo); err != nil {
		return err
	}
	return bio.WriteU64(w, uint64(t.Hi))
}

// ReadTime128 is the inverse of Write.
func ReadTime128(r io.Reader) (Time128, error) {
	lo, err := bio.ReadU64(r)
	if err != nil {
		return Time128{}, err
	}
	hi, err := bio.ReadU64(r)
	if err != nil {
		return Time128{}, err
	}
	return Time128{Hi: int64(hi), Lo: lo}, nil
}
