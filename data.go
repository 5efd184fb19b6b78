package dimgo

import (
	"fmt"
	"io"
	"slices"
)

// Data is the record contract an embedding application implements.
//
// A record exposes a fixed number of numeric dimension projections and a
// versioned binary codec for everything else it carries. The engine frames
// the projections alongside the payload itself, so Encode must never
// serialize them and Decode receives them ready-made.
//
// Decode is invoked on the zero value of T, and Version is read from the
// zero value too, so both must be independent of record state.
type Data[T any] interface {
	// Dims returns the number of dimension projections the record carries.
	// It must equal the number of dimensions the world was constructed with.
	Dims() int

	// Version identifies the current payload format. Decode must accept any
	// version up to and including it.
	Version() uint32

	// Dim returns the record's projection onto dimension i. Dimension 0 is
	// the record's unique key within its chunk.
	Dim(i int) uint64

	// Encode writes the record payload. Dimension projections are framed by
	// the engine and must not be part of the payload.
	Encode(w io.Writer) error

	// Decode reconstructs a record from a payload written at the given
	// version. dims carries the projections the engine framed alongside the
	// payload; the slice must not be retained.
	Decode(version uint32, dims []uint64, payload []byte) (T, error)
}

// Tuple is the trivial record: its projections are its entire content. The
// payload is empty and everything round-trips through the framed dimensions.
// Tuples of any length satisfy Data, which makes them handy for tests and
// for worlds whose records are pure coordinates.
type Tuple []uint64

// Dims implements Data.
func (t Tuple) Dims() int { return len(t) }

// Version implements Data.
func (t Tuple) Version() uint32 { return 0 }

// Dim implements Data.
func (t Tuple) Dim(i int) uint64 { return t[i] }

// Encode implements Data. A tuple has no payload.
func (t Tuple) Encode(io.Writer) error { return nil }

// Decode implements Data.
func (t Tuple) Decode(version uint32, dims []uint64, payload []byte) (Tuple, error) {
	if len(payload) != 0 {
		return nil, fmt.Errorf("tuple payload must be empty, got %d bytes", len(payload))
	}
	return Tuple(slices.Clone(dims)), nil
}
