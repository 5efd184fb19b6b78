package dimgo

import (
	"errors"
	"fmt"
)

var (
	// ErrValueNotFound is returned when a lookup matches no stored record.
	ErrValueNotFound = errors.New("value not found")

	// ErrValueMoved is returned when the record stored under a key no longer
	// agrees with that key: the record's key dimension changed without the
	// record being relocated. Callers should re-query.
	ErrValueMoved = errors.New("value moved")

	// ErrValueTaken is returned when a handle races another consumer for the
	// same undecoded record and loses.
	ErrValueTaken = errors.New("value taken")

	// ErrChunkNotFound is returned by storage backends for chunks that have
	// never been written. The cache consumes it and materializes an empty
	// chunk, so callers of World never observe it.
	ErrChunkNotFound = errors.New("chunk not found")
)

// ValueOutOfRangeError indicates a dimension projection outside the domain
// configured for its axis. It is returned synchronously, before any I/O.
type ValueOutOfRangeError struct {
	Range Interval
	Value uint64
}

func (e *ValueOutOfRangeError) Error() string {
	return fmt.Sprintf("value %d out of range %s", e.Value, e.Range)
}

// DimensionCountError indicates a record or lookup with the wrong number of
// dimension projections for its world.
type DimensionCountError struct {
	Expected int
	Actual   int
}

func (e *DimensionCountError) Error() string {
	return fmt.Sprintf("dimension count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// InvalidDimensionError indicates a dimension index outside the world's axes.
type InvalidDimensionError struct {
	Dimension int
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// IterUpdatedError indicates that the world mutated between a scan observing
// a record and the record being resolved. The handle is permanently stale;
// other handles from the same scan are unaffected, and the caller re-plans
// if it wants fresh data.
type IterUpdatedError struct {
	// Expected is the generation the scan started at.
	Expected uint64
	// Current is the generation observed at resolution.
	Current uint64
}

func (e *IterUpdatedError) Error() string {
	return fmt.Sprintf("iterator updated: expected generation %d, current %d", e.Expected, e.Current)
}
