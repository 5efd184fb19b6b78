package dimgo

import (
	"errors"
	"fmt"
	"strings"
)

// Interval is a half-open range [Start, End) of raw dimension values.
type Interval struct {
	Start uint64
	End   uint64
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d)", iv.Start, iv.End)
}

// Empty reports whether the interval covers no values.
func (iv Interval) Empty() bool {
	return iv.End <= iv.Start
}

// Contains reports whether v falls inside the interval.
func (iv Interval) Contains(v uint64) bool {
	return v >= iv.Start && v < iv.End
}

// Intersect returns the overlap of two intervals. The result may be empty.
func (iv Interval) Intersect(other Interval) Interval {
	out := iv
	if other.Start > out.Start {
		out.Start = other.Start
	}
	if other.End < out.End {
		out.End = other.End
	}
	return out
}

// Dim describes one axis of a world: the half-open domain of raw values
// records may take on that axis, and the granularity that buckets raw values
// into chunk coordinates. Both are fixed for the lifetime of a world.
type Dim struct {
	// Start is the inclusive lower bound of the domain.
	Start uint64
	// End is the exclusive upper bound of the domain. Must be greater than Start.
	End uint64
	// Granularity is the number of raw values one chunk covers on this axis.
	// Must be positive.
	Granularity uint64
}

func (d Dim) String() string {
	return fmt.Sprintf("%s/%d", d.domain(), d.Granularity)
}

func (d Dim) validate() error {
	if d.Granularity == 0 {
		return errors.New("granularity must be positive")
	}
	if d.End <= d.Start {
		return fmt.Errorf("empty domain %s", d.domain())
	}
	return nil
}

func (d Dim) domain() Interval {
	return Interval{Start: d.Start, End: d.End}
}

// coordOf maps a raw value to its chunk coordinate on this axis. Values
// outside the domain fail before any I/O is scheduled.
func (d Dim) coordOf(v uint64) (uint64, error) {
	if v < d.Start || v >= d.End {
		return 0, &ValueOutOfRangeError{Range: d.domain(), Value: v}
	}
	return (v - d.Start) / d.Granularity, nil
}

// valueRange is the inverse of coordOf: the half-open interval of raw values
// bucketed into coordinate c, clamped to the domain end.
func (d Dim) valueRange(c uint64) Interval {
	lo := d.Start + c*d.Granularity
	hi := lo + d.Granularity
	if hi > d.End || hi < lo {
		hi = d.End
	}
	return Interval{Start: lo, End: hi}
}

// coordRange maps a non-empty raw-value interval, already clamped to the
// domain, to the half-open coordinate interval covering it.
func (d Dim) coordRange(iv Interval) Interval {
	lo := (iv.Start - d.Start) / d.Granularity
	hi := (iv.End - 1 - d.Start) / d.Granularity
	return Interval{Start: lo, End: hi + 1}
}

// chunks returns the number of coordinates covering the domain.
func (d Dim) chunks() uint64 {
	span := d.End - d.Start
	return (span + d.Granularity - 1) / d.Granularity
}

// Pos is a chunk coordinate: one bucket index per dimension.
type Pos []uint64

func (p Pos) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, c := range p {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", c)
	}
	sb.WriteByte(')')
	return sb.String()
}

// Clone returns an independent copy of the coordinate.
func (p Pos) Clone() Pos {
	out := make(Pos, len(p))
	copy(out, p)
	return out
}
