package dimgo

import (
	"context"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Select starts an axis-aligned range query. Without further narrowing the
// selection covers every dimension's full domain.
//
// Example:
//
//	for lz, err := range w.Select().Range(0, 0, 10).Range(1, 0, 10).Iter(ctx) {
//	    ...
//	}
func (w *World[T]) Select() *Selection[T] {
	filter := make([]Interval, len(w.dims))
	for i, d := range w.dims {
		filter[i] = d.domain()
	}
	return &Selection[T]{w: w, filter: filter}
}

// Selection is a fluent, axis-aligned box filter over a world's dimensions.
// Narrowing methods intersect, so they commute; a selection that becomes
// empty on any axis yields no results and performs no I/O. A fully-built
// selection may be executed multiple times; every execution is an
// independent scan with its own staleness snapshot.
type Selection[T Data[T]] struct {
	w      *World[T]
	filter []Interval
	err    error
}

// Range narrows dimension dim to the half-open interval [start, end),
// intersected with any prior narrowing and with the dimension's domain.
// An out-of-range dim index surfaces as an error at execution.
func (s *Selection[T]) Range(dim int, start, end uint64) *Selection[T] {
	if s.err != nil {
		return s
	}
	if dim < 0 || dim >= len(s.filter) {
		s.err = &InvalidDimensionError{Dimension: dim}
		return s
	}
	s.filter[dim] = s.filter[dim].Intersect(Interval{Start: start, End: end})
	return s
}

// At narrows dimension dim to the single value v.
func (s *Selection[T]) At(dim int, v uint64) *Selection[T] {
	return s.Range(dim, v, v+1)
}

// Count drains a scan and returns the number of matching records. Matching
// uses the framed projections alone, so no payload is decoded.
func (s *Selection[T]) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range s.Iter(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Records drains a scan, resolving every matching record.
func (s *Selection[T]) Records(ctx context.Context) ([]T, error) {
	var out []T
	for lz, err := range s.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		v, err := lz.Get(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Prefetch warms the cache with every chunk the selection covers, loading up
// to GOMAXPROCS chunks concurrently. It does not change scan semantics:
// ordering and staleness behave exactly as without it.
func (s *Selection[T]) Prefetch(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	ranges, ok := s.plan()
	if !ok {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for pos := range coords(ranges) {
		g.Go(func() error {
			_, err := s.w.cache.load(ctx, pos)
			return err
		})
	}
	return g.Wait()
}

// plan converts the filter to per-dimension coordinate ranges, or reports
// false when the selection is empty on some axis.
func (s *Selection[T]) plan() ([]Interval, bool) {
	ranges := make([]Interval, len(s.filter))
	for i, iv := range s.filter {
		if iv.Empty() {
			return nil, false
		}
		ranges[i] = s.w.dims[i].coordRange(iv)
	}
	return ranges, true
}

// coords enumerates the Cartesian product of per-dimension coordinate ranges
// in odometer order with dimension 0 fastest-varying. This ordering is a
// documented contract; tests may rely on it. The sequence is lazy, finite,
// and restartable: ranging over it again starts a fresh enumeration.
func coords(ranges []Interval) iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		cur := make(Pos, len(ranges))
		for i, r := range ranges {
			cur[i] = r.Start
		}
		for {
			if !yield(cur.Clone()) {
				return
			}
			i := 0
			for ; i < len(cur); i++ {
				cur[i]++
				if cur[i] < ranges[i].End {
					break
				}
				cur[i] = ranges[i].Start
			}
			if i == len(cur) {
				return
			}
		}
	}
}
