package dimgo

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"
)

// Iter executes the selection as a single streaming scan, yielding one
// deferred handle per matching record. Chunks are visited in odometer order
// (dimension 0 fastest) and each chunk is fully drained before the next one
// is loaded. Records are matched on their framed projections, so nothing is
// decoded until a handle is resolved.
//
// The scan snapshots the world's generation counter when it starts. Handles
// over still-undecoded records compare the live counter against that
// snapshot at resolution and fail with IterUpdatedError if the world moved
// on; already-decoded records are immune. A chunk load failure is yielded
// once as (nil, err), then the scan stops. Breaking out of the loop ends
// the scan early.
//
//	for lz, err := range w.Select().Range(0, 0, 10).Iter(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    v, err := lz.Get(ctx)
//	    ...
//	}
func (s *Selection[T]) Iter(ctx context.Context) iter.Seq2[*Lazy[T], error] {
	return func(yield func(*Lazy[T], error) bool) {
		start := time.Now()

		if s.err != nil {
			s.w.metrics.RecordScan(0, time.Since(start), s.err)
			s.w.logger.LogScan(ctx, 0, s.err)
			yield(nil, s.err)
			return
		}

		ranges, ok := s.plan()
		if !ok {
			s.w.metrics.RecordScan(0, time.Since(start), nil)
			s.w.logger.LogScan(ctx, 0, nil)
			return
		}

		snapshot := s.w.cache.generation()
		matches := 0

		for pos := range coords(ranges) {
			ch, err := s.w.cache.load(ctx, pos)
			if err != nil {
				s.w.metrics.RecordScan(matches, time.Since(start), err)
				s.w.logger.LogScan(ctx, matches, err)
				yield(nil, err)
				return
			}

			for _, e := range ch.collect(s.filter) {
				matches++
				lz := &Lazy[T]{cache: s.w.cache, entry: e, snapshot: snapshot}
				if !yield(lz, nil) {
					s.w.metrics.RecordScan(matches, time.Since(start), nil)
					s.w.logger.LogScan(ctx, matches, nil)
					return
				}
			}
		}

		s.w.metrics.RecordScan(matches, time.Since(start), nil)
		s.w.logger.LogScan(ctx, matches, nil)
	}
}

// Lazy is a deferred record handle yielded by a scan. It resolves at most
// once: the first Get decides the outcome and every later Get returns it
// unchanged, with no further I/O. Handles are safe for concurrent use but
// meant to be consumed by their scan's caller.
//
// Holding a handle keeps its record reachable even if the chunk is
// invalidated or replaced underneath it.
type Lazy[T Data[T]] struct {
	cache    *chunkCache[T]
	entry    *entry[T]
	snapshot uint64

	once  sync.Once
	value T
	err   error
}

// Dims returns the record's framed dimension projections, available without
// resolving the record.
func (l *Lazy[T]) Dims() []uint64 {
	return slices.Clone(l.entry.dims)
}

// Get resolves the handle to its record.
//
// A record already decoded in its chunk is returned directly; no staleness
// check applies because the handle pins it in memory. A still-undecoded
// record is guarded first: if the generation counter moved past the scan's
// snapshot, Get fails with IterUpdatedError before any decode work. If
// another consumer is mid-decode of the same record, Get fails with
// ErrValueTaken. Decode failures do not poison the underlying record;
// another handle may retry.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.once.Do(func() {
		start := time.Now()
		l.value, l.err = l.resolve(ctx)
		l.cache.metrics.RecordResolve(time.Since(start), l.err)
	})
	return l.value, l.err
}

func (l *Lazy[T]) resolve(ctx context.Context) (T, error) {
	if v, ok := l.entry.record(); ok {
		return v, nil
	}
	if cur := l.cache.generation(); cur != l.snapshot {
		var zero T
		return zero, &IterUpdatedError{Expected: l.snapshot, Current: cur}
	}
	return l.entry.resolve(ctx)
}
