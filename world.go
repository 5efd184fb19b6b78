package dimgo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// World binds dimension descriptors and a storage backend to a chunk cache.
// It is the entry point for point lookups, mutations, and range selects.
//
// A world is safe for concurrent use. Mutations of one chunk never block
// readers of other chunks, and every mutation writes through to the backend
// before it becomes visible.
type World[T Data[T]] struct {
	dims    []Dim
	cache   *chunkCache[T]
	logger  *Logger
	metrics MetricsCollector
}

// New creates a world over the given dimensions and storage backend.
// Dimensions are fixed for the lifetime of the world.
func New[T Data[T]](dims []Dim, io IoHandle, optFns ...Option) (*World[T], error) {
	if len(dims) == 0 {
		return nil, errors.New("dimgo: at least one dimension required")
	}
	for i, d := range dims {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("dimgo: dimension %d: %w", i, err)
		}
	}
	if io == nil {
		return nil, errors.New("dimgo: io handle required")
	}

	o := applyOptions(optFns)
	dims = slices.Clone(dims)

	return &World[T]{
		dims:    dims,
		cache:   newChunkCache[T](dims, io, o),
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// Dims returns the world's dimension descriptors.
func (w *World[T]) Dims() []Dim {
	return slices.Clone(w.dims)
}

// Generation returns the current value of the world-wide generation counter.
// It increments on every mutation, invalidation, and stale-chunk reload.
func (w *World[T]) Generation() uint64 {
	return w.cache.generation()
}

// Stats is a point-in-time snapshot of cache state.
type Stats struct {
	ResidentChunks int64
	ResidentBytes  int64
	Generation     uint64
}

// Stats returns a snapshot of the world's cache state.
func (w *World[T]) Stats() Stats {
	return Stats{
		ResidentChunks: w.cache.residentChunks.Load(),
		ResidentBytes:  w.cache.residentBytes.Load(),
		Generation:     w.cache.generation(),
	}
}

// Get returns the record whose projections equal the queried values, one per
// dimension. Values outside a dimension's domain fail before any I/O; a
// record matching on the key dimension but disagreeing elsewhere is not
// returned.
func (w *World[T]) Get(ctx context.Context, dims ...uint64) (T, error) {
	start := time.Now()
	v, err := w.get(ctx, dims)
	w.metrics.RecordGet(time.Since(start), err)
	w.logger.LogGet(ctx, dims, err)
	return v, err
}

func (w *World[T]) get(ctx context.Context, query []uint64) (T, error) {
	var zero T

	pos, err := w.queryPos(query)
	if err != nil {
		return zero, err
	}
	v, err := w.cache.get(ctx, pos, query[0])
	if err != nil {
		return zero, err
	}
	for i, q := range query {
		if v.Dim(i) != q {
			return zero, ErrValueNotFound
		}
	}
	return v, nil
}

// Insert stores a record, replacing any record already holding its key
// dimension within the same chunk. The chunk is written through to the
// backend before the insert becomes visible; on a write failure the cache
// is left as it was.
func (w *World[T]) Insert(ctx context.Context, value T) error {
	start := time.Now()
	err := w.insert(ctx, value)
	w.metrics.RecordInsert(time.Since(start), err)
	w.logger.LogInsert(ctx, recordKey(value), err)
	return err
}

func (w *World[T]) insert(ctx context.Context, value T) error {
	pos, dims, err := w.recordPos(value)
	if err != nil {
		return err
	}
	key := dims[0]

	ch, err := w.cache.load(ctx, pos)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	prev, existed := ch.entries[key]
	ch.entries[key] = newDecodedEntry(dims, w.cache.version, value)

	if err := w.writeThrough(ctx, ch); err != nil {
		if existed {
			ch.entries[key] = prev
		} else {
			delete(ch.entries, key)
		}
		return err
	}
	return nil
}

// Remove deletes the record whose projections equal the queried values.
// Removing a record that is not stored fails with ErrValueNotFound.
func (w *World[T]) Remove(ctx context.Context, dims ...uint64) error {
	start := time.Now()
	err := w.remove(ctx, dims)
	w.metrics.RecordRemove(time.Since(start), err)
	w.logger.LogRemove(ctx, dims, err)
	return err
}

func (w *World[T]) remove(ctx context.Context, query []uint64) error {
	pos, err := w.queryPos(query)
	if err != nil {
		return err
	}
	key := query[0]

	ch, err := w.cache.load(ctx, pos)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	prev, existed := ch.entries[key]
	if !existed {
		return ErrValueNotFound
	}
	for i, q := range query {
		if prev.dims[i] != q {
			return ErrValueNotFound
		}
	}

	delete(ch.entries, key)
	if err := w.writeThrough(ctx, ch); err != nil {
		ch.entries[key] = prev
		return err
	}
	return nil
}

// Update applies fn to the record at the queried projections and stores the
// result. When fn changes any projection the record relocates: it is removed
// from its old cell and inserted into the new one. The two writes are
// sequential, not transactional; a failed insert puts the original back.
func (w *World[T]) Update(ctx context.Context, fn func(T) (T, error), dims ...uint64) error {
	start := time.Now()
	err := w.update(ctx, fn, dims)
	w.metrics.RecordUpdate(time.Since(start), err)
	w.logger.LogUpdate(ctx, dims, err)
	return err
}

func (w *World[T]) update(ctx context.Context, fn func(T) (T, error), query []uint64) error {
	oldPos, err := w.queryPos(query)
	if err != nil {
		return err
	}
	old, err := w.cache.get(ctx, oldPos, query[0])
	if err != nil {
		return err
	}
	for i, q := range query {
		if old.Dim(i) != q {
			return ErrValueNotFound
		}
	}

	next, err := fn(old)
	if err != nil {
		return err
	}

	newPos, newDims, err := w.recordPos(next)
	if err != nil {
		return err
	}

	if slices.Equal(newPos, oldPos) && newDims[0] == query[0] {
		return w.insert(ctx, next)
	}

	if err := w.remove(ctx, query); err != nil {
		return err
	}
	if err := w.insert(ctx, next); err != nil {
		if rerr := w.insert(ctx, old); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// Invalidate drops the cached chunk at pos, forcing the next access to
// re-read it from the backend. Scans that already observed the chunk detect
// the invalidation through the generation counter.
func (w *World[T]) Invalidate(pos Pos) error {
	if len(pos) != len(w.dims) {
		return &DimensionCountError{Expected: len(w.dims), Actual: len(pos)}
	}
	w.cache.invalidate(pos)
	w.logger.LogInvalidate(pos)
	return nil
}

// writeThrough serializes the chunk and replaces its backing bytes, then
// commits the cache state. Called with the chunk's write lock held.
func (w *World[T]) writeThrough(ctx context.Context, ch *chunk[T]) error {
	data, err := ch.encodeLocked(w.cache.version)
	if err != nil {
		return err
	}
	if err := w.cache.io.WriteChunk(ctx, ch.pos, w.cache.version, data); err != nil {
		return fmt.Errorf("write chunk %s: %w", ch.pos, err)
	}

	oldBytes := ch.bytes
	ch.bytes = int64(len(data))
	ch.version = w.cache.version
	w.cache.commit(ch, oldBytes, ch.bytes)
	return nil
}

// recordPos validates a record's projections against the world's domains and
// returns its chunk coordinate alongside the projections.
func (w *World[T]) recordPos(value T) (Pos, []uint64, error) {
	if n := value.Dims(); n != len(w.dims) {
		return nil, nil, &DimensionCountError{Expected: len(w.dims), Actual: n}
	}

	dims := make([]uint64, len(w.dims))
	pos := make(Pos, len(w.dims))
	for i := range w.dims {
		dims[i] = value.Dim(i)
		c, err := w.dims[i].coordOf(dims[i])
		if err != nil {
			return nil, nil, err
		}
		pos[i] = c
	}
	return pos, dims, nil
}

// queryPos validates queried projections against the world's domains and
// returns the chunk coordinate they address.
func (w *World[T]) queryPos(query []uint64) (Pos, error) {
	if len(query) != len(w.dims) {
		return nil, &DimensionCountError{Expected: len(w.dims), Actual: len(query)}
	}

	pos := make(Pos, len(w.dims))
	for i, v := range query {
		c, err := w.dims[i].coordOf(v)
		if err != nil {
			return nil, err
		}
		pos[i] = c
	}
	return pos, nil
}

func recordKey[T Data[T]](value T) uint64 {
	if value.Dims() == 0 {
		return 0
	}
	return value.Dim(0)
}
