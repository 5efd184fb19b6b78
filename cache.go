package dimgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/dimgo/internal/wire"
	"github.com/hupe1980/dimgo/resource"
	"golang.org/x/sync/singleflight"
)

// chunkCache owns the coordinate → chunk mapping. It faults chunks in from
// storage lazily, de-duplicates concurrent loads per coordinate, honors the
// backend's validity hint, and maintains the world-wide generation counter
// scans use for staleness detection.
type chunkCache[T Data[T]] struct {
	io      IoHandle
	dims    []Dim
	version uint32 // current record format version

	mu     sync.RWMutex
	chunks map[string]*chunk[T]
	// seq counts load cycles per coordinate. Invalidation and write-through
	// bump it, which fences any in-flight load that read its bytes before
	// the change from installing them.
	seq map[string]uint64

	group singleflight.Group
	gen   atomic.Uint64

	residentChunks atomic.Int64
	residentBytes  atomic.Int64

	ctrl    *resource.Controller
	logger  *Logger
	metrics MetricsCollector
}

func newChunkCache[T Data[T]](dims []Dim, io IoHandle, o options) *chunkCache[T] {
	var zero T
	return &chunkCache[T]{
		io:      io,
		dims:    dims,
		version: zero.Version(),
		chunks:  make(map[string]*chunk[T]),
		seq:     make(map[string]uint64),
		ctrl:    o.controller,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

func (c *chunkCache[T]) generation() uint64 {
	return c.gen.Load()
}

// load returns the chunk at pos, reading it from storage if it is not
// resident or the backend's hint no longer trusts the resident copy.
// Concurrent callers for one coordinate share a single storage read; a
// caller's context cancels only its own wait, never the shared read, which
// completes and populates the cache regardless.
func (c *chunkCache[T]) load(ctx context.Context, pos Pos) (*chunk[T], error) {
	key := wire.Key(pos)

	c.mu.RLock()
	ch, ok := c.chunks[key]
	c.mu.RUnlock()
	if ok && c.io.HintIsValid(pos) {
		c.metrics.RecordCacheHit()
		return ch, nil
	}
	c.metrics.RecordCacheMiss()

	pos = pos.Clone()
	resc := c.group.DoChan(key, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), pos, key)
	})

	select {
	case res := <-resc:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*chunk[T]), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch performs the single storage read behind a coalesced load and installs
// the result. It re-checks residency first: a load that queued behind an
// identical one may find fresh state already installed.
func (c *chunkCache[T]) fetch(ctx context.Context, pos Pos, key string) (*chunk[T], error) {
	c.mu.RLock()
	s0 := c.seq[key]
	prev, resident := c.chunks[key]
	c.mu.RUnlock()
	if resident && c.io.HintIsValid(pos) {
		return prev, nil
	}

	if err := c.ctrl.AcquireLoad(ctx); err != nil {
		return nil, err
	}
	defer c.ctrl.ReleaseLoad()

	start := time.Now()
	ch, err := c.read(ctx, pos)
	c.metrics.RecordLoad(time.Since(start), err)
	c.logger.LogLoad(ctx, pos, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.seq[key] != s0 {
		// Invalidated or written through while the read was in flight. The
		// awaiters still get the loaded chunk; it just is not installed, so
		// the next load re-fetches.
		c.mu.Unlock()
		return ch, nil
	}
	prev, resident = c.chunks[key]
	c.chunks[key] = ch
	c.mu.Unlock()

	c.residentBytes.Add(ch.size())
	if resident {
		c.residentBytes.Add(-prev.size())
		// Replacing a resident chunk strands outstanding raw handles.
		c.gen.Add(1)
	} else {
		c.residentChunks.Add(1)
	}
	return ch, nil
}

// read performs one ReadChunk round trip and decodes the stream into a chunk.
// A backend that has never seen the coordinate yields an empty chunk: chunks
// exist from their first access.
func (c *chunkCache[T]) read(ctx context.Context, pos Pos) (*chunk[T], error) {
	version, rc, err := c.io.ReadChunk(ctx, pos)
	if err != nil {
		if errors.Is(err, ErrChunkNotFound) {
			return newChunk[T](pos, c.version), nil
		}
		return nil, fmt.Errorf("read chunk %s: %w", pos, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read chunk %s: %w", pos, err)
	}
	if err := c.ctrl.AcquireIO(ctx, len(raw)); err != nil {
		return nil, err
	}

	ch, err := decodeChunk[T](pos, version, raw, len(c.dims))
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", pos, err)
	}
	return ch, nil
}

// get loads the chunk at pos and resolves the record stored under key. A
// resolved record whose own key dimension disagrees with key fails with
// ErrValueMoved rather than returning a mismatched record.
func (c *chunkCache[T]) get(ctx context.Context, pos Pos, key uint64) (T, error) {
	var zero T

	ch, err := c.load(ctx, pos)
	if err != nil {
		return zero, err
	}

	e, ok := ch.lookup(key)
	if !ok {
		return zero, ErrValueNotFound
	}

	v, err := e.resolve(ctx)
	if err != nil {
		return zero, err
	}
	if v.Dim(0) != key {
		return zero, fmt.Errorf("%w: record %d stored under key %d", ErrValueMoved, v.Dim(0), key)
	}
	return v, nil
}

// commit publishes a mutated chunk after its backing write succeeded. The
// sequence bump fences in-flight loads that read the pre-write bytes, and
// the generation bump staleness-fails raw handles from scans that started
// before the mutation. Sizes are passed in because the caller still holds
// the chunk's write lock.
func (c *chunkCache[T]) commit(ch *chunk[T], oldBytes, newBytes int64) {
	key := wire.Key(ch.pos)

	c.mu.Lock()
	c.seq[key]++
	_, resident := c.chunks[key]
	c.chunks[key] = ch
	c.mu.Unlock()
	c.group.Forget(key)

	if resident {
		c.residentBytes.Add(newBytes - oldBytes)
	} else {
		c.residentChunks.Add(1)
		c.residentBytes.Add(newBytes)
	}
	c.gen.Add(1)
}

// invalidate drops the coordinate's resident chunk and fences any in-flight
// load so it cannot resurrect pre-invalidation bytes. The next load
// re-fetches from storage. The generation bumps unconditionally.
func (c *chunkCache[T]) invalidate(pos Pos) {
	key := wire.Key(pos)

	c.mu.Lock()
	c.seq[key]++
	ch, resident := c.chunks[key]
	if resident {
		delete(c.chunks, key)
	}
	c.mu.Unlock()
	c.group.Forget(key)

	if resident {
		c.residentChunks.Add(-1)
		c.residentBytes.Add(-ch.size())
	}
	c.gen.Add(1)
}
