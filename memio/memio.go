package memio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/dimgo"
	"github.com/hupe1980/dimgo/internal/wire"
)

// Compile-time check that Storage implements the dimgo.IoHandle interface.
var _ dimgo.IoHandle = (*Storage)(nil)

type blob struct {
	version uint32
	data    []byte
}

// Storage is an in-memory chunk store. It keeps whole chunks in process
// memory, optionally block-compressed at rest, with no persistence across
// process lifetime.
//
// Beyond implementing dimgo.IoHandle it carries hooks for exercising engine
// behavior: staleness marks (MarkStale) to force reloads, a read gate to hold
// loads open, and read/write counters.
type Storage struct {
	mu     sync.RWMutex
	chunks map[string]blob
	stale  map[string]struct{}

	compression Compression
	readGate    func(pos dimgo.Pos)

	readCalls  atomic.Int64
	writeCalls atomic.Int64
}

// Option is a function type that modifies a Storage.
type Option func(*Storage)

// WithCompression selects the at-rest codec for stored chunks. The default
// is CompressionNone.
func WithCompression(c Compression) Option {
	return func(s *Storage) {
		s.compression = c
	}
}

// WithReadGate installs a hook invoked at the start of every ReadChunk,
// before the store's lock is taken. Tests use it to hold loads open or to
// count concurrent readers.
func WithReadGate(fn func(pos dimgo.Pos)) Option {
	return func(s *Storage) {
		s.readGate = fn
	}
}

// New creates an empty in-memory chunk store.
func New(optFns ...Option) *Storage {
	s := &Storage{
		chunks: make(map[string]blob),
		stale:  make(map[string]struct{}),
	}

	for _, fn := range optFns {
		if fn != nil {
			fn(s)
		}
	}

	return s
}

// HintIsValid implements dimgo.IoHandle. It reports false only for
// coordinates marked stale since their last read or write.
func (s *Storage) HintIsValid(pos dimgo.Pos) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, stale := s.stale[wire.Key(pos)]

	return !stale
}

// ReadChunk implements dimgo.IoHandle. Reading a coordinate clears its
// staleness mark: the caller holds the current bytes again.
func (s *Storage) ReadChunk(ctx context.Context, pos dimgo.Pos) (uint32, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	s.readCalls.Add(1)

	if s.readGate != nil {
		s.readGate(pos)
	}

	key := wire.Key(pos)

	s.mu.Lock()
	delete(s.stale, key)
	b, ok := s.chunks[key]
	s.mu.Unlock()

	if !ok {
		return 0, nil, dimgo.ErrChunkNotFound
	}

	data, err := decompressBlock(b.data, s.compression)
	if err != nil {
		return 0, nil, fmt.Errorf("decompress chunk %s: %w", pos, err)
	}

	return b.version, io.NopCloser(bytes.NewReader(data)), nil
}

// WriteChunk implements dimgo.IoHandle. A write replaces the chunk wholesale
// and clears any staleness mark for its coordinate.
func (s *Storage) WriteChunk(ctx context.Context, pos dimgo.Pos, version uint32, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeCalls.Add(1)

	stored, err := compressBlock(data, s.compression)
	if err != nil {
		return fmt.Errorf("compress chunk %s: %w", pos, err)
	}

	// compressBlock passes small or uncompressed payloads through unchanged;
	// copy so the caller keeps ownership of its buffer.
	if len(stored) > 0 && &stored[0] == &data[0] {
		stored = bytes.Clone(stored)
	}

	key := wire.Key(pos)

	s.mu.Lock()
	s.chunks[key] = blob{version: version, data: stored}
	delete(s.stale, key)
	s.mu.Unlock()

	return nil
}

// MarkStale marks a coordinate so the next HintIsValid reports false,
// forcing engines that trust their resident copy to reload it. The mark
// clears on the next read or write of the coordinate.
func (s *Storage) MarkStale(pos dimgo.Pos) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stale[wire.Key(pos)] = struct{}{}
}

// Delete removes a chunk, as if it had never been written.
func (s *Storage) Delete(pos dimgo.Pos) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := wire.Key(pos)

	delete(s.chunks, key)
	delete(s.stale, key)
}

// Len returns the number of stored chunks.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chunks)
}

// ReadCalls returns the number of ReadChunk calls observed so far.
func (s *Storage) ReadCalls() int64 {
	return s.readCalls.Load()
}

// WriteCalls returns the number of WriteChunk calls observed so far.
func (s *Storage) WriteCalls() int64 {
	return s.writeCalls.Load()
}
