package dimgo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/dimgo/internal/wire"
)

// entry is one record slot in a chunk. It starts pending, holding the raw
// payload bytes as framed in storage, and upgrades to decoded on first
// access. The upgrade is guarded and idempotent; a failed decode leaves the
// slot pending so other readers can retry.
type entry[T Data[T]] struct {
	mu sync.Mutex

	// dims carries the framed projections and is immutable after creation.
	// Filters and keys read it without touching the payload.
	dims []uint64

	version   uint32 // format version payload was written at
	payload   []byte // nil once decoded
	decoded   bool
	resolving bool
	value     T
}

func newPendingEntry[T Data[T]](dims []uint64, version uint32, payload []byte) *entry[T] {
	return &entry[T]{dims: dims, version: version, payload: payload}
}

func newDecodedEntry[T Data[T]](dims []uint64, version uint32, value T) *entry[T] {
	return &entry[T]{dims: dims, version: version, decoded: true, value: value}
}

// record returns the decoded value, if the entry has been decoded already.
func (e *entry[T]) record() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, e.decoded
}

// matches reports whether the entry's projections all fall inside filter.
func (e *entry[T]) matches(filter []Interval) bool {
	for i, iv := range filter {
		if !iv.Contains(e.dims[i]) {
			return false
		}
	}
	return true
}

// resolve returns the entry's record, decoding the stored payload on first
// access. Concurrent resolutions of the same pending entry do not stack: one
// consumes the payload, the others fail with ErrValueTaken. A failed decode
// restores the pending state.
func (e *entry[T]) resolve(ctx context.Context) (T, error) {
	var zero T

	e.mu.Lock()
	if e.decoded {
		v := e.value
		e.mu.Unlock()
		return v, nil
	}
	if e.resolving {
		e.mu.Unlock()
		return zero, ErrValueTaken
	}
	e.resolving = true
	version, dims, payload := e.version, e.dims, e.payload
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		e.mu.Lock()
		e.resolving = false
		e.mu.Unlock()
		return zero, err
	}

	v, err := zero.Decode(version, dims, payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolving = false
	if err != nil {
		return zero, fmt.Errorf("decode record %d: %w", dims[0], err)
	}
	e.value = v
	e.decoded = true
	e.payload = nil
	return v, nil
}

// appendFrame appends the entry's framed record to buf at the current format
// version. Pending payloads already at that version pass through untouched;
// older ones are decoded and re-encoded, without disturbing the entry.
func (e *entry[T]) appendFrame(buf []byte, current uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	value := e.value
	if !e.decoded {
		if e.version == current {
			return wire.AppendRecord(buf, e.dims, e.payload), nil
		}
		var zero T
		v, err := zero.Decode(e.version, e.dims, e.payload)
		if err != nil {
			return nil, fmt.Errorf("upgrade record %d from version %d: %w", e.dims[0], e.version, err)
		}
		value = v
	}

	var pb bytes.Buffer
	if err := value.Encode(&pb); err != nil {
		return nil, fmt.Errorf("encode record %d: %w", e.dims[0], err)
	}
	return wire.AppendRecord(buf, e.dims, pb.Bytes()), nil
}

// chunk is the decoded in-memory form of one grid cell: records keyed by
// their dimension-0 value, plus the storage format version the bytes were
// read at. Readers of one chunk never block readers of another.
type chunk[T Data[T]] struct {
	pos Pos

	mu      sync.RWMutex
	version uint32
	entries map[uint64]*entry[T]
	bytes   int64 // serialized size as of the last load or write-through
}

func newChunk[T Data[T]](pos Pos, version uint32) *chunk[T] {
	return &chunk[T]{
		pos:     pos,
		version: version,
		entries: make(map[uint64]*entry[T]),
	}
}

// decodeChunk segments a framed record stream into pending entries. A frame
// whose key repeats an earlier one marks the stream corrupt; nothing is
// installed in that case.
func decodeChunk[T Data[T]](pos Pos, version uint32, raw []byte, dims int) (*chunk[T], error) {
	ch := newChunk[T](pos, version)
	ch.bytes = int64(len(raw))

	dec := wire.NewDecoder(bytes.NewReader(raw), dims)
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		key := rec.Dims[0]
		if _, ok := ch.entries[key]; ok {
			return nil, fmt.Errorf("duplicate key %d in chunk %s", key, pos)
		}
		ch.entries[key] = newPendingEntry[T](rec.Dims, version, rec.Payload)
	}
	return ch, nil
}

// encodeLocked serializes every entry into a framed record stream at the
// given format version. The caller holds the chunk's write lock.
func (ch *chunk[T]) encodeLocked(current uint32) ([]byte, error) {
	buf := make([]byte, 0, ch.bytes)
	var err error
	for _, e := range ch.entries {
		if buf, err = e.appendFrame(buf, current); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// size returns the chunk's serialized size in bytes.
func (ch *chunk[T]) size() int64 {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.bytes
}

// lookup returns the entry stored under key.
func (ch *chunk[T]) lookup(key uint64) (*entry[T], bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	e, ok := ch.entries[key]
	return e, ok
}

// collect returns the entries whose projections fall inside filter. Entries
// come back in map order; chunks guarantee no intra-chunk ordering.
func (ch *chunk[T]) collect(filter []Interval) []*entry[T] {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	var out []*entry[T]
	for _, e := range ch.entries {
		if e.matches(filter) {
			out = append(out, e)
		}
	}
	return out
}
