package dimgo

import (
	"context"
	"io"
)

// IoHandle is the storage contract a world reads and writes chunks through.
//
// Backends are addressed by chunk coordinate and move whole chunks: ReadChunk
// streams every record of a chunk, WriteChunk replaces a chunk wholesale. The
// engine owns record framing, so backends only ever see opaque byte streams.
//
// Implementations must be safe for concurrent use. The memio package provides
// the in-memory reference implementation; disk or network backends are
// supplied by the embedding application.
type IoHandle interface {
	// HintIsValid reports whether a chunk the caller already holds for pos
	// can still be trusted. It must be cheap and non-blocking: the cache
	// consults it on every access. Returning false forces a reload.
	HintIsValid(pos Pos) bool

	// ReadChunk opens the serialized record stream of the chunk at pos and
	// reports the storage format version the chunk was written at. Chunks
	// that have never been written fail with ErrChunkNotFound.
	ReadChunk(ctx context.Context, pos Pos) (version uint32, r io.ReadCloser, err error)

	// WriteChunk replaces the chunk at pos wholesale. data is the framed
	// record stream, version the format it was encoded at. A successful
	// write makes subsequent HintIsValid/ReadChunk observe the new state.
	WriteChunk(ctx context.Context, pos Pos, version uint32, data []byte) error
}
