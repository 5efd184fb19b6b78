// Package wire implements the framed record stream chunks are serialized as,
// plus the byte-key form of chunk coordinates used by cache maps.
//
// A chunk is the concatenation of frames, one per record:
//
//	[projections: n × uint64, little-endian]
//	[payload length: uint32, little-endian]
//	[payload bytes]
//
// Dimension projections are framed by the engine exactly once, outside the
// payload, so record codecs never serialize them.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPayloadSize bounds a single record payload. Frames declaring a larger
// payload are treated as corrupt before any allocation happens.
const MaxPayloadSize = 1 << 30

// Record is one framed record: its dimension projections and opaque payload.
type Record struct {
	Dims    []uint64
	Payload []byte
}

// Key returns the map-key form of a chunk coordinate.
func Key(pos []uint64) string {
	buf := make([]byte, 8*len(pos))
	for i, c := range pos {
		binary.LittleEndian.PutUint64(buf[8*i:], c)
	}
	return string(buf)
}

// AppendRecord appends one frame to buf and returns the extended slice.
func AppendRecord(buf []byte, dims []uint64, payload []byte) []byte {
	for _, d := range dims {
		buf = binary.LittleEndian.AppendUint64(buf, d)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// FrameSize returns the encoded size of a frame with dims projections and a
// payload of the given length.
func FrameSize(dims, payloadLen int) int {
	return 8*dims + 4 + payloadLen
}

// Decoder reads frames off a record stream.
type Decoder struct {
	r    io.Reader
	dims int
	head []byte
}

// NewDecoder returns a Decoder reading frames of dims projections each.
func NewDecoder(r io.Reader, dims int) *Decoder {
	return &Decoder{
		r:    r,
		dims: dims,
		head: make([]byte, FrameSize(dims, 0)),
	}
}

// Next reads one frame. It returns io.EOF at a clean frame boundary and an
// unexpected-EOF error for a frame cut short.
func (d *Decoder) Next() (Record, error) {
	n, err := io.ReadFull(d.r, d.head)
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, shortRead(n, len(d.head), err)
	}

	rec := Record{Dims: make([]uint64, d.dims)}
	for i := range rec.Dims {
		rec.Dims[i] = binary.LittleEndian.Uint64(d.head[8*i:])
	}

	size := binary.LittleEndian.Uint32(d.head[8*d.dims:])
	if size > MaxPayloadSize {
		return Record{}, fmt.Errorf("payload size %d exceeds limit %d", size, MaxPayloadSize)
	}
	if size > 0 {
		rec.Payload = make([]byte, size)
		if n, err := io.ReadFull(d.r, rec.Payload); err != nil {
			return Record{}, shortRead(n, int(size), err)
		}
	}
	return rec, nil
}

func shortRead(n, want int, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("read %d bytes, expected %d bytes: %w", n, want, io.ErrUnexpectedEOF)
	}
	return err
}
