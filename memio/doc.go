// Package memio provides an in-memory chunk store for dimgo worlds.
//
// Storage implements the dimgo.IoHandle interface. Chunks live in process
// memory, optionally block-compressed at rest, and do not survive the
// process. It is the reference backend: small worlds, examples, and tests.
//
// # Compression
//
//   - CompressionNone: raw bytes (default)
//   - CompressionLZ4: fast block compression
//   - CompressionZstd: better ratio, pooled encoders
//
// # Test Hooks
//
// Storage exposes hooks for exercising engine reload and coalescing paths:
//
//	store.MarkStale(pos)   // next HintIsValid(pos) reports false
//	store.ReadCalls()      // number of ReadChunk calls served
//	store.WriteCalls()     // number of WriteChunk calls served
//
// A read gate can hold loads open to observe coalescing:
//
//	store := memio.New(memio.WithReadGate(func(pos dimgo.Pos) {
//	    <-release // block every backend read until the test says go
//	}))
package memio
