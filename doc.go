// Package dimgo provides an embeddable multi-dimensional record store for Go.
//
// A World holds records addressed by fixed-length integer coordinate vectors.
// Each dimension maps a half-open value domain onto coarse cells, records
// are grouped into chunks along dimension 0, and chunks are loaded from a
// pluggable backend on demand and cached in memory. Reads decode lazily:
// scans hand out handles and pay decode cost only for records the caller
// actually resolves.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	world, _ := dimgo.New[dimgo.Tuple]([]dimgo.Dim{
//	    {Start: 0, End: 1024, Granularity: 16},
//	    {Start: 0, End: 128, Granularity: 8},
//	}, memio.New())
//
//	_ = world.Insert(ctx, dimgo.Tuple{5, 3})
//
//	v, _ := world.Get(ctx, 5, 3) // exact-coordinate point read
//
// # Range Scans
//
// Selections narrow the scanned box one dimension at a time and stream
// results lazily:
//
//	for lazy, err := range world.Select().Range(0, 0, 10).Range(1, 0, 10).Iter(ctx) {
//	    if err != nil {
//	        break
//	    }
//	    v, err := lazy.Get(ctx) // decode happens here, not during the scan
//	    ...
//	}
//
// Count drains a selection without decoding anything; Records collects
// decoded values; Prefetch warms the chunk cache for the selected box.
//
// # Storage Model
//
// Backends implement the three-method IoHandle interface (HintIsValid,
// ReadChunk, WriteChunk) over whole chunks. The memio subpackage provides
// the in-memory reference backend. Concurrent loads of the same chunk are
// coalesced into a single backend read; writes go through to the backend
// before they are visible to readers.
//
// # Consistency
//
// A World tracks a generation counter, incremented whenever resident state
// is mutated, invalidated, or forcibly reloaded. Scan handles carry the
// generation they were created under and refuse to decode after it moves,
// returning IterUpdatedError: stale iterators fail loudly instead of
// returning torn results. Records already decoded stay readable.
//
// # Key Features
//
//   - Fixed-rank coordinate spaces with per-dimension granularity
//   - Lazy, restartable range scans in odometer order
//   - Deferred decode handles with sticky results
//   - Single-flight chunk loading with per-caller cancellation
//   - Write-through persistence with rollback on backend failure
//   - Optional resource limits (load slots, IO throttle) via resource.Controller
package dimgo
