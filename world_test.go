package dimgo_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/dimgo"
	"github.com/hupe1980/dimgo/memio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDims() []dimgo.Dim {
	return []dimgo.Dim{
		{Start: 0, End: 1024, Granularity: 16},
		{Start: 0, End: 128, Granularity: 8},
	}
}

func newTestWorld(t *testing.T, optFns ...dimgo.Option) (*dimgo.World[dimgo.Tuple], *memio.Storage) {
	t.Helper()

	store := memio.New()
	w, err := dimgo.New[dimgo.Tuple](testDims(), store, optFns...)
	require.NoError(t, err)

	return w, store
}

// flakyIO wraps a Storage so tests can refuse reads or writes on demand.
type flakyIO struct {
	*memio.Storage
	failReads  atomic.Bool
	failWrites atomic.Bool
}

func (f *flakyIO) ReadChunk(ctx context.Context, pos dimgo.Pos) (uint32, io.ReadCloser, error) {
	if f.failReads.Load() {
		return 0, nil, errors.New("backend read refused")
	}
	return f.Storage.ReadChunk(ctx, pos)
}

func (f *flakyIO) WriteChunk(ctx context.Context, pos dimgo.Pos, version uint32, data []byte) error {
	if f.failWrites.Load() {
		return errors.New("backend write refused")
	}
	return f.Storage.WriteChunk(ctx, pos, version, data)
}

func TestNewValidation(t *testing.T) {
	store := memio.New()

	_, err := dimgo.New[dimgo.Tuple](nil, store)
	assert.EqualError(t, err, "dimgo: at least one dimension required")

	_, err = dimgo.New[dimgo.Tuple]([]dimgo.Dim{{Start: 0, End: 10, Granularity: 0}}, store)
	assert.EqualError(t, err, "dimgo: dimension 0: granularity must be positive")

	_, err = dimgo.New[dimgo.Tuple]([]dimgo.Dim{{Start: 10, End: 5, Granularity: 1}}, store)
	assert.EqualError(t, err, "dimgo: dimension 0: empty domain [10, 5)")

	_, err = dimgo.New[dimgo.Tuple](testDims(), nil)
	assert.EqualError(t, err, "dimgo: io handle required")
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))
	assert.Equal(t, int64(1), store.WriteCalls())

	v, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)

	// Same key dimension, different second projection: not the same record.
	_, err = w.Get(ctx, 5, 4)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	_, err = w.Get(ctx, 6, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)
}

func TestDomainValidationPrecedesIO(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWorld(t)

	var oor *dimgo.ValueOutOfRangeError

	_, err := w.Get(ctx, 2000, 3)
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, uint64(2000), oor.Value)
	assert.EqualError(t, oor, "value 2000 out of range [0, 1024)")

	err = w.Insert(ctx, dimgo.Tuple{5, 500})
	require.ErrorAs(t, err, &oor)

	err = w.Remove(ctx, 5, 128)
	require.ErrorAs(t, err, &oor)

	// No round trip reached the backend.
	assert.Equal(t, int64(0), store.ReadCalls())
	assert.Equal(t, int64(0), store.WriteCalls())
}

func TestDimensionCountMismatch(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	var dce *dimgo.DimensionCountError

	_, err := w.Get(ctx, 5)
	require.ErrorAs(t, err, &dce)
	assert.Equal(t, 2, dce.Expected)
	assert.Equal(t, 1, dce.Actual)

	err = w.Insert(ctx, dimgo.Tuple{1, 2, 3})
	assert.ErrorAs(t, err, &dce)

	err = w.Invalidate(dimgo.Pos{0})
	assert.ErrorAs(t, err, &dce)
}

func TestBoxSelect(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))

	// The record falls inside the box.
	recs, err := w.Select().Range(0, 0, 10).Range(1, 0, 10).Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dimgo.Tuple{{5, 3}}, recs)

	// A disjoint box on dimension 0 matches nothing.
	n, err := w.Select().Range(0, 20, 30).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Overlapping the chunk but excluding the record matches nothing: the
	// record's cell is scanned, its projections are not in the box.
	n, err = w.Select().Range(0, 6, 10).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	// Same chunk cell, same key dimension: the second insert replaces.
	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))
	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 7}))

	_, err := w.Get(ctx, 5, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	v, err := w.Get(ctx, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 7}, v)

	n, err := w.Select().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))

	// A projection mismatch leaves the record alone.
	err := w.Remove(ctx, 5, 4)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	v, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)

	require.NoError(t, w.Remove(ctx, 5, 3))

	_, err = w.Get(ctx, 5, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	err = w.Remove(ctx, 5, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)
}

func TestUpdateInPlace(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))
	writes := store.WriteCalls()

	// (5, 3) -> (5, 4) stays in cell (0, 0) under key 5.
	err := w.Update(ctx, func(v dimgo.Tuple) (dimgo.Tuple, error) {
		return dimgo.Tuple{v[0], v[1] + 1}, nil
	}, 5, 3)
	require.NoError(t, err)

	v, err := w.Get(ctx, 5, 4)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 4}, v)

	_, err = w.Get(ctx, 5, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	// One chunk, one write.
	assert.Equal(t, writes+1, store.WriteCalls())
}

func TestUpdateRelocates(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))
	writes := store.WriteCalls()

	// (5, 3) -> (21, 3) moves from cell (0, 0) to cell (1, 0).
	err := w.Update(ctx, func(dimgo.Tuple) (dimgo.Tuple, error) {
		return dimgo.Tuple{21, 3}, nil
	}, 5, 3)
	require.NoError(t, err)

	_, err = w.Get(ctx, 5, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	v, err := w.Get(ctx, 21, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{21, 3}, v)

	// Remove from the old cell plus insert into the new one.
	assert.Equal(t, writes+2, store.WriteCalls())

	n, err := w.Select().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateMissingRecord(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	err := w.Update(ctx, func(v dimgo.Tuple) (dimgo.Tuple, error) {
		return v, nil
	}, 5, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)
}

func TestUpdateFnError(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))

	boom := errors.New("boom")
	err := w.Update(ctx, func(dimgo.Tuple) (dimgo.Tuple, error) {
		return nil, boom
	}, 5, 3)
	assert.ErrorIs(t, err, boom)

	v, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)
}

func TestUpdateProducingOutOfRange(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))

	var oor *dimgo.ValueOutOfRangeError
	err := w.Update(ctx, func(dimgo.Tuple) (dimgo.Tuple, error) {
		return dimgo.Tuple{5, 999}, nil
	}, 5, 3)
	require.ErrorAs(t, err, &oor)

	// The original record is untouched.
	v, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)
}

func TestWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()

	fio := &flakyIO{Storage: memio.New()}
	w, err := dimgo.New[dimgo.Tuple](testDims(), fio)
	require.NoError(t, err)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))
	gen := w.Generation()

	fio.failWrites.Store(true)

	// Failed insert of a new key: the key is not left behind.
	err = w.Insert(ctx, dimgo.Tuple{7, 3})
	require.ErrorContains(t, err, "write chunk (0, 0)")
	require.ErrorContains(t, err, "backend write refused")
	_, err = w.Get(ctx, 7, 3)
	assert.ErrorIs(t, err, dimgo.ErrValueNotFound)

	// Failed replacement: the previous record survives.
	err = w.Insert(ctx, dimgo.Tuple{5, 4})
	require.Error(t, err)
	v, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)

	// Failed remove: the record stays.
	err = w.Remove(ctx, 5, 3)
	require.Error(t, err)
	v, err = w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)

	// Nothing was published: the generation counter never moved.
	assert.Equal(t, gen, w.Generation())

	fio.failWrites.Store(false)
	require.NoError(t, w.Insert(ctx, dimgo.Tuple{7, 3}))
	assert.Greater(t, w.Generation(), gen)
}

func TestInsertInvalidateReread(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWorld(t)

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))
	reads := store.ReadCalls()

	// Resident chunk: reads stay flat.
	_, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, reads, store.ReadCalls())

	require.NoError(t, w.Invalidate(dimgo.Pos{0, 0}))

	// Exactly one additional read serves the re-read, with the same value.
	v, err := w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)
	assert.Equal(t, reads+1, store.ReadCalls())

	_, err = w.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, reads+1, store.ReadCalls())
}

func TestReopenSeesPersistedData(t *testing.T) {
	ctx := context.Background()
	w1, store := newTestWorld(t)

	require.NoError(t, w1.Insert(ctx, dimgo.Tuple{5, 3}))
	require.NoError(t, w1.Insert(ctx, dimgo.Tuple{21, 7}))
	require.NoError(t, w1.Insert(ctx, dimgo.Tuple{100, 50}))

	// A second world over the same backend sees every write.
	w2, err := dimgo.New[dimgo.Tuple](testDims(), store)
	require.NoError(t, err)

	v, err := w2.Get(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, dimgo.Tuple{5, 3}, v)

	recs, err := w2.Select().Records(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []dimgo.Tuple{{5, 3}, {21, 7}, {100, 50}}, recs)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorld(t)

	assert.Equal(t, dimgo.Stats{}, w.Stats())

	require.NoError(t, w.Insert(ctx, dimgo.Tuple{5, 3}))   // cell (0, 0)
	require.NoError(t, w.Insert(ctx, dimgo.Tuple{21, 7}))  // cell (1, 0)
	require.NoError(t, w.Insert(ctx, dimgo.Tuple{22, 7}))  // cell (1, 0)

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.ResidentChunks)
	assert.Positive(t, stats.ResidentBytes)
	assert.Equal(t, uint64(3), stats.Generation)
}

func TestGetMovedRecord(t *testing.T) {
	ctx := context.Background()
	store := memio.New()

	dims := []dimgo.Dim{{Start: 0, End: 100, Granularity: 10}}

	w1, err := dimgo.New[drifter](dims, store)
	require.NoError(t, err)
	require.NoError(t, w1.Insert(ctx, drifter{key: 5}))

	// A fresh world decodes from storage; the drifting codec reports a key
	// that disagrees with the slot the record is stored under.
	w2, err := dimgo.New[drifter](dims, store)
	require.NoError(t, err)

	_, err = w2.Get(ctx, 5)
	require.ErrorIs(t, err, dimgo.ErrValueMoved)
	assert.ErrorContains(t, err, "record 6 stored under key 5")
}

// drifter decodes to a key one off from the stored one, standing in for a
// codec whose key projection drifted across versions.
type drifter struct {
	key uint64
}

func (d drifter) Dims() int              { return 1 }
func (d drifter) Version() uint32        { return 0 }
func (d drifter) Dim(int) uint64         { return d.key }
func (d drifter) Encode(io.Writer) error { return nil }

func (d drifter) Decode(version uint32, dims []uint64, payload []byte) (drifter, error) {
	return drifter{key: dims[0] + 1}, nil
}
