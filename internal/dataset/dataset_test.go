package dataset

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monkeyw/imlengine/internal/mlp"
)

func rng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestAdd_RejectsShapeMismatch(t *testing.T) {
	d := New[float64](10, false, FIFO, rng(1))
	require.NoError(t, d.Add([]float64{1, 2}, []float64{1}))
	err := d.Add([]float64{1, 2, 3}, []float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, mlp.ErrShapeMismatch)
}

func TestAdd_CapacityExceededWithoutReplay(t *testing.T) {
	d := New[float64](2, false, FIFO, rng(1))
	require.NoError(t, d.Add([]float64{1}, []float64{1}))
	require.NoError(t, d.Add([]float64{2}, []float64{2}))
	err := d.Add([]float64{3}, []float64{3})
	require.Error(t, err)
	assert.ErrorIs(t, err, mlp.ErrCapacityExceeded)
	assert.Equal(t, 2, d.Size())
}

func TestAdd_AtCapacityMinusOneSucceeds(t *testing.T) {
	d := New[float64](3, false, FIFO, rng(1))
	require.NoError(t, d.Add([]float64{1}, []float64{1}))
	require.NoError(t, d.Add([]float64{2}, []float64{2}))
	assert.Equal(t, 2, d.Size())
}

// End-to-end scenario 5: capacity & eviction with FIFO.
func TestAdd_FIFOEviction(t *testing.T) {
	d := New[float64](3, true, FIFO, rng(1))
	for i := 0; i < 4; i++ {
		v := float64(i)
		require.NoError(t, d.Add([]float64{v}, []float64{v}))
	}
	assert.Equal(t, 3, d.Size())
	features := d.Features(false)
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, features)
	assert.Equal(t, int64(4), d.NextTimestamp())
}

func TestRandomOlder_AllEqualTimestampsFallsBackUniform(t *testing.T) {
	// Under normal insertion every stored timestamp predates nextTimestamp,
	// so age is never exactly zero for every example; construct that state
	// directly to exercise the zero-total-weight fallback.
	d := New[float64](10, true, RandomOlder, rng(2))
	d.features = [][]float64{{1}, {2}, {3}}
	d.labels = [][]float64{{1}, {2}, {3}}
	d.timestamps = []int64{5, 5, 5}
	d.nextTimestamp = 5

	idx := d.randomOlderIndexLocked()
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 3)
}

func TestRandomOlder_SingleElementAlwaysEvictsIt(t *testing.T) {
	d := New[float64](1, true, RandomOlder, rng(3))
	require.NoError(t, d.Add([]float64{1}, []float64{1}))
	require.NoError(t, d.Add([]float64{2}, []float64{2}))
	features := d.Features(false)
	require.Len(t, features, 1)
	assert.Equal(t, 2.0, features[0][0])
}

func TestFeatures_WithBias(t *testing.T) {
	d := New[float64](10, false, FIFO, rng(1))
	require.NoError(t, d.Add([]float64{0.5}, []float64{0.5}))
	f := d.Features(true)
	assert.Equal(t, []float64{0.5, 1.0}, f[0])
}

func TestSample_ReplayDisabledPreservesOrder(t *testing.T) {
	d := New[float64](10, false, FIFO, rng(1))
	for i := 0; i < 5; i++ {
		v := float64(i)
		require.NoError(t, d.Add([]float64{v}, []float64{v}))
	}
	features, _ := d.Sample(false)
	for i, f := range features {
		assert.Equal(t, float64(i), f[0])
	}
}

func TestSample_ReplayEnabledReturnsFullSet(t *testing.T) {
	d := New[float64](10, true, FIFO, rng(1))
	for i := 0; i < 5; i++ {
		v := float64(i)
		require.NoError(t, d.Add([]float64{v}, []float64{v}))
	}
	features, labels := d.Sample(false)
	assert.Len(t, features, 5)
	assert.Len(t, labels, 5)
	seen := make(map[float64]bool)
	for _, f := range features {
		seen[f[0]] = true
	}
	assert.Len(t, seen, 5)
}

func TestClear_ResetsTimestamp(t *testing.T) {
	d := New[float64](10, false, FIFO, rng(1))
	require.NoError(t, d.Add([]float64{1}, []float64{1}))
	d.Clear()
	assert.Equal(t, 0, d.Size())
	assert.Equal(t, int64(0), d.NextTimestamp())
}

func TestSetMaxExamples_TruncatesWithReplay(t *testing.T) {
	d := New[float64](5, true, FIFO, rng(1))
	for i := 0; i < 5; i++ {
		v := float64(i)
		require.NoError(t, d.Add([]float64{v}, []float64{v}))
	}
	d.SetMaxExamples(2)
	assert.Equal(t, 2, d.Size())
}

func TestSetMaxExamples_TruncatesWithoutReplay(t *testing.T) {
	d := New[float64](5, false, FIFO, rng(1))
	for i := 0; i < 5; i++ {
		v := float64(i)
		require.NoError(t, d.Add([]float64{v}, []float64{v}))
	}
	d.SetMaxExamples(2)
	assert.Equal(t, 2, d.Size())
}
