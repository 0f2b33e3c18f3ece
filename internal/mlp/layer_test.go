package mlp

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_ForwardZeroWeightsLinear(t *testing.T) {
	l, err := NewLayer[float64](3, 2, Linear, true, 0, nil)
	require.NoError(t, err)
	out, err := l.Forward([]float64{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, out)
}

func TestLayer_ForwardCapturesHistory(t *testing.T) {
	l, err := NewLayer[float64](2, 2, Linear, true, 0, nil)
	require.NoError(t, err)
	var history [][]float64
	_, err = l.Forward([]float64{1, 2}, &history)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []float64{1, 2}, history[0])
}

func TestLayer_AccumulateAndApplyStep(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	l, err := NewLayer[float64](2, 1, Linear, false, 0, rng)
	require.NoError(t, err)

	input := []float64{1, 1}
	for i := 0; i < 100; i++ {
		out, err := l.Forward(input, nil)
		require.NoError(t, err)
		target := 1.0
		upstream := []float64{-(target - out[0])}
		l.InitAccumulators()
		_, err = l.Accumulate(input, upstream)
		require.NoError(t, err)
		l.ApplyStep(0.02, 1.0)
	}
	out, err := l.Forward(input, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0], 0.05)
}

func TestLayer_GradSumSqAndScale(t *testing.T) {
	l, err := NewLayer[float64](2, 1, Linear, true, 0.1, nil)
	require.NoError(t, err)
	_, err = l.Forward([]float64{1, 1}, nil)
	require.NoError(t, err)
	require.NoError(t, func() error { _, e := l.Accumulate([]float64{1, 1}, []float64{2.0}); return e }())
	sumSq := l.GradSumSq(1.0)
	assert.Greater(t, sumSq, 0.0)
	l.ScaleGrads(0.5)
	assert.InDelta(t, sumSq/4, l.GradSumSq(1.0), 1e-9)
}

func TestLayer_Sanitise(t *testing.T) {
	l, err := NewLayer[float64](2, 2, Linear, true, 1.0, nil)
	require.NoError(t, err)
	assert.False(t, l.Sanitise())
}
