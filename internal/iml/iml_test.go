package iml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monkeyw/imlengine/internal/dataset"
	"github.com/monkeyw/imlengine/internal/mlp"
)

func identityConfig() Config[float64] {
	return Config[float64]{
		NInputs:              1,
		NOutputs:             1,
		Hidden:               []int{8, 8},
		Activations:          []mlp.ActivationKind{mlp.Tanh, mlp.Tanh, mlp.Linear},
		Loss:                 mlp.MSE,
		MaxIter:              3000,
		LR:                   1.0,
		ConvergenceThreshold: 1e-5,
		MaxExamples:          32,
		ReplayEnabled:        true,
		ForgetMode:           dataset.FIFO,
	}
}

func TestSetInput_ClampsAndMarksDirty(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.SetInput(0, 1.5))
	assert.Equal(t, 1.0, f.GetInputState()[0])
	require.NoError(t, f.SetInput(0, -0.5))
	assert.Equal(t, 0.0, f.GetInputState()[0])
}

func TestSetOutput_Clamps(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.SetOutput(0, 2.0))
	assert.Equal(t, 1.0, f.GetOutputs()[0])
}

func TestProcess_NoOpWithoutDirtyOrGate(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.Process()) // initial dirty=true from New, runs once
	first := f.GetOutputs()
	require.NoError(t, f.Process()) // second call: not dirty, no-op
	assert.Equal(t, first, f.GetOutputs())
}

func TestSaveExample_InteractiveProtocol(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.SetMode(Training))

	require.NoError(t, f.SetInput(0, 0.3))
	require.NoError(t, f.SaveExample()) // -> state B, perform_inference=false

	before := f.GetOutputs()
	require.NoError(t, f.Process()) // gated off, no-op
	assert.Equal(t, before, f.GetOutputs())

	require.NoError(t, f.SetOutput(0, 0.8))
	require.NoError(t, f.SaveExample()) // commits example, -> state A

	assert.Equal(t, 1, f.Dataset().Size())
	feats := f.Dataset().Features(false)
	labels := f.Dataset().Labels()
	assert.InDelta(t, 0.3, feats[0][0], 1e-9)
	assert.InDelta(t, 0.8, labels[0][0], 1e-9)
	assert.True(t, f.performInference)
}

func TestRandomiseThenInferenceRestoresWeights(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.SetMode(Training))

	w0 := f.MLP().GetWeights()
	require.NoError(t, f.RandomiseWeights(1.0))

	w1 := f.MLP().GetWeights()
	assert.NotEqual(t, w0, w1)

	// Empty dataset: SetMode(Inference) restores the snapshot and trains nothing.
	require.NoError(t, f.SetMode(Inference))
	w2 := f.MLP().GetWeights()
	assert.Equal(t, w0, w2)
}

func TestPerturbWeights_DoesNotSnapshot(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.SetMode(Training))

	w0 := f.MLP().GetWeights()
	require.NoError(t, f.PerturbWeights(0.1))
	require.NoError(t, f.SetMode(Inference)) // no snapshot to restore
	w1 := f.MLP().GetWeights()
	assert.NotEqual(t, w0, w1, "perturbation survives because it was never snapshotted")
}

func TestClearDataset_RequiresTrainingMode(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	err = f.ClearDataset()
	require.Error(t, err)
	assert.ErrorIs(t, err, mlp.ErrInvalidConfig)
}

func TestSetMode_InferenceIdempotentWithEmptyDataset(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, f.SetMode(Training))
	require.NoError(t, f.SetMode(Inference))
	w0 := f.MLP().GetWeights()
	require.NoError(t, f.SetMode(Inference))
	w1 := f.MLP().GetWeights()
	assert.Equal(t, w0, w1)
}

// End-to-end scenario 1, exercised through the facade.
func TestIML_IdentityMapEndToEnd(t *testing.T) {
	f, err := New(identityConfig(), 42)
	require.NoError(t, err)
	require.NoError(t, f.SetMode(Training))

	for _, x := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		require.NoError(t, f.AddExample([]float64{x}, []float64{x}))
	}
	require.NoError(t, f.SetMode(Inference))

	for _, x := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		require.NoError(t, f.SetInput(0, x))
		require.NoError(t, f.Process())
		out := f.GetOutputs()
		assert.InDelta(t, x, out[0], 0.15)
	}
}
