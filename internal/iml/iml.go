// Package iml implements the interactive-ML facade: the control-rate API
// that composes one MLP and one Dataset under a user-oriented protocol —
// push inputs, request inference, read outputs, and save training examples
// by demonstration.
package iml

import (
	"fmt"
	"math/rand/v2"

	"github.com/monkeyw/imlengine/internal/dataset"
	"github.com/monkeyw/imlengine/internal/mlp"
)

// Mode selects whether process() performs inference or the facade is
// collecting training examples.
type Mode int

const (
	Inference Mode = iota
	Training
)

func (m Mode) String() string {
	switch m {
	case Inference:
		return "inference"
	case Training:
		return "training"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// saveState is the two-step interactive save protocol's state: A = awaiting
// input position, B = awaiting output position.
type saveState int

const (
	stateA saveState = iota
	stateB
)

// LogFunc receives a human-oriented status message. Exact strings are
// contractual for the events named in the engine's external-interfaces
// design (e.g. "Example saved.").
type LogFunc func(message string)

// Config describes the MLP topology and training hyperparameters an IML
// facade is constructed with.
type Config[F mlp.FloatType] struct {
	NInputs     int
	NOutputs    int
	Hidden      []int
	Activations []mlp.ActivationKind // one per layer: len(Hidden)+1
	Loss        mlp.LossKind

	MaxIter              int
	LR                   F
	ConvergenceThreshold F

	MaxExamples   int
	ReplayEnabled bool
	ForgetMode    dataset.ForgetMode
}

// IML holds the MLP and Dataset plus the control-rate state the outer loop
// and the interactive user observe. It is not safe for concurrent use on
// its own — wrap it in Guarded, or serialise calls with an external mutex,
// per the engine's concurrency model.
type IML[F mlp.FloatType] struct {
	net  *mlp.MLP[F]
	data *dataset.Dataset[F]
	rng  *rand.Rand

	inputState  []F
	outputState []F

	mode             Mode
	performInference bool
	inputDirty       bool
	save             saveState

	storedWeights        mlp.Weights[F]
	weightsWerePerturbed bool

	trainOpts mlp.TrainOptions[F]

	logFn      LogFunc
	progressFn mlp.ProgressFunc[F]
}

// New constructs an IML facade from cfg. seed seeds both the MLP's and the
// dataset's PRNGs (two independent rand.Rand instances so dataset shuffles
// never perturb network initialisation order or vice versa).
func New[F mlp.FloatType](cfg Config[F], seed uint64) (*IML[F], error) {
	layerSizes := make([]int, 0, len(cfg.Hidden)+2)
	layerSizes = append(layerSizes, cfg.NInputs+1) // bias unit appended at training/inference time
	layerSizes = append(layerSizes, cfg.Hidden...)
	layerSizes = append(layerSizes, cfg.NOutputs)

	netRng := rand.New(rand.NewPCG(seed, 0))
	dataRng := rand.New(rand.NewPCG(seed, 1))

	net, err := mlp.New[F](mlp.Config[F]{
		LayerSizes:  layerSizes,
		Activations: cfg.Activations,
		Loss:        cfg.Loss,
	}, netRng)
	if err != nil {
		return nil, err
	}

	ds := dataset.New[F](cfg.MaxExamples, cfg.ReplayEnabled, cfg.ForgetMode, dataRng)

	inputState := make([]F, cfg.NInputs)
	for i := range inputState {
		inputState[i] = 0.5
	}
	outputState := make([]F, cfg.NOutputs)

	return &IML[F]{
		net:              net,
		data:             ds,
		rng:              netRng,
		inputState:       inputState,
		outputState:      outputState,
		mode:             Inference,
		performInference: true,
		inputDirty:       true,
		save:             stateA,
		trainOpts: mlp.TrainOptions[F]{
			MaxIter:              cfg.MaxIter,
			LR:                   cfg.LR,
			ConvergenceThreshold: cfg.ConvergenceThreshold,
		},
	}, nil
}

// SetLogger installs (or clears, with nil) the log callback.
func (f *IML[F]) SetLogger(fn LogFunc) { f.logFn = fn }

// SetProgress installs (or clears, with nil) the training progress
// callback.
func (f *IML[F]) SetProgress(fn mlp.ProgressFunc[F]) {
	f.progressFn = fn
	f.trainOpts.Progress = fn
}

func (f *IML[F]) log(msg string) {
	if f.logFn != nil {
		f.logFn(msg)
	}
}

// Mode returns the current mode.
func (f *IML[F]) Mode() Mode { return f.mode }

// MLP exposes the underlying network for read-only inspection (weight
// I/O, summaries). Mutating it outside the facade's own operations
// bypasses the facade's invariants and is the caller's responsibility.
func (f *IML[F]) MLP() *mlp.MLP[F] { return f.net }

// Dataset exposes the underlying dataset for read-only inspection.
func (f *IML[F]) Dataset() *dataset.Dataset[F] { return f.data }

// SetInput clamps v to [0,1], stores it at input_state[i], and marks the
// input dirty.
func (f *IML[F]) SetInput(i int, v F) error {
	if i < 0 || i >= len(f.inputState) {
		return fmt.Errorf("%w: input index %d out of range [0,%d)", mlp.ErrShapeMismatch, i, len(f.inputState))
	}
	f.inputState[i] = clamp01(v)
	f.inputDirty = true
	return nil
}

// SetInputs bulk-sets every input.
func (f *IML[F]) SetInputs(vs []F) error {
	if len(vs) != len(f.inputState) {
		return fmt.Errorf("%w: expected %d inputs, got %d", mlp.ErrShapeMismatch, len(f.inputState), len(vs))
	}
	for i, v := range vs {
		f.inputState[i] = clamp01(v)
	}
	f.inputDirty = true
	return nil
}

// GetInputState returns a copy of the current input state.
func (f *IML[F]) GetInputState() []F {
	return append([]F(nil), f.inputState...)
}

// SetOutput clamps v to [0,1] and stores it at output_state[j]. Used by
// external UIs and by the interactive save protocol while process() is
// gated off.
func (f *IML[F]) SetOutput(j int, v F) error {
	if j < 0 || j >= len(f.outputState) {
		return fmt.Errorf("%w: output index %d out of range [0,%d)", mlp.ErrShapeMismatch, j, len(f.outputState))
	}
	f.outputState[j] = clamp01(v)
	return nil
}

// SetOutputs bulk-sets every output.
func (f *IML[F]) SetOutputs(vs []F) error {
	if len(vs) != len(f.outputState) {
		return fmt.Errorf("%w: expected %d outputs, got %d", mlp.ErrShapeMismatch, len(f.outputState), len(vs))
	}
	for j, v := range vs {
		f.outputState[j] = clamp01(v)
	}
	return nil
}

// GetOutputs returns a copy of the current output state.
func (f *IML[F]) GetOutputs() []F {
	return append([]F(nil), f.outputState...)
}

// Process runs one inference pass when gated on and the input is dirty;
// otherwise it is a no-op. This is the only mechanism by which the
// interactive save protocol suppresses inference (see SaveExample).
func (f *IML[F]) Process() error {
	if !f.performInference || !f.inputDirty {
		return nil
	}
	out, err := f.forwardCurrentInput()
	if err != nil {
		return err
	}
	copy(f.outputState, out)
	f.inputDirty = false
	return nil
}

func (f *IML[F]) forwardCurrentInput() ([]F, error) {
	withBias := make([]F, len(f.inputState)+1)
	copy(withBias, f.inputState)
	withBias[len(f.inputState)] = 1
	out, _, err := f.net.Forward(withBias, false, true)
	return out, err
}

// AddExample adds (feature, label) to the dataset directly, bypassing the
// interactive save-example gating. Intended for programmatic callers.
func (f *IML[F]) AddExample(feature, label []F) error {
	return f.data.Add(feature, label)
}

// SaveExample drives the two-step interactive save protocol.
//
// In state A (awaiting input position): gates off inference, logs
// "Move to desired output position...", and transitions to state B, where
// process() becomes a no-op so the caller/UI can edit the output state
// freely via SetOutput*.
//
// In state B (awaiting output position): appends (input_state,
// output_state) to the dataset, re-enables inference, runs one inference
// pass so the displayed output reflects the network again, logs
// "Example saved.", and transitions back to state A.
func (f *IML[F]) SaveExample() error {
	switch f.save {
	case stateA:
		f.performInference = false
		f.log("Move to desired output position...")
		f.save = stateB
		return nil
	default: // stateB
		if err := f.data.Add(f.inputState, f.outputState); err != nil {
			return err
		}
		f.performInference = true
		f.inputDirty = true
		if err := f.Process(); err != nil {
			return err
		}
		f.log("Example saved.")
		f.save = stateA
		return nil
	}
}

// ClearDataset empties the dataset. Allowed only in Training mode; does
// not affect the save-protocol state.
func (f *IML[F]) ClearDataset() error {
	if f.mode != Training {
		return fmt.Errorf("%w: clear_dataset requires Training mode", mlp.ErrInvalidConfig)
	}
	f.data.Clear()
	f.log("Dataset cleared.")
	return nil
}

// RandomiseWeights is allowed only in Training mode. It snapshots the
// current weights into storedWeights, draws fresh weights, runs an
// inference pass so the caller sees the effect, and marks
// weightsWerePerturbed so the next Inference-mode transition restores the
// snapshot before training.
func (f *IML[F]) RandomiseWeights(scale F) error {
	if f.mode != Training {
		return fmt.Errorf("%w: randomise_weights requires Training mode", mlp.ErrInvalidConfig)
	}
	f.storedWeights = f.net.GetWeights()
	f.net.RandomiseAll(scale)
	f.weightsWerePerturbed = true
	f.inputDirty = true
	f.log("Weights randomised.")
	return f.Process()
}

// PerturbWeights adds exploration noise without snapshotting — a
// perturbation is meant to be either kept by the user or discarded by a
// fresh RandomiseWeights call, never auto-restored.
func (f *IML[F]) PerturbWeights(speed F) error {
	f.net.PerturbAll(speed)
	f.inputDirty = true
	return f.Process()
}

// SetMode transitions between Inference and Training. Transitioning from
// Training to Inference trains the network: if weights were perturbed, the
// pre-perturbation snapshot is restored first (and the flag cleared); the
// dataset is then snapshotted (with bias appended) and passed to
// MLP.Train per the configured hyperparameters. An empty dataset is a
// no-op plus a log message, not an error. A final inference pass is run
// so outputs reflect the trained network.
func (f *IML[F]) SetMode(m Mode) error {
	if f.mode == Training && m == Inference {
		if f.weightsWerePerturbed {
			if err := f.net.SetWeights(f.storedWeights); err != nil {
				return err
			}
			f.weightsWerePerturbed = false
		}

		features := f.data.Features(true)
		labels := f.data.Labels()
		if len(features) == 0 {
			f.log("Empty dataset, skipping training.")
		} else {
			if _, err := f.net.Train(features, labels, f.trainOpts); err != nil {
				return err
			}
			f.log("Training complete.")
		}

		f.mode = m
		f.performInference = true
		f.inputDirty = true
		return f.Process()
	}
	f.mode = m
	return nil
}

func clamp01[F mlp.FloatType](v F) F {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
