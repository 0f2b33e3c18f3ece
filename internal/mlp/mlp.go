package mlp

import (
	"fmt"
	"math/rand/v2"
)

// ProgressFunc receives the current training iteration and epoch loss. It
// may be invoked at the final per-sample iteration, every 32nd per-sample
// iteration, or every mini-batch iteration; it has no return value and
// defines no cancellation protocol (bound MaxIter to cap training time).
type ProgressFunc[F FloatType] func(iteration uint, loss F)

// MaxGradNorm is the global gradient-norm clip applied in TrainBatch.
const MaxGradNorm = 5.0

// Config describes an MLP's fixed topology at construction time.
type Config[F FloatType] struct {
	// LayerSizes is [n_inputs, n_hidden_1, ..., n_outputs]; must have at
	// least 2 entries.
	LayerSizes []int
	// Activations has one entry per layer (len(LayerSizes)-1).
	Activations []ActivationKind
	Loss        LossKind

	// InitConstant selects constant-fill initialisation (InitValue) over
	// the default uniform-in-[-1,1] draw.
	InitConstant bool
	InitValue    F
}

// MLP is an ordered sequence of layers with a selected loss and its own
// PRNG state for permutations and noise.
type MLP[F FloatType] struct {
	layers   []*Layer[F]
	loss     LossKind
	lossFn   lossFn[F]
	nInputs  int
	nOutputs int
	rng      *rand.Rand
}

// New constructs an MLP per cfg, one layer per adjacent pair in
// cfg.LayerSizes. rng supplies the PRNG used for initialisation,
// shuffling, and noise; pass a fresh rand.New(rand.NewPCG(seed, 0)) for
// reproducible construction.
func New[F FloatType](cfg Config[F], rng *rand.Rand) (*MLP[F], error) {
	if len(cfg.LayerSizes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layer sizes, got %d", ErrInvalidConfig, len(cfg.LayerSizes))
	}
	nLayers := len(cfg.LayerSizes) - 1
	if len(cfg.Activations) != nLayers {
		return nil, fmt.Errorf("%w: need %d activations, got %d", ErrInvalidConfig, nLayers, len(cfg.Activations))
	}
	lossFn, err := resolveLoss[F](cfg.Loss)
	if err != nil {
		return nil, err
	}

	m := &MLP[F]{
		layers:   make([]*Layer[F], nLayers),
		loss:     cfg.Loss,
		lossFn:   lossFn,
		nInputs:  cfg.LayerSizes[0],
		nOutputs: cfg.LayerSizes[nLayers],
		rng:      rng,
	}
	for i := 0; i < nLayers; i++ {
		layer, err := NewLayer[F](cfg.LayerSizes[i], cfg.LayerSizes[i+1], cfg.Activations[i], cfg.InitConstant, cfg.InitValue, rng)
		if err != nil {
			return nil, err
		}
		m.layers[i] = layer
	}
	return m, nil
}

// NInputs returns n_inputs.
func (m *MLP[F]) NInputs() int { return m.nInputs }

// NOutputs returns n_outputs.
func (m *MLP[F]) NOutputs() int { return m.nOutputs }

// NHidden returns K-1, the number of hidden layers.
func (m *MLP[F]) NHidden() int { return len(m.layers) - 1 }

// Loss returns the configured loss identifier.
func (m *MLP[F]) Loss() LossKind { return m.loss }

// ParameterCount returns the total number of weights plus biases across
// every layer.
func (m *MLP[F]) ParameterCount() int {
	total := 0
	for _, l := range m.layers {
		total += l.NOut() * (l.NIn() + 1)
	}
	return total
}

// Summary renders a one-line-per-layer topology description, e.g. for a
// demo tool to print before training.
func (m *MLP[F]) Summary() string {
	s := fmt.Sprintf("MLP loss=%s inputs=%d outputs=%d\n", m.loss, m.nInputs, m.nOutputs)
	for i, l := range m.layers {
		s += fmt.Sprintf("  layer %d: %d -> %d (%s)\n", i, l.NIn(), l.NOut(), l.Activation())
	}
	return s
}

// Forward passes input through every layer in order. When capture is true,
// each layer's input is appended to the returned activation history (one
// entry per layer, the last being the final layer's input — K entries
// total). When forInference is true and the loss is CrossEntropy with
// n_outputs>1, softmax is applied to the final output vector.
func (m *MLP[F]) Forward(input []F, capture, forInference bool) ([]F, [][]F, error) {
	if len(input) != m.nInputs {
		return nil, nil, fmt.Errorf("%w: mlp expects %d inputs, got %d", ErrShapeMismatch, m.nInputs, len(input))
	}
	var history [][]F
	var historyPtr *[][]F
	if capture {
		historyPtr = &history
	}
	x := input
	for _, layer := range m.layers {
		out, err := layer.Forward(x, historyPtr)
		if err != nil {
			return nil, nil, err
		}
		x = out
	}
	if forInference && m.loss == CrossEntropy && m.nOutputs > 1 {
		x = softmax(x)
	}
	return x, history, nil
}

func softmax[F FloatType](x []F) []F {
	maxV := x[0]
	for _, v := range x[1:] {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]F, len(x))
	var sum F
	for i, v := range x {
		e := expF(v - maxV)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// TrainOptions configures per-sample and mini-batch training.
type TrainOptions[F FloatType] struct {
	MaxIter              int
	LR                   F
	ConvergenceThreshold F
	// BatchSize is only consulted by TrainBatch.
	BatchSize int
	Progress  ProgressFunc[F]
}

// Train runs per-sample training: each sample updates weights directly
// (via Layer.Update) with its own forward/backward pass, scaled by
// 1/N_samples. Returns the final epoch loss. Empty features is a no-op
// returning ErrEmptyInput so callers may treat it as a no-op.
func (m *MLP[F]) Train(features, labels [][]F, opts TrainOptions[F]) (F, error) {
	n := len(features)
	if n == 0 {
		return 0, ErrEmptyInput
	}
	if len(labels) != n {
		return 0, fmt.Errorf("%w: %d features vs %d labels", ErrShapeMismatch, n, len(labels))
	}
	sampleScale := F(1) / F(n)

	var epochLoss F
	for iter := 0; iter < opts.MaxIter; iter++ {
		epochLoss = 0
		for s := 0; s < n; s++ {
			out, acts, err := m.Forward(features[s], true, false)
			if err != nil {
				return 0, err
			}
			outGrad := make([]F, len(out))
			loss, err := m.lossFn(labels[s], out, outGrad, sampleScale)
			if err != nil {
				return 0, err
			}

			grad := outGrad
			for i := len(m.layers) - 1; i >= 0; i-- {
				downstream, err := m.layers[i].Update(acts[i], grad, opts.LR)
				if err != nil {
					return 0, err
				}
				grad = downstream
			}
			epochLoss += loss
		}
		epochLoss *= sampleScale

		if opts.Progress != nil && (iter == opts.MaxIter-1 || iter%32 == 0) {
			opts.Progress(uint(iter), epochLoss)
		}
		if isFiniteF(epochLoss) && epochLoss < opts.ConvergenceThreshold {
			break
		}
	}
	return epochLoss, nil
}

// TrainBatch runs mini-batch training with gradient accumulation, a global
// gradient-norm clip at MaxGradNorm, and an RMSProp apply-step per batch.
func (m *MLP[F]) TrainBatch(features, labels [][]F, opts TrainOptions[F]) (F, error) {
	n := len(features)
	if n == 0 {
		return 0, ErrEmptyInput
	}
	if len(labels) != n {
		return 0, fmt.Errorf("%w: %d features vs %d labels", ErrShapeMismatch, n, len(labels))
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = n
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	var epochLoss F
	for iter := 0; iter < opts.MaxIter; iter++ {
		m.rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		var totalLoss F
		nBatches := 0
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			size := end - start

			for _, l := range m.layers {
				l.InitAccumulators()
			}

			var batchLoss F
			for b := start; b < end; b++ {
				idx := indices[b]
				out, acts, err := m.Forward(features[idx], true, false)
				if err != nil {
					return 0, err
				}
				outGrad := make([]F, len(out))
				loss, err := m.lossFn(labels[idx], out, outGrad, 1)
				if err != nil {
					return 0, err
				}
				grad := outGrad
				for i := len(m.layers) - 1; i >= 0; i-- {
					downstream, err := m.layers[i].Accumulate(acts[i], grad)
					if err != nil {
						return 0, err
					}
					grad = downstream
				}
				batchLoss += loss
			}

			invBatch := F(1) / F(size)
			var gradSumSq F
			for _, l := range m.layers {
				gradSumSq += l.GradSumSq(invBatch)
			}
			gradNorm := sqrtF(gradSumSq)
			if gradNorm > F(MaxGradNorm) {
				scale := F(MaxGradNorm) / gradNorm
				for _, l := range m.layers {
					l.ScaleGrads(scale)
				}
			}

			for _, l := range m.layers {
				l.ApplyStep(opts.LR, invBatch)
			}

			totalLoss += batchLoss / F(size)
			nBatches++
		}
		epochLoss = totalLoss / F(nBatches)

		if opts.Progress != nil {
			opts.Progress(uint(iter), epochLoss)
		}
		if isFiniteF(epochLoss) && epochLoss < opts.ConvergenceThreshold {
			break
		}
	}
	return epochLoss, nil
}

// Weights is the get_weights/set_weights payload: one []F per node (the
// last element of each inner slice is the bias), grouped by layer.
type Weights[F FloatType] [][][]F

// GetWeights copies the full three-level weight structure (layer -> node
// -> weights+bias).
func (m *MLP[F]) GetWeights() Weights[F] {
	out := make(Weights[F], len(m.layers))
	for li, l := range m.layers {
		layerW := make([][]F, l.NOut())
		for ni := 0; ni < l.NOut(); ni++ {
			node := l.Node(ni)
			w := node.Weights()
			layerW[ni] = append(w, node.Bias())
		}
		out[li] = layerW
	}
	return out
}

// SetWeights overwrites every node's weights and bias from w, which must
// match GetWeights's shape exactly.
func (m *MLP[F]) SetWeights(w Weights[F]) error {
	if len(w) != len(m.layers) {
		return fmt.Errorf("%w: expected %d layers, got %d", ErrShapeMismatch, len(m.layers), len(w))
	}
	for li, l := range m.layers {
		if len(w[li]) != l.NOut() {
			return fmt.Errorf("%w: layer %d expected %d nodes, got %d", ErrShapeMismatch, li, l.NOut(), len(w[li]))
		}
		for ni := 0; ni < l.NOut(); ni++ {
			nodeW := w[li][ni]
			if len(nodeW) != l.NIn()+1 {
				return fmt.Errorf("%w: layer %d node %d expected %d weights+bias, got %d", ErrShapeMismatch, li, ni, l.NIn()+1, len(nodeW))
			}
			if err := l.Node(ni).SetWeights(nodeW[:len(nodeW)-1], nodeW[len(nodeW)-1]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RandomiseAll draws fresh weights (biases untouched) for every node.
func (m *MLP[F]) RandomiseAll(scale F) {
	for _, l := range m.layers {
		for i := 0; i < l.NOut(); i++ {
			l.Node(i).Randomise(scale, m.rng)
		}
	}
}

// PerturbAll adds exploration noise to every node's weights.
func (m *MLP[F]) PerturbAll(speed F) {
	for _, l := range m.layers {
		for i := 0; i < l.NOut(); i++ {
			l.Node(i).Perturb(speed, m.rng)
		}
	}
}

// SmoothUpdate blends this MLP's weights toward other's, layer-wise and
// node-wise. other is read by value only.
func (m *MLP[F]) SmoothUpdate(other *MLP[F], alpha F) error {
	if len(other.layers) != len(m.layers) {
		return fmt.Errorf("%w: smooth_update layer count mismatch (%d vs %d)", ErrShapeMismatch, len(m.layers), len(other.layers))
	}
	for li, l := range m.layers {
		otherLayer := other.layers[li]
		if otherLayer.NOut() != l.NOut() {
			return fmt.Errorf("%w: smooth_update layer %d width mismatch (%d vs %d)", ErrShapeMismatch, li, l.NOut(), otherLayer.NOut())
		}
		for i := 0; i < l.NOut(); i++ {
			if err := l.Node(i).SmoothUpdate(otherLayer.Node(i), alpha); err != nil {
				return err
			}
		}
	}
	return nil
}

// SanitiseAll sanitises every layer and reports whether any correction
// occurred anywhere in the network.
func (m *MLP[F]) SanitiseAll() bool {
	corrected := false
	for _, l := range m.layers {
		if l.Sanitise() {
			corrected = true
		}
	}
	return corrected
}

// ResetOptimiserAll zeroes every node's RMSProp state.
func (m *MLP[F]) ResetOptimiserAll() {
	for _, l := range m.layers {
		l.ResetOptimiser()
	}
}
