package mlp

import (
	"fmt"
	"math/rand/v2"
)

// Layer is a fixed-width slab of homogeneous neurons sharing one
// activation. Every contained Node has the same input width, which is the
// layer's effective input size.
type Layer[F FloatType] struct {
	nodes      []*Node[F]
	activation ActivationKind
	fns        activationFns[F]
}

// NewLayer creates a layer of nOut nodes, each of width nIn. When constant
// is true, every node's weights/bias are set to initValue; otherwise the
// weights are drawn uniformly in [-1,1] and each bias starts at 0.
func NewLayer[F FloatType](nIn, nOut int, activation ActivationKind, constant bool, initValue F, rng *rand.Rand) (*Layer[F], error) {
	fns, err := resolveActivation[F](activation)
	if err != nil {
		return nil, err
	}
	l := &Layer[F]{
		nodes:      make([]*Node[F], nOut),
		activation: activation,
		fns:        fns,
	}
	for i := range l.nodes {
		l.nodes[i] = NewNode[F](nIn, constant, initValue, rng)
	}
	return l, nil
}

// NIn returns the layer's input width (0 if the layer has no nodes).
func (l *Layer[F]) NIn() int {
	if len(l.nodes) == 0 {
		return 0
	}
	return l.nodes[0].NIn()
}

// NOut returns the layer's output width.
func (l *Layer[F]) NOut() int { return len(l.nodes) }

// Activation returns the layer's activation identifier.
func (l *Layer[F]) Activation() ActivationKind { return l.activation }

// Node returns the i-th node for weight I/O. Callers must not retain the
// pointer past the layer's lifetime.
func (l *Layer[F]) Node(i int) *Node[F] { return l.nodes[i] }

// Forward computes output_i = activation(node_i.forward(input)) for every
// node. If history is non-nil, input is appended to it before returning
// (used by MLP to capture per-layer activations for backprop).
func (l *Layer[F]) Forward(input []F, history *[][]F) ([]F, error) {
	if history != nil {
		snapshot := make([]F, len(input))
		copy(snapshot, input)
		*history = append(*history, snapshot)
	}
	out := make([]F, len(l.nodes))
	for i, node := range l.nodes {
		pre, err := node.Forward(input)
		if err != nil {
			return nil, err
		}
		out[i] = l.fns.fwd(pre)
	}
	return out, nil
}

// Accumulate backpropagates upstreamGrad through the layer's activation
// derivatives, accumulates each node's gradient, and returns the
// downstream gradient (length NIn).
func (l *Layer[F]) Accumulate(inputActivations, upstreamGrad []F) ([]F, error) {
	if len(upstreamGrad) != len(l.nodes) {
		return nil, fmt.Errorf("%w: layer expects %d upstream grads, got %d", ErrShapeMismatch, len(l.nodes), len(upstreamGrad))
	}
	downstream := make([]F, l.NIn())
	for i, node := range l.nodes {
		signal := upstreamGrad[i] * l.fns.deriv(node.LastPreActivation())
		if err := node.Accumulate(inputActivations, signal); err != nil {
			return nil, err
		}
		weights := node.weights
		for j, w := range weights {
			downstream[j] += signal * w
		}
	}
	return downstream, nil
}

// Update backpropagates like Accumulate but applies each node's weight
// update immediately via UpdateDirect with the negated signal (a descent
// step of lr*signal*input), using the pre-update weights to compute the
// downstream gradient first.
func (l *Layer[F]) Update(inputActivations, upstreamGrad []F, lr F) ([]F, error) {
	if len(upstreamGrad) != len(l.nodes) {
		return nil, fmt.Errorf("%w: layer expects %d upstream grads, got %d", ErrShapeMismatch, len(l.nodes), len(upstreamGrad))
	}
	downstream := make([]F, l.NIn())
	signals := make([]F, len(l.nodes))
	for i, node := range l.nodes {
		signal := upstreamGrad[i] * l.fns.deriv(node.LastPreActivation())
		signals[i] = signal
		weights := node.weights
		for j, w := range weights {
			downstream[j] += signal * w
		}
	}
	for i, node := range l.nodes {
		if err := node.UpdateDirect(inputActivations, -signals[i], lr); err != nil {
			return nil, err
		}
	}
	return downstream, nil
}

// GradSumSq sums, over nodes and weights (bias excluded), the squared
// scaled gradient accumulator: Σ_j (grad_accum_j * invBatch)^2. Used for
// global gradient norm clipping.
func (l *Layer[F]) GradSumSq(invBatch F) F {
	var sum F
	for _, node := range l.nodes {
		for _, g := range node.gradAccum {
			scaled := g * invBatch
			sum += scaled * scaled
		}
	}
	return sum
}

// ScaleGrads multiplies every accumulator (weights and bias) by c.
func (l *Layer[F]) ScaleGrads(c F) {
	for _, node := range l.nodes {
		for j := range node.gradAccum {
			node.gradAccum[j] *= c
		}
		node.biasGradAccum *= c
	}
}

// InitAccumulators zeroes every node's gradient accumulator. It is
// equivalent to ClearAccumulators; both are provided for call-site clarity
// (init before a batch, clear after applying a step).
func (l *Layer[F]) InitAccumulators() { l.ClearAccumulators() }

// ClearAccumulators zeroes every node's gradient accumulator.
func (l *Layer[F]) ClearAccumulators() {
	for _, node := range l.nodes {
		for j := range node.gradAccum {
			node.gradAccum[j] = 0
		}
		node.biasGradAccum = 0
	}
}

// ApplyStep calls ApplyStep on every node.
func (l *Layer[F]) ApplyStep(lr, invBatch F) {
	for _, node := range l.nodes {
		node.ApplyStep(lr, invBatch)
	}
}

// ResetOptimiser zeroes every node's RMSProp state.
func (l *Layer[F]) ResetOptimiser() {
	for _, node := range l.nodes {
		node.ResetOptimiser()
	}
}

// Sanitise sanitises every node and reports whether any correction
// occurred anywhere in the layer.
func (l *Layer[F]) Sanitise() bool {
	corrected := false
	for _, node := range l.nodes {
		if node.Sanitise() {
			corrected = true
		}
	}
	return corrected
}
