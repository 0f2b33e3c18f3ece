package mlp

import (
	"fmt"
	"math/rand/v2"
)

// Numeric safety knobs from the engine's design notes. These are
// contractual: they are the mechanism by which interactive-rate training
// on tiny, noisy datasets avoids divergence.
const (
	gradClampAbs       = 10.0
	squaredAvgCeiling  = 1e6
	effectiveLRCeiling = 1.0
	denomFloor         = 1e-6
)

// Node is a single neuron: weights, bias, per-weight RMSProp state, and a
// gradient accumulator. A Node never outlives its enclosing Layer.
type Node[F FloatType] struct {
	weights []F
	bias    F

	squaredGradAvg     []F
	biasSquaredGradAvg F

	gradAccum     []F
	biasGradAccum F

	lastPreActivation F
}

// NewNode creates a node of width nIn. When constant is true every weight
// and the bias are set to value; otherwise weights are drawn uniformly in
// [-1,1] and bias starts at 0.
func NewNode[F FloatType](nIn int, constant bool, value F, rng *rand.Rand) *Node[F] {
	n := &Node[F]{
		weights:        make([]F, nIn),
		squaredGradAvg: make([]F, nIn),
		gradAccum:      make([]F, nIn),
	}
	if constant {
		for i := range n.weights {
			n.weights[i] = value
		}
		n.bias = value
	} else {
		for i := range n.weights {
			n.weights[i] = F(rng.Float64()*2 - 1)
		}
	}
	return n
}

// NIn returns the node's input width.
func (n *Node[F]) NIn() int { return len(n.weights) }

// Weights returns a copy of the node's weight vector.
func (n *Node[F]) Weights() []F {
	out := make([]F, len(n.weights))
	copy(out, n.weights)
	return out
}

// Bias returns the node's bias.
func (n *Node[F]) Bias() F { return n.bias }

// SetWeights overwrites the node's weights and bias in place. Returns
// ErrShapeMismatch, leaving the node unchanged, if the length disagrees
// with NIn.
func (n *Node[F]) SetWeights(weights []F, bias F) error {
	if len(weights) != len(n.weights) {
		return fmt.Errorf("%w: node has %d weights, got %d", ErrShapeMismatch, len(n.weights), len(weights))
	}
	copy(n.weights, weights)
	n.bias = bias
	return nil
}

// Forward computes inner = sum(w_j*input_j) + bias, caches it as
// lastPreActivation, and returns it. The enclosing layer applies the
// activation function.
func (n *Node[F]) Forward(input []F) (F, error) {
	if len(input) != len(n.weights) {
		return 0, fmt.Errorf("%w: node expects %d inputs, got %d", ErrShapeMismatch, len(n.weights), len(input))
	}
	var inner F
	for j, w := range n.weights {
		inner += w * input[j]
	}
	inner += n.bias
	n.lastPreActivation = inner
	return inner, nil
}

// LastPreActivation returns the pre-activation value cached by the most
// recent Forward call.
func (n *Node[F]) LastPreActivation() F { return n.lastPreActivation }

// Accumulate adds input_j*signal to each weight's gradient accumulator and
// signal to the bias accumulator. signal is dE/d(inner). Additive across
// calls within the same batch; a zero signal is a no-op.
func (n *Node[F]) Accumulate(input []F, signal F) error {
	if len(input) != len(n.weights) {
		return fmt.Errorf("%w: node expects %d inputs, got %d", ErrShapeMismatch, len(n.weights), len(input))
	}
	for j, x := range input {
		n.gradAccum[j] += x * signal
	}
	n.biasGradAccum += signal
	return nil
}

// ApplyStep performs one RMSProp-style adaptive update from the
// accumulated gradient, then zeroes the accumulator. invBatch scales the
// raw accumulator (typically 1/batchSize) before clamping.
func (n *Node[F]) ApplyStep(lr, invBatch F) {
	for j := range n.weights {
		g := clampF(n.gradAccum[j]*invBatch, -gradClampAbs, gradClampAbs)
		n.squaredGradAvg[j] = 0.9*n.squaredGradAvg[j] + 0.1*g*g
		if n.squaredGradAvg[j] > squaredAvgCeiling {
			n.squaredGradAvg[j] = squaredAvgCeiling
		}
		eta := lr / (sqrtF(n.squaredGradAvg[j]) + F(denomFloor))
		if eta > effectiveLRCeiling {
			eta = effectiveLRCeiling
		}
		n.weights[j] -= eta * g
		n.gradAccum[j] = 0
	}

	g := clampF(n.biasGradAccum*invBatch, -gradClampAbs, gradClampAbs)
	n.biasSquaredGradAvg = 0.9*n.biasSquaredGradAvg + 0.1*g*g
	if n.biasSquaredGradAvg > squaredAvgCeiling {
		n.biasSquaredGradAvg = squaredAvgCeiling
	}
	eta := lr / (sqrtF(n.biasSquaredGradAvg) + F(denomFloor))
	if eta > effectiveLRCeiling {
		eta = effectiveLRCeiling
	}
	n.bias -= eta * g
	n.biasGradAccum = 0
}

// UpdateDirect applies an immediate per-sample weight update, used only by
// the per-sample training mode: w_j += lr*input_j*signal. The bias is left
// unchanged.
func (n *Node[F]) UpdateDirect(input []F, signal, lr F) error {
	if len(input) != len(n.weights) {
		return fmt.Errorf("%w: node expects %d inputs, got %d", ErrShapeMismatch, len(n.weights), len(input))
	}
	for j, x := range input {
		n.weights[j] += lr * x * signal
	}
	return nil
}

// Randomise draws each weight uniformly in [-scale, scale]. The bias is
// left untouched, consistent with zero-initialised biases never being
// randomised elsewhere in this package.
func (n *Node[F]) Randomise(scale F, rng *rand.Rand) {
	for j := range n.weights {
		n.weights[j] = F(rng.Float64()*2-1) * scale
	}
}

// Perturb adds, to each weight, the sum of three independent uniform draws
// in [-1,1], scaled by 3*speed. It does not snapshot or touch the bias.
func (n *Node[F]) Perturb(speed F, rng *rand.Rand) {
	for j := range n.weights {
		noise := F(rng.Float64()*2-1) + F(rng.Float64()*2-1) + F(rng.Float64()*2-1)
		n.weights[j] += 3 * speed * noise
	}
}

// SmoothUpdate replaces each weight with (1-alpha)*w + alpha*other. other
// is read by value only (no shared ownership).
func (n *Node[F]) SmoothUpdate(other *Node[F], alpha F) error {
	if len(other.weights) != len(n.weights) {
		return fmt.Errorf("%w: smooth_update node width mismatch (%d vs %d)", ErrShapeMismatch, len(n.weights), len(other.weights))
	}
	for j := range n.weights {
		n.weights[j] = (1-alpha)*n.weights[j] + alpha*other.weights[j]
	}
	n.bias = (1-alpha)*n.bias + alpha*other.bias
	return nil
}

// ResetOptimiser zeroes the RMSProp running averages (weights/bias
// untouched).
func (n *Node[F]) ResetOptimiser() {
	for j := range n.squaredGradAvg {
		n.squaredGradAvg[j] = 0
	}
	n.biasSquaredGradAvg = 0
}

// Sanitise replaces any non-finite weight, bias, or running average with
// zero and reports whether any substitution occurred.
func (n *Node[F]) Sanitise() bool {
	corrected := false
	for j := range n.weights {
		if !isFiniteF(n.weights[j]) {
			n.weights[j] = 0
			corrected = true
		}
		if !isFiniteF(n.squaredGradAvg[j]) {
			n.squaredGradAvg[j] = 0
			corrected = true
		}
	}
	if !isFiniteF(n.bias) {
		n.bias = 0
		corrected = true
	}
	if !isFiniteF(n.biasSquaredGradAvg) {
		n.biasSquaredGradAvg = 0
		corrected = true
	}
	return corrected
}
