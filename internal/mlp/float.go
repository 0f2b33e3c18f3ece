// Package mlp implements the neural-network primitives driving the
// interactive parameter-mapping engine: named activation and loss
// registries, single neurons with per-weight RMSProp state, fixed-width
// layers, and the multi-layer perceptron that composes them for
// per-sample and mini-batch training.
package mlp

// FloatType is the scalar type every core numeric structure is generic
// over. Two concrete instantiations are expected: float32 (the typical
// embedded/real-time choice) and float64 (convenient for tests and
// desktop tooling).
type FloatType interface {
	~float32 | ~float64
}
