package mlp

import "errors"

// Sentinel errors for the taxonomy in the engine's error-handling design.
// Callers classify with errors.Is; call sites wrap these with fmt.Errorf
// and %w for context.
var (
	// ErrInvalidConfig reports an unknown activation/loss identifier, a
	// zero-layer network, or a mismatched activation count at construction.
	ErrInvalidConfig = errors.New("mlp: invalid configuration")

	// ErrShapeMismatch reports a feature/label/input width that disagrees
	// with the expected width.
	ErrShapeMismatch = errors.New("mlp: shape mismatch")

	// ErrCapacityExceeded reports an Add call at capacity with replay
	// disabled.
	ErrCapacityExceeded = errors.New("mlp: capacity exceeded")

	// ErrEmptyInput reports training requested against an empty dataset.
	ErrEmptyInput = errors.New("mlp: empty input")
)
