package mlp

import (
	"fmt"
	"math"
)

// LossKind names one of the two supported losses.
type LossKind int

const (
	MSE LossKind = iota
	CrossEntropy
)

func (k LossKind) String() string {
	switch k {
	case MSE:
		return "mse"
	case CrossEntropy:
		return "cross_entropy"
	default:
		return fmt.Sprintf("loss(%d)", int(k))
	}
}

// lossFn computes a scalar loss and writes per-output gradients into
// outGrad (which must already be sized len(actual)). sampleScale folds in
// any per-sample averaging the caller wants applied (e.g. 1/N_samples).
type lossFn[F FloatType] func(expected, actual []F, outGrad []F, sampleScale F) (F, error)

func resolveLoss[F FloatType](kind LossKind) (lossFn[F], error) {
	switch kind {
	case MSE:
		return mseLoss[F], nil
	case CrossEntropy:
		return crossEntropyLoss[F], nil
	default:
		return nil, fmt.Errorf("%w: unknown loss %v", ErrInvalidConfig, kind)
	}
}

// mseLoss computes sample_scale * mean((expected-actual)^2) and writes the
// gradient -2/L*(expected_j-actual_j)*sample_scale per output.
func mseLoss[F FloatType](expected, actual []F, outGrad []F, sampleScale F) (F, error) {
	if len(expected) != len(actual) || len(outGrad) != len(actual) {
		return 0, fmt.Errorf("%w: mse expected/actual/grad length mismatch (%d/%d/%d)",
			ErrShapeMismatch, len(expected), len(actual), len(outGrad))
	}
	l := len(actual)
	var sumSq F
	for j := 0; j < l; j++ {
		d := expected[j] - actual[j]
		sumSq += d * d
	}
	loss := sampleScale * sumSq / F(l)
	invL := F(2) / F(l)
	for j := 0; j < l; j++ {
		outGrad[j] = -invL * (expected[j] - actual[j]) * sampleScale
	}
	return loss, nil
}

// crossEntropyLoss computes categorical cross-entropy with an implicit
// softmax over actual. t is the index of the first expected value > 0.5
// (the one-hot target). If no such index exists the input is malformed for
// this loss and an error is returned: a missing one-hot target is treated
// as caller misuse, not a silent zero loss.
func crossEntropyLoss[F FloatType](expected, actual []F, outGrad []F, sampleScale F) (F, error) {
	if len(expected) != len(actual) || len(outGrad) != len(actual) {
		return 0, fmt.Errorf("%w: cross-entropy expected/actual/grad length mismatch (%d/%d/%d)",
			ErrShapeMismatch, len(expected), len(actual), len(outGrad))
	}
	t := -1
	for i, v := range expected {
		if v > 0.5 {
			t = i
			break
		}
	}
	if t < 0 {
		return 0, fmt.Errorf("%w: cross-entropy target has no one-hot index (no expected value > 0.5)", ErrInvalidConfig)
	}

	maxV := actual[0]
	for _, v := range actual[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sumExp F
	softmax := make([]F, len(actual))
	for i, v := range actual {
		e := expF(v - maxV)
		softmax[i] = e
		sumExp += e
	}
	for i := range softmax {
		softmax[i] /= sumExp
	}

	logSumExp := maxV + F(math.Log(float64(sumExp)))
	loss := sampleScale * (-actual[t] + logSumExp)

	for i := range outGrad {
		outGrad[i] = (softmax[i] - expected[i]) * sampleScale
	}
	return loss, nil
}
