package mlp

import "math"

// expF and tanhF round-trip through float64 since the standard library
// only provides math.Exp/math.Tanh for float64; F is constrained to
// float32|float64 so the conversions are lossless or the expected
// single-precision truncation.
func expF[F FloatType](x F) F {
	return F(math.Exp(float64(x)))
}

func tanhF[F FloatType](x F) F {
	return F(math.Tanh(float64(x)))
}

func sqrtF[F FloatType](x F) F {
	return F(math.Sqrt(float64(x)))
}

func isFiniteF[F FloatType](x F) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
