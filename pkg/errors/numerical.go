package errors

import (
	"math"
)

// CheckFinite scans values for NaN or Inf and returns a
// NumericInstabilityError naming the parameter class if any is found.
func CheckFinite(parameterClass string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericInstabilityError(parameterClass, iteration, collectBad(values))
		}
	}
	return nil
}

// CheckPositive verifies that every value is strictly positive and finite.
// Variances and precisions must satisfy this after every update.
func CheckPositive(parameterClass string, values []float64, iteration int) error {
	for _, v := range values {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericInstabilityError(parameterClass, iteration, collectBad(values))
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numeric instability.
func CheckScalar(parameterClass string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericInstabilityError(parameterClass, iteration, []float64{value})
	}
	return nil
}

// CheckMatrix checks all entries of a matrix for NaN or Inf.
func CheckMatrix(parameterClass string, matrix interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	var bad []float64
scan:
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad = append(bad, v)
				if len(bad) >= 10 {
					break scan
				}
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericInstabilityError(parameterClass, iteration, bad)
	}
	return nil
}

func collectBad(values []float64) []float64 {
	var bad []float64
	for _, v := range values {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			bad = append(bad, v)
			if len(bad) >= 10 {
				break
			}
		}
	}
	if len(bad) == 0 {
		bad = append(bad, values...)
	}
	return bad
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// StabilizeLog computes log with protection against log(0).
func StabilizeLog(value float64) float64 {
	const epsilon = 1e-10
	if value < epsilon {
		return math.Log(epsilon)
	}
	return math.Log(value)
}

// Sigmoid computes the logistic function in a numerically stable way.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}

// Log1pExp computes log(1+exp(x)) without overflow for large x.
func Log1pExp(x float64) float64 {
	if x > 35 {
		return x
	}
	if x < -35 {
		return math.Exp(x)
	}
	return math.Log1p(math.Exp(x))
}
