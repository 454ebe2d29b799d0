//go:build !fastmath

package param

import "math"

// expNeg returns e^-x.
func expNeg(x float64) float64 {
	return math.Exp(-x)
}
