//go:build fastmath

package param

import approx "github.com/meko-christian/algo-approx"

// expNeg returns an approximation of e^-x.
func expNeg(x float64) float64 {
	return approx.FastExp(-x)
}
