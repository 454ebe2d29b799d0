package kernel

import "github.com/cwbudde/algo-vecmath/cpu"

func init() {
	Global.Register(OpEntry{
		Name:      "generic",
		SIMDLevel: cpu.SIMDNone,
		Priority:  0,
		Process:   processGeneric,
	})
}

// processGeneric walks one channel at a time.
func processGeneric(c Coefficients, chunkSize int, states []State, env, in [][]float64) {
	for ch := range states {
		s := &states[ch]
		dst := env[ch]

		for i, x := range in[ch] {
			dst[i] = Step(s, x, c, chunkSize)
		}
	}
}
