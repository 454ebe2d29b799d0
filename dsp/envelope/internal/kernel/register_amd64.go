//go:build amd64 && !purego

package kernel

import "github.com/cwbudde/algo-vecmath/cpu"

func init() {
	Global.Register(OpEntry{
		Name:      "interleaved",
		SIMDLevel: cpu.SIMDSSE2,
		Priority:  10,
		Process:   processInterleaved,
	})
}
