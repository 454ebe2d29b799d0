//go:build arm64 && !purego

package kernel

import "github.com/cwbudde/algo-vecmath/cpu"

func init() {
	Global.Register(OpEntry{
		Name:      "interleaved",
		SIMDLevel: cpu.SIMDNEON,
		Priority:  10,
		Process:   processInterleaved,
	})
}
