package kernel

// processInterleaved advances all channels in lockstep, one sample index at
// a time, keeping the channel states hot together. It produces the same
// bits as processGeneric.
func processInterleaved(c Coefficients, chunkSize int, states []State, env, in [][]float64) {
	if len(states) == 1 {
		processGeneric(c, chunkSize, states, env, in)
		return
	}

	n := len(in[0])
	for i := range n {
		for ch := range states {
			env[ch][i] = Step(&states[ch], in[ch][i], c, chunkSize)
		}
	}
}
