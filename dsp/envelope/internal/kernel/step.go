package kernel

import "github.com/cwbudde/algo-dlay/dsp/core"

// Step advances s by one input sample and returns the envelope value that
// applies to x. The value is computed from the level latched by earlier
// chunks; x only contributes to the chunk in progress. A latched level
// equal to the envelope keeps attacking, so a saturated envelope holds at 1.
func Step(s *State, x float64, c Coefficients, chunkSize int) float64 {
	if s.Level >= s.Env && s.Level > 0 {
		s.Env = c.Attack*s.Env + (1-c.Attack)*s.Level
	} else {
		s.Env = core.FlushDenormals(s.Env * c.Release)
	}

	env := s.Env

	if x < 0 {
		x = -x
	}

	if x > s.ChunkMax {
		s.ChunkMax = x
	}

	s.ChunkCount++
	if s.ChunkCount >= chunkSize {
		if s.ChunkMax > c.Threshold {
			s.Level = 1
		} else {
			s.Level = 0
		}

		s.ChunkCount = 0
		s.ChunkMax = 0
	}

	return env
}
