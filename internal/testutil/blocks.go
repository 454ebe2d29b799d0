package testutil

import (
	"testing"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
)

// StreamMono feeds signal through process one block at a time and returns
// the concatenated output. The last block is zero-padded, so the result
// length is a multiple of blockSize. process receives the input block and
// a zeroed output block of the same shape.
func StreamMono(signal []float64, blockSize int, process func(in, out *buffer.Block)) []float64 {
	blocks := (len(signal) + blockSize - 1) / blockSize
	result := make([]float64, 0, blocks*blockSize)
	in := buffer.New(1, blockSize)
	out := buffer.New(1, blockSize)

	for b := range blocks {
		in.Zero()
		out.Zero()
		copy(in.Channel(0), signal[b*blockSize:])
		process(in, out)
		result = append(result, out.Channel(0)...)
	}

	return result
}

// PeakIndex returns the index and value of the largest absolute sample.
// It returns -1 for an empty slice.
func PeakIndex(data []float64) (int, float64) {
	idx, peak := -1, 0.0

	for i, v := range data {
		if v < 0 {
			v = -v
		}

		if idx < 0 || v > peak {
			idx, peak = i, v
		}
	}

	return idx, peak
}

// RequireZeroAllocs fails t if fn allocates.
func RequireZeroAllocs(t *testing.T, name string, fn func()) {
	t.Helper()

	allocs := testing.AllocsPerRun(50, fn)
	if allocs != 0 {
		t.Fatalf("%s: %v allocs per run, want 0", name, allocs)
	}
}
