package core

import (
	"fmt"
	"math"
)

const (
	// MaxBlockSize bounds the per-call block length accepted by Prepare.
	MaxBlockSize = 1 << 16
	// MaxChannels bounds the channel count accepted by Prepare.
	MaxChannels = 64
	// MaxSampleRate bounds the sample rate accepted by Prepare.
	MaxSampleRate = 768000.0
)

// ProcessSpec defines the streaming configuration a processor is prepared for.
type ProcessSpec struct {
	SampleRate  float64
	BlockSize   int
	NumChannels int
}

// SpecOption mutates a ProcessSpec.
type SpecOption func(*ProcessSpec)

// DefaultProcessSpec returns sensible defaults for offline and streaming use.
func DefaultProcessSpec() ProcessSpec {
	return ProcessSpec{
		SampleRate:  48000,
		BlockSize:   512,
		NumChannels: 2,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) SpecOption {
	return func(spec *ProcessSpec) {
		if sampleRate > 0 {
			spec.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the processing block size.
func WithBlockSize(blockSize int) SpecOption {
	return func(spec *ProcessSpec) {
		if blockSize > 0 {
			spec.BlockSize = blockSize
		}
	}
}

// WithNumChannels sets the channel count.
func WithNumChannels(numChannels int) SpecOption {
	return func(spec *ProcessSpec) {
		if numChannels > 0 {
			spec.NumChannels = numChannels
		}
	}
}

// NewProcessSpec applies zero or more options to the default spec.
func NewProcessSpec(opts ...SpecOption) ProcessSpec {
	spec := DefaultProcessSpec()
	for _, opt := range opts {
		if opt != nil {
			opt(&spec)
		}
	}

	return spec
}

// Validate reports whether the ProcessSpec can be used to allocate processing state.
func (s ProcessSpec) Validate() error {
	if err := ValidateSampleRate(s.SampleRate); err != nil {
		return err
	}

	if s.BlockSize <= 0 || s.BlockSize > MaxBlockSize {
		return fmt.Errorf("block size must be in [1, %d]: %d", MaxBlockSize, s.BlockSize)
	}

	if s.NumChannels <= 0 || s.NumChannels > MaxChannels {
		return fmt.Errorf("channel count must be in [1, %d]: %d", MaxChannels, s.NumChannels)
	}

	return nil
}

// ValidateSampleRate reports whether sampleRate is finite and in
// (0, MaxSampleRate].
func ValidateSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate || math.IsNaN(sampleRate) {
		return fmt.Errorf("sample rate must be in (0, %g]: %f", MaxSampleRate, sampleRate)
	}

	return nil
}

// SamplesFor converts a duration in milliseconds to a whole sample count,
// truncating toward zero.
func (s ProcessSpec) SamplesFor(ms float64) int {
	return int(ms / 1000 * s.SampleRate)
}
