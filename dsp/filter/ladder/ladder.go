package ladder

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
)

const (
	defaultCutoffHz  = 2500.0
	defaultResonance = 0.3

	minCutoffHz    = 1.0
	maxResonance   = 1.0
	maxCutoffRatio = 0.45 // of the sample rate
	maxFeedback    = 4.0

	stateLimit = 32.0
)

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	cutoffHz  float64
	resonance float64
}

func defaultConfig() config {
	return config{
		cutoffHz:  defaultCutoffHz,
		resonance: defaultResonance,
	}
}

// WithCutoffHz sets the initial cutoff in Hz. Must be finite and > 0.
// Cutoffs above 0.45 x sample rate are lowered to that limit.
func WithCutoffHz(cutoffHz float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(cutoffHz, minCutoffHz, math.Inf(1), "cutoff"); err != nil {
			return err
		}

		cfg.cutoffHz = cutoffHz

		return nil
	}
}

// WithResonance sets the initial resonance in [0, 1].
func WithResonance(resonance float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(resonance, 0, maxResonance, "resonance"); err != nil {
			return err
		}

		cfg.resonance = resonance

		return nil
	}
}

// Filter is a nonlinear 4-stage ladder low-pass with independent state per
// channel.
type Filter struct {
	sampleRate float64
	cutoffHz   float64
	resonance  float64

	coefficient float64
	feedback    float64
	outputScale float64

	stages [][4]float64
}

// New constructs a filter for the given sample rate and channel count.
func New(sampleRate float64, channels int, opts ...Option) (*Filter, error) {
	if err := core.ValidateSampleRate(sampleRate); err != nil {
		return nil, fmt.Errorf("ladder: %w", err)
	}

	if channels <= 0 || channels > core.MaxChannels {
		return nil, fmt.Errorf("ladder: channels must be in [1, %d]: %d", core.MaxChannels, channels)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	f := &Filter{
		sampleRate: sampleRate,
		resonance:  cfg.resonance,
		stages:     make([][4]float64, channels),
	}
	f.cutoffHz = f.limitCutoff(cfg.cutoffHz)
	f.rebuild()

	return f, nil
}

// SampleRate returns the sample rate in Hz.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

// CutoffHz returns the effective cutoff frequency in Hz.
func (f *Filter) CutoffHz() float64 { return f.cutoffHz }

// Resonance returns the normalized resonance.
func (f *Filter) Resonance() float64 { return f.resonance }

// Channels returns the number of channel states.
func (f *Filter) Channels() int { return len(f.stages) }

// SetSampleRate changes the sample rate, keeps the requested cutoff where
// possible and resets the state.
func (f *Filter) SetSampleRate(sampleRate float64) error {
	if err := core.ValidateSampleRate(sampleRate); err != nil {
		return fmt.Errorf("ladder: %w", err)
	}

	f.sampleRate = sampleRate
	f.cutoffHz = f.limitCutoff(f.cutoffHz)
	f.rebuild()
	f.Reset()

	return nil
}

// SetChannels resizes the per-channel state and resets it.
func (f *Filter) SetChannels(channels int) error {
	if channels <= 0 || channels > core.MaxChannels {
		return fmt.Errorf("ladder: channels must be in [1, %d]: %d", core.MaxChannels, channels)
	}

	if cap(f.stages) >= channels {
		f.stages = f.stages[:channels]
	} else {
		f.stages = make([][4]float64, channels)
	}

	f.Reset()

	return nil
}

// SetCutoffHz updates the cutoff. Non-finite values are ignored and the
// value is limited to [1 Hz, 0.45 x sample rate]. It does not allocate and
// may be called from the audio thread.
func (f *Filter) SetCutoffHz(cutoffHz float64) {
	if !core.IsFinite(cutoffHz) {
		return
	}

	cutoffHz = f.limitCutoff(cutoffHz)
	if cutoffHz == f.cutoffHz {
		return
	}

	f.cutoffHz = cutoffHz
	f.rebuild()
}

// SetResonance updates resonance, clamped to [0, 1]. Non-finite values are
// ignored.
func (f *Filter) SetResonance(resonance float64) {
	if !core.IsFinite(resonance) {
		return
	}

	resonance = core.Clamp(resonance, 0, maxResonance)
	if resonance == f.resonance {
		return
	}

	f.resonance = resonance
	f.rebuild()
}

// Reset clears the ladder state of every channel.
func (f *Filter) Reset() {
	clear(f.stages)
}

// ProcessSample filters one sample of channel ch.
func (f *Filter) ProcessSample(ch int, input float64) float64 {
	if !core.IsFinite(input) {
		input = 0
	}

	s := &f.stages[ch]
	g := f.coefficient

	x := fastTanhApprox(input - f.feedback*s[3])
	t0 := fastTanhApprox(s[0])
	t1 := fastTanhApprox(s[1])
	t2 := fastTanhApprox(s[2])
	t3 := fastTanhApprox(s[3])

	s[0] = clipState(s[0] + g*(x-t0))
	s[1] = clipState(s[1] + g*(fastTanhApprox(s[0])-t1))
	s[2] = clipState(s[2] + g*(fastTanhApprox(s[1])-t2))
	s[3] = clipState(s[3] + g*(fastTanhApprox(s[2])-t3))

	return f.outputScale * s[3]
}

// ProcessInPlace filters a mono buffer of channel ch in place.
func (f *Filter) ProcessInPlace(ch int, buf []float64) {
	for i, x := range buf {
		buf[i] = f.ProcessSample(ch, x)
	}
}

// ProcessBlock filters every channel of block in place. Blocks whose
// channel count differs from the filter are left untouched.
func (f *Filter) ProcessBlock(block *buffer.Block) {
	if block == nil || block.NumChannels() != len(f.stages) {
		return
	}

	for ch := range len(f.stages) {
		f.ProcessInPlace(ch, block.Channel(ch))
	}
}

func (f *Filter) limitCutoff(cutoffHz float64) float64 {
	return core.Clamp(cutoffHz, minCutoffHz, maxCutoffRatio*f.sampleRate)
}

func (f *Filter) rebuild() {
	fc := f.cutoffHz / f.sampleRate

	fcr := 1.8730*fc*fc*fc + 0.4955*fc*fc - 0.6490*fc + 0.9988
	if fcr < 0 {
		fcr = 0
	}

	f.coefficient = 1 - math.Exp(-2*math.Pi*fcr*fc)

	resonanceComp := -3.9364*fc*fc + 1.8409*fc + 0.9968
	if resonanceComp < 0 {
		resonanceComp = 0
	}

	f.feedback = maxFeedback * f.resonance * resonanceComp
	f.outputScale = 1 + f.feedback
}

func validateFiniteRange(value, min, max float64, name string) error {
	if !core.IsFinite(value) {
		return fmt.Errorf("ladder: %s must be finite: %v", name, value)
	}

	if value < min || value > max {
		return fmt.Errorf("ladder: %s must be in [%g, %g]: %f", name, min, max, value)
	}

	return nil
}

func clipState(value float64) float64 {
	return core.Clamp(value, -stateLimit, stateLimit)
}

func fastTanhApprox(x float64) float64 {
	if x > 3 {
		return 1
	}

	if x < -3 {
		return -1
	}

	x2 := x * x

	return core.Clamp(x*(27+x2)/(27+9*x2), -1, 1)
}
