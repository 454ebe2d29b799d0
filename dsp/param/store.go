package param

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dlay/dsp/core"
)

// Parameter ranges in user units.
const (
	MinRateMs      = 0.0
	MaxRateMs      = 1000.0
	MinGainDB      = -120.0
	MaxGainDB      = 0.0
	MinWetPercent  = 0.0
	MaxWetPercent  = 100.0
	MinTimeMs      = 0.0
	MinCutoffHz    = 1000.0
	MaxCutoffHz    = 3000.0
	MinResonance   = 0.0
	MaxResonance   = 1.0
	defaultRateMs  = 500.0
	defaultFbDB    = -4.436974992327128 // 0.6 linear
	defaultWet     = 75.0
	defaultThresh  = -20.0
	defaultAttack  = 10.0
	defaultRelease = 200.0
	defaultCutoff  = 2500.0
	defaultRes     = 0.3
	defaultRate    = 48000.0
)

// Values are the controls in user units.
type Values struct {
	RateMs      float64
	FeedbackDB  float64
	WetPercent  float64
	ThresholdDB float64
	AttackMs    float64
	ReleaseMs   float64
	CutoffHz    float64
	Resonance   float64
	Bypass      bool
}

// DefaultValues returns the factory settings.
func DefaultValues() Values {
	return Values{
		RateMs:      defaultRateMs,
		FeedbackDB:  defaultFbDB,
		WetPercent:  defaultWet,
		ThresholdDB: defaultThresh,
		AttackMs:    defaultAttack,
		ReleaseMs:   defaultRelease,
		CutoffHz:    defaultCutoff,
		Resonance:   defaultRes,
	}
}

// Snapshot is the converted parameter set consumed by the audio thread.
type Snapshot struct {
	// DelaySamples is the echo distance in whole samples.
	DelaySamples int
	// RateEpoch changes whenever DelaySamples changes.
	RateEpoch uint64

	FeedbackGain float64
	WetGain      float64

	ThresholdGain float64
	AttackCoeff   float64
	ReleaseCoeff  float64

	CutoffHz  float64
	Resonance float64

	// Bypass disables the insert effects (filter and waveshaper).
	Bypass bool
}

type published struct {
	sampleRate float64
	values     Values
	snap       Snapshot
}

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	sampleRate float64
	values     Values
}

// WithSampleRate sets the sample rate used for conversions until Prepare.
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *config) error {
		if err := core.ValidateSampleRate(sampleRate); err != nil {
			return fmt.Errorf("param: %w", err)
		}

		cfg.sampleRate = sampleRate

		return nil
	}
}

// WithValues sets the initial controls. Values must already lie inside
// their ranges; construction rejects what setters would clamp.
func WithValues(v Values) Option {
	return func(cfg *config) error {
		if err := validateValues(v); err != nil {
			return err
		}

		cfg.values = v

		return nil
	}
}

// Store publishes parameter snapshots from control threads to the audio
// thread. All methods are safe for concurrent use.
type Store struct {
	state atomic.Pointer[published]
}

// NewStore constructs a Store.
func NewStore(opts ...Option) (*Store, error) {
	cfg := config{sampleRate: defaultRate, values: DefaultValues()}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	s := &Store{}
	p := &published{sampleRate: cfg.sampleRate, values: cfg.values}
	p.snap = derive(p.values, p.sampleRate, Snapshot{DelaySamples: -1})
	p.snap.RateEpoch = 0
	s.state.Store(p)

	return s, nil
}

// Prepare re-derives all sample-rate dependent values. It is a control
// operation and may be called while the audio thread is running.
func (s *Store) Prepare(sampleRate float64) error {
	if err := core.ValidateSampleRate(sampleRate); err != nil {
		return fmt.Errorf("param: %w", err)
	}

	for {
		old := s.state.Load()
		next := &published{sampleRate: sampleRate, values: old.values}
		next.snap = derive(next.values, sampleRate, old.snap)

		if s.state.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// Snapshot returns the current converted parameter set. It never blocks or
// allocates.
func (s *Store) Snapshot() Snapshot {
	return s.state.Load().snap
}

// Values returns the current controls in user units.
func (s *Store) Values() Values {
	return s.state.Load().values
}

// SampleRate returns the rate conversions are based on.
func (s *Store) SampleRate() float64 {
	return s.state.Load().sampleRate
}

// SetRate sets the delay time in milliseconds, clamped to [0, 1000].
func (s *Store) SetRate(ms float64) {
	s.update(func(v *Values) {
		v.RateMs, _ = core.ClampFinite(ms, MinRateMs, MaxRateMs, v.RateMs)
	})
}

// SetFeedback sets the feedback gain in dB, clamped to [-120, 0].
// The floor maps to silence.
func (s *Store) SetFeedback(db float64) {
	s.update(func(v *Values) {
		v.FeedbackDB, _ = core.ClampFinite(db, MinGainDB, MaxGainDB, v.FeedbackDB)
	})
}

// SetWet sets the wet level in percent, clamped to [0, 100].
func (s *Store) SetWet(percent float64) {
	s.update(func(v *Values) {
		v.WetPercent, _ = core.ClampFinite(percent, MinWetPercent, MaxWetPercent, v.WetPercent)
	})
}

// SetThreshold sets the envelope threshold in dB, clamped to [-120, 0].
func (s *Store) SetThreshold(db float64) {
	s.update(func(v *Values) {
		v.ThresholdDB, _ = core.ClampFinite(db, MinGainDB, MaxGainDB, v.ThresholdDB)
	})
}

// SetAttack sets the envelope attack time in milliseconds (>= 0).
func (s *Store) SetAttack(ms float64) {
	s.update(func(v *Values) {
		v.AttackMs, _ = core.ClampFinite(ms, MinTimeMs, math.Inf(1), v.AttackMs)
	})
}

// SetRelease sets the envelope release time in milliseconds (>= 0).
func (s *Store) SetRelease(ms float64) {
	s.update(func(v *Values) {
		v.ReleaseMs, _ = core.ClampFinite(ms, MinTimeMs, math.Inf(1), v.ReleaseMs)
	})
}

// SetCutoff sets the anti-aliasing filter cutoff, clamped to [1000, 3000] Hz.
func (s *Store) SetCutoff(hz float64) {
	s.update(func(v *Values) {
		v.CutoffHz, _ = core.ClampFinite(hz, MinCutoffHz, MaxCutoffHz, v.CutoffHz)
	})
}

// SetResonance sets the anti-aliasing filter resonance, clamped to [0, 1].
func (s *Store) SetResonance(r float64) {
	s.update(func(v *Values) {
		v.Resonance, _ = core.ClampFinite(r, MinResonance, MaxResonance, v.Resonance)
	})
}

// SetBypass enables or disables the insert effects.
func (s *Store) SetBypass(bypass bool) {
	s.update(func(v *Values) {
		v.Bypass = bypass
	})
}

// SetValues replaces all controls at once, clamping each like the
// individual setters. Observers see either the old or the new set, never
// a mix.
func (s *Store) SetValues(in Values) {
	s.update(func(v *Values) {
		v.RateMs, _ = core.ClampFinite(in.RateMs, MinRateMs, MaxRateMs, v.RateMs)
		v.FeedbackDB, _ = core.ClampFinite(in.FeedbackDB, MinGainDB, MaxGainDB, v.FeedbackDB)
		v.WetPercent, _ = core.ClampFinite(in.WetPercent, MinWetPercent, MaxWetPercent, v.WetPercent)
		v.ThresholdDB, _ = core.ClampFinite(in.ThresholdDB, MinGainDB, MaxGainDB, v.ThresholdDB)
		v.AttackMs, _ = core.ClampFinite(in.AttackMs, MinTimeMs, math.Inf(1), v.AttackMs)
		v.ReleaseMs, _ = core.ClampFinite(in.ReleaseMs, MinTimeMs, math.Inf(1), v.ReleaseMs)
		v.CutoffHz, _ = core.ClampFinite(in.CutoffHz, MinCutoffHz, MaxCutoffHz, v.CutoffHz)
		v.Resonance, _ = core.ClampFinite(in.Resonance, MinResonance, MaxResonance, v.Resonance)
		v.Bypass = in.Bypass
	})
}

func (s *Store) update(apply func(*Values)) {
	for {
		old := s.state.Load()
		next := &published{sampleRate: old.sampleRate, values: old.values}
		apply(&next.values)
		next.snap = derive(next.values, next.sampleRate, old.snap)

		if s.state.CompareAndSwap(old, next) {
			return
		}
	}
}

func derive(v Values, sampleRate float64, prev Snapshot) Snapshot {
	snap := Snapshot{
		DelaySamples:  int(v.RateMs * sampleRate / 1000),
		RateEpoch:     prev.RateEpoch,
		FeedbackGain:  GainFromDB(v.FeedbackDB),
		WetGain:       v.WetPercent / 100,
		ThresholdGain: GainFromDB(v.ThresholdDB),
		AttackCoeff:   OnePoleCoeff(v.AttackMs, sampleRate),
		ReleaseCoeff:  OnePoleCoeff(v.ReleaseMs, sampleRate),
		CutoffHz:      v.CutoffHz,
		Resonance:     v.Resonance,
		Bypass:        v.Bypass,
	}

	if snap.DelaySamples != prev.DelaySamples {
		snap.RateEpoch++
	}

	return snap
}

// GainFromDB converts a level in dB to linear gain. Levels at or below
// MinGainDB map to 0, levels above 0 dB are capped at unity.
func GainFromDB(db float64) float64 {
	if db <= MinGainDB {
		return 0
	}

	if db >= 0 {
		return 1
	}

	return core.DBToLinear(db)
}

// OnePoleCoeff returns exp(-1000/(ms*sampleRate)), the pole of a one-pole
// smoother with time constant ms. Zero time yields 0 (no smoothing).
func OnePoleCoeff(ms, sampleRate float64) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 0
	}

	return expNeg(1000 / (ms * sampleRate))
}

func validateValues(v Values) error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"rate", v.RateMs, MinRateMs, MaxRateMs},
		{"feedback", v.FeedbackDB, MinGainDB, MaxGainDB},
		{"wet", v.WetPercent, MinWetPercent, MaxWetPercent},
		{"threshold", v.ThresholdDB, MinGainDB, MaxGainDB},
		{"attack", v.AttackMs, MinTimeMs, math.MaxFloat64},
		{"release", v.ReleaseMs, MinTimeMs, math.MaxFloat64},
		{"cutoff", v.CutoffHz, MinCutoffHz, MaxCutoffHz},
		{"resonance", v.Resonance, MinResonance, MaxResonance},
	}

	for _, c := range checks {
		if !core.IsFinite(c.value) || c.value < c.min || c.value > c.max {
			return fmt.Errorf("param: %s must be in [%g, %g]: %f", c.name, c.min, c.max, c.value)
		}
	}

	return nil
}
