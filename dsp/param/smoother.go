package param

// Smoother ramps linearly from its current value to a target over a fixed
// number of samples. The zero value jumps immediately.
type Smoother struct {
	current   float64
	target    float64
	step      float64
	length    int
	remaining int
}

// NewSmoother returns a smoother that reaches new targets after
// rampSamples calls to Next.
func NewSmoother(rampSamples int) Smoother {
	return Smoother{length: max(rampSamples, 0)}
}

// SetRampLength changes the ramp length used by future targets.
func (s *Smoother) SetRampLength(samples int) {
	s.length = max(samples, 0)
}

// Reset jumps to v and cancels any running ramp.
func (s *Smoother) Reset(v float64) {
	s.current = v
	s.target = v
	s.step = 0
	s.remaining = 0
}

// SetTarget starts a ramp toward v. Re-setting the running target is a
// no-op so the ramp is not restarted every block.
func (s *Smoother) SetTarget(v float64) {
	if v == s.target {
		return
	}

	s.target = v

	if s.length == 0 {
		s.Reset(v)
		return
	}

	s.remaining = s.length
	s.step = (v - s.current) / float64(s.length)
}

// Next advances one sample and returns the new value.
func (s *Smoother) Next() float64 {
	if s.remaining == 0 {
		return s.current
	}

	s.remaining--
	if s.remaining == 0 {
		s.current = s.target
	} else {
		s.current += s.step
	}

	return s.current
}

// Ramping reports whether a ramp is in progress.
func (s *Smoother) Ramping() bool { return s.remaining > 0 }

// Current returns the last produced value.
func (s *Smoother) Current() float64 { return s.current }

// Target returns the value the smoother is heading to.
func (s *Smoother) Target() float64 { return s.target }
