package echo

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
	"github.com/cwbudde/algo-dlay/dsp/delay"
	"github.com/cwbudde/algo-dlay/dsp/envelope"
	"github.com/cwbudde/algo-dlay/dsp/filter/ladder"
	"github.com/cwbudde/algo-dlay/dsp/param"
	"github.com/cwbudde/algo-dlay/dsp/shaper"
)

const (
	defaultSmoothingMs = 20.0
	defaultShaperDrive = 2.0
	defaultSampleRate  = 48000.0
	tailFloorDB        = -60.0
)

// Option mutates processor configuration.
type Option func(*config) error

type config struct {
	smoothingMs     float64
	maxDelaySeconds float64
	table           *shaper.Table
	values          *param.Values
}

func defaultConfig() config {
	return config{
		smoothingMs:     defaultSmoothingMs,
		maxDelaySeconds: 1,
	}
}

// WithSmoothing sets the ramp time in milliseconds for feedback and wet
// changes. Zero disables smoothing.
func WithSmoothing(ms float64) Option {
	return func(cfg *config) error {
		if ms < 0 || !core.IsFinite(ms) {
			return fmt.Errorf("echo: smoothing must be >= 0 and finite: %f", ms)
		}

		cfg.smoothingMs = ms

		return nil
	}
}

// WithMaxDelay sets the delay buffer capacity in seconds, in [1, 60].
func WithMaxDelay(seconds float64) Option {
	return func(cfg *config) error {
		if seconds < 1 || !core.IsFinite(seconds) {
			return fmt.Errorf("echo: max delay must be >= 1 s and finite: %f", seconds)
		}

		cfg.maxDelaySeconds = seconds

		return nil
	}
}

// WithTable sets the waveshaper transfer table. The default is tanh(2x)
// over [-1, 1].
func WithTable(table *shaper.Table) Option {
	return func(cfg *config) error {
		if table == nil {
			return fmt.Errorf("echo: table is nil")
		}

		cfg.table = table

		return nil
	}
}

// WithValues sets the initial controls.
func WithValues(v param.Values) Option {
	return func(cfg *config) error {
		cfg.values = &v
		return nil
	}
}

// Processor is a multi-channel echo with insert effects in the feedback
// path.
type Processor struct {
	cfg config

	params *param.Store
	line   *delay.Line
	filter *ladder.Filter
	shaper *shaper.Dynamic

	spec     core.ProcessSpec
	prepared bool

	snap          param.Snapshot
	epoch         uint64
	feedback      param.Smoother
	wet           param.Smoother
	insertPending bool
}

// New constructs an unprepared processor. Until Prepare succeeds all
// processing calls pass audio through untouched.
func New(opts ...Option) (*Processor, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	storeOpts := []param.Option{param.WithSampleRate(defaultSampleRate)}
	if cfg.values != nil {
		storeOpts = append(storeOpts, param.WithValues(*cfg.values))
	}

	params, err := param.NewStore(storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("echo: %w", err)
	}

	line, err := delay.New(delay.WithMaxDelay(cfg.maxDelaySeconds))
	if err != nil {
		return nil, fmt.Errorf("echo: %w", err)
	}

	table := cfg.table
	if table == nil {
		table, err = shaper.NewTable(shaper.Tanh(defaultShaperDrive))
		if err != nil {
			return nil, fmt.Errorf("echo: %w", err)
		}
	}

	dyn, err := shaper.NewDynamic(table)
	if err != nil {
		return nil, fmt.Errorf("echo: %w", err)
	}

	v := params.Values()

	filter, err := ladder.New(defaultSampleRate, 1,
		ladder.WithCutoffHz(v.CutoffHz),
		ladder.WithResonance(v.Resonance),
	)
	if err != nil {
		return nil, fmt.Errorf("echo: %w", err)
	}

	return &Processor{
		cfg:    cfg,
		params: params,
		line:   line,
		filter: filter,
		shaper: dyn,
	}, nil
}

// Prepare allocates all buffers for the given stream format and resets
// all audio state. It must not run concurrently with processing.
func (p *Processor) Prepare(sampleRate float64, blockSize, numChannels int) error {
	spec := core.ProcessSpec{SampleRate: sampleRate, BlockSize: blockSize, NumChannels: numChannels}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	p.prepared = false

	if err := p.line.Prepare(spec); err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	if err := p.shaper.Prepare(spec); err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	if err := p.filter.SetSampleRate(sampleRate); err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	if err := p.filter.SetChannels(numChannels); err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	// The store switches rate only after every other stage accepted spec.
	if err := p.params.Prepare(sampleRate); err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	p.spec = spec
	p.snap = p.params.Snapshot()
	p.epoch = p.snap.RateEpoch
	p.filter.SetCutoffHz(p.snap.CutoffHz)
	p.filter.SetResonance(p.snap.Resonance)

	ramp := spec.SamplesFor(p.cfg.smoothingMs)
	p.feedback.SetRampLength(ramp)
	p.feedback.Reset(p.snap.FeedbackGain)
	p.wet.SetRampLength(ramp)
	p.wet.Reset(p.snap.WetGain)

	p.insertPending = false
	p.prepared = true

	return nil
}

// Spec returns the prepared stream format.
func (p *Processor) Spec() core.ProcessSpec { return p.spec }

// Prepared reports whether Prepare succeeded.
func (p *Processor) Prepared() bool { return p.prepared }

// Params returns the parameter store shared with control goroutines.
func (p *Processor) Params() *param.Store { return p.params }

// DelayLine returns the underlying delay line.
func (p *Processor) DelayLine() *delay.Line { return p.line }

// Shaper returns the dynamic waveshaper insert.
func (p *Processor) Shaper() *shaper.Dynamic { return p.shaper }

// Filter returns the anti-aliasing filter insert.
func (p *Processor) Filter() *ladder.Filter { return p.filter }

// SetRate sets the delay time in milliseconds [0, 1000]. A change clears
// the delay buffer at the start of the next block.
func (p *Processor) SetRate(ms float64) { p.params.SetRate(ms) }

// SetFeedback sets the feedback gain in dB (<= 0).
func (p *Processor) SetFeedback(db float64) { p.params.SetFeedback(db) }

// SetWet sets the wet level in percent [0, 100].
func (p *Processor) SetWet(percent float64) { p.params.SetWet(percent) }

// SetThreshold sets the waveshaper envelope threshold in dB (<= 0).
func (p *Processor) SetThreshold(db float64) { p.params.SetThreshold(db) }

// SetAttack sets the waveshaper envelope attack in milliseconds.
func (p *Processor) SetAttack(ms float64) { p.params.SetAttack(ms) }

// SetRelease sets the waveshaper envelope release in milliseconds.
func (p *Processor) SetRelease(ms float64) { p.params.SetRelease(ms) }

// SetCutoff sets the anti-aliasing cutoff in Hz [1000, 3000].
func (p *Processor) SetCutoff(hz float64) { p.params.SetCutoff(hz) }

// SetResonance sets the anti-aliasing resonance [0, 1].
func (p *Processor) SetResonance(r float64) { p.params.SetResonance(r) }

// SetInsertBypass disables the filter and waveshaper inserts.
func (p *Processor) SetInsertBypass(bypass bool) { p.params.SetBypass(bypass) }

// WriteBlock latches the parameters for this block and records in into the
// delay buffer. in is not modified.
func (p *Processor) WriteBlock(in *buffer.Block) {
	if !p.prepared || !p.line.Accepts(in) {
		return
	}

	p.latch()
	p.line.Write(in)
	p.insertPending = true
}

// InsertEffectRegion returns the region recorded by the last WriteBlock so
// callers can run their own in-place effects on it, or nil if unprepared.
func (p *Processor) InsertEffectRegion() *buffer.Block {
	if !p.prepared {
		return nil
	}

	return p.line.WriteRegion()
}

// ProcessInsert runs the anti-aliasing filter and the dynamic waveshaper
// over the recorded region, once per written block. With the insert
// bypassed the region is left untouched and the envelope is frozen.
func (p *Processor) ProcessInsert() {
	if !p.prepared || !p.insertPending {
		return
	}

	p.insertPending = false

	if p.snap.Bypass {
		return
	}

	region := p.line.WriteRegion()
	p.filter.ProcessBlock(region)
	p.shaper.Process(region, envelope.CoefficientsFrom(p.snap), false)
}

// ReadBlock adds the delayed signal to out and feeds it back into the
// buffer. out keeps its existing content as the dry signal.
func (p *Processor) ReadBlock(out *buffer.Block) {
	if !p.prepared || !p.line.Accepts(out) {
		return
	}

	p.insertPending = false
	p.line.ReadRamped(out, p.snap.DelaySamples, &p.feedback, &p.wet)
}

// ProcessBlock runs WriteBlock, ProcessInsert and ReadBlock on block in
// place. Blocks that do not match the prepared format pass through.
func (p *Processor) ProcessBlock(block *buffer.Block) {
	if !p.prepared || !p.line.Accepts(block) {
		return
	}

	p.WriteBlock(block)
	p.ProcessInsert()
	p.ReadBlock(block)
}

// Clear zeroes the delay buffer. Cursors, envelope and filter state are
// kept.
func (p *Processor) Clear() {
	p.line.Clear()
}

// TailSamples estimates how long echoes stay above -60 dB after the input
// stops, from the current parameters. It returns -1 when the echoes do not
// decay (unity feedback).
func (p *Processor) TailSamples() int {
	snap := p.params.Snapshot()

	return TailSamples(snap.DelaySamples, snap.FeedbackGain, snap.WetGain)
}

// TailSamples returns the number of samples until a unit impulse's repeats
// fall below -60 dB for the given delay and gains, or -1 if they never do.
func TailSamples(delaySamples int, feedback, wet float64) int {
	floor := core.DBToLinear(tailFloorDB)

	switch {
	case delaySamples <= 0 || wet <= floor:
		return 0
	case feedback <= 0:
		return delaySamples
	case feedback >= 1:
		return -1
	}

	// wet * fb^(n-1) < floor
	repeats := 1 + int(math.Ceil(math.Log(floor/wet)/math.Log(feedback)))

	return repeats * delaySamples
}

func (p *Processor) latch() {
	p.snap = p.params.Snapshot()

	if p.snap.RateEpoch != p.epoch {
		p.epoch = p.snap.RateEpoch
		p.line.Clear()
	}

	p.filter.SetCutoffHz(p.snap.CutoffHz)
	p.filter.SetResonance(p.snap.Resonance)
	p.feedback.SetTarget(p.snap.FeedbackGain)
	p.wet.SetTarget(p.snap.WetGain)
}
