package delay

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
	"github.com/cwbudde/algo-dlay/dsp/param"
	"github.com/cwbudde/algo-vecmath"
)

const (
	defaultMaxDelaySeconds = 1.0
	maxMaxDelaySeconds     = 60.0
)

// Mix holds the per-block read parameters.
type Mix struct {
	// DelaySamples is the echo distance. It is clamped to [0, MaxDelay()].
	DelaySamples int
	// Feedback is the gain applied when the delayed signal is added back
	// into the region written this block.
	Feedback float64
	// Wet is the gain applied when the delayed signal is added to the output.
	Wet float64
}

// Option mutates line configuration.
type Option func(*config) error

type config struct {
	maxDelaySeconds float64
}

func defaultConfig() config {
	return config{maxDelaySeconds: defaultMaxDelaySeconds}
}

// WithMaxDelay sets the longest supported delay in seconds, in [1, 60].
// Values below one second are rejected because the rate control reaches
// 1000 ms.
func WithMaxDelay(seconds float64) Option {
	return func(cfg *config) error {
		if !(seconds >= defaultMaxDelaySeconds && seconds <= maxMaxDelaySeconds) {
			return fmt.Errorf("delay: max delay must be in [%g, %g] s: %f", defaultMaxDelaySeconds, maxMaxDelaySeconds, seconds)
		}

		cfg.maxDelaySeconds = seconds

		return nil
	}
}

// Line is a multi-channel circular delay line processed in fixed blocks.
// All buffers are allocated in Prepare; Write and Read never allocate.
type Line struct {
	cfg      config
	spec     core.ProcessSpec
	length   int
	writePos int

	buffer  *buffer.Block
	delayed *buffer.Block
	region  *buffer.Block

	temp    []float64
	fbRamp  []float64
	wetRamp []float64
}

// New returns an unprepared delay line.
func New(opts ...Option) (*Line, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Line{cfg: cfg}, nil
}

// LengthFor returns the buffer length used for the given rate and block
// size: the smallest multiple of blockSize that holds maxDelaySeconds of
// audio plus one block.
func LengthFor(sampleRate float64, blockSize int, maxDelaySeconds float64) int {
	if blockSize <= 0 {
		return 0
	}

	need := int(math.Ceil(sampleRate*maxDelaySeconds)) + blockSize
	blocks := (need + blockSize - 1) / blockSize

	return blocks * blockSize
}

// Prepare allocates and clears the buffer for spec and resets the cursor.
// It must not run concurrently with processing.
func (l *Line) Prepare(spec core.ProcessSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("delay: %w", err)
	}

	length := LengthFor(spec.SampleRate, spec.BlockSize, l.cfg.maxDelaySeconds)
	if length <= 0 {
		return fmt.Errorf("delay: invalid buffer length: %d", length)
	}

	l.spec = spec
	l.length = length
	l.writePos = 0
	l.buffer = buffer.New(spec.NumChannels, length)
	l.delayed = buffer.New(spec.NumChannels, spec.BlockSize)
	l.region = buffer.NewView(spec.NumChannels)
	l.temp = make([]float64, spec.BlockSize)
	l.fbRamp = make([]float64, spec.BlockSize)
	l.wetRamp = make([]float64, spec.BlockSize)
	l.buffer.View(l.region, 0, spec.BlockSize)

	return nil
}

// Prepared reports whether Prepare succeeded at least once.
func (l *Line) Prepared() bool { return l.buffer != nil }

// Len returns the buffer length in samples per channel.
func (l *Line) Len() int { return l.length }

// Channels returns the prepared channel count.
func (l *Line) Channels() int { return l.spec.NumChannels }

// BlockSize returns the prepared block size.
func (l *Line) BlockSize() int { return l.spec.BlockSize }

// WritePosition returns the start of the current write region.
func (l *Line) WritePosition() int { return l.writePos }

// MaxDelay returns the longest delay in samples that does not read into
// the region being written.
func (l *Line) MaxDelay() int {
	if l.length == 0 {
		return 0
	}

	return l.length - l.spec.BlockSize
}

// ReadPosition returns where a block delayed by delaySamples starts.
func (l *Line) ReadPosition(delaySamples int) int {
	if l.length == 0 {
		return 0
	}

	d := min(max(delaySamples, 0), l.MaxDelay())

	return (l.length + l.writePos - d) % l.length
}

// Accepts reports whether b matches the prepared channel count and block size.
func (l *Line) Accepts(b *buffer.Block) bool {
	return l.buffer != nil && b != nil &&
		b.NumChannels() == l.spec.NumChannels && b.Len() == l.spec.BlockSize
}

// Write copies one block into the current write region and returns a view
// of that region. It returns nil and leaves the line untouched if the line
// is unprepared or in has the wrong shape.
func (l *Line) Write(in *buffer.Block) *buffer.Block {
	if !l.Accepts(in) {
		return nil
	}

	end := l.writePos + l.spec.BlockSize
	for ch := range l.spec.NumChannels {
		copy(l.buffer.Channel(ch)[l.writePos:end], in.Channel(ch))
	}

	return l.region
}

// WriteRegion returns a view of the current write region, or nil if the
// line is unprepared.
func (l *Line) WriteRegion() *buffer.Block {
	if l.buffer == nil {
		return nil
	}

	return l.region
}

// Read mixes the delayed block into the write region (feedback) and into
// out (wet), then advances the write cursor by one block. out is added to,
// never overwritten. Read does nothing if out has the wrong shape.
func (l *Line) Read(out *buffer.Block, m Mix) {
	if !l.Accepts(out) {
		return
	}

	l.gather(l.ReadPosition(m.DelaySamples))

	end := l.writePos + l.spec.BlockSize
	for ch := range l.spec.NumChannels {
		delayed := l.delayed.Channel(ch)

		vecmath.ScaleBlock(l.temp, delayed, m.Feedback)
		vecmath.AddBlockInPlace(l.buffer.Channel(ch)[l.writePos:end], l.temp)

		vecmath.ScaleBlock(l.temp, delayed, m.Wet)
		vecmath.AddBlockInPlace(out.Channel(ch), l.temp)
	}

	l.advance()
}

// ReadRamped is Read with feedback and wet following the smoothers sample
// by sample. Both smoothers advance exactly one block. When neither is
// ramping it takes the same path as Read.
func (l *Line) ReadRamped(out *buffer.Block, delaySamples int, feedback, wet *param.Smoother) {
	if !l.Accepts(out) {
		return
	}

	if !feedback.Ramping() && !wet.Ramping() {
		l.Read(out, Mix{DelaySamples: delaySamples, Feedback: feedback.Current(), Wet: wet.Current()})
		return
	}

	for i := range l.fbRamp {
		l.fbRamp[i] = feedback.Next()
		l.wetRamp[i] = wet.Next()
	}

	l.gather(l.ReadPosition(delaySamples))

	end := l.writePos + l.spec.BlockSize
	for ch := range l.spec.NumChannels {
		delayed := l.delayed.Channel(ch)

		vecmath.MulBlock(l.temp, delayed, l.fbRamp)
		vecmath.AddBlockInPlace(l.buffer.Channel(ch)[l.writePos:end], l.temp)

		vecmath.MulBlock(l.temp, delayed, l.wetRamp)
		vecmath.AddBlockInPlace(out.Channel(ch), l.temp)
	}

	l.advance()
}

// Clear zeroes the buffer. Cursors are unchanged.
func (l *Line) Clear() {
	if l.buffer != nil {
		l.buffer.Zero()
	}
}

// gather snapshots blockSize samples starting at readPos into l.delayed,
// wrapping at the end of the buffer.
func (l *Line) gather(readPos int) {
	n := min(l.spec.BlockSize, l.length-readPos)

	for ch := range l.spec.NumChannels {
		src := l.buffer.Channel(ch)
		dst := l.delayed.Channel(ch)

		copy(dst[:n], src[readPos:readPos+n])
		copy(dst[n:], src[:l.spec.BlockSize-n])
	}
}

func (l *Line) advance() {
	l.writePos += l.spec.BlockSize
	if l.writePos == l.length {
		l.writePos = 0
	}

	l.buffer.View(l.region, l.writePos, l.spec.BlockSize)
}
