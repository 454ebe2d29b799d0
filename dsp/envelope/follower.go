package envelope

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
	"github.com/cwbudde/algo-dlay/dsp/envelope/internal/kernel"
	"github.com/cwbudde/algo-dlay/dsp/param"
	"github.com/cwbudde/algo-vecmath/cpu"
)

// Coefficients drive the follower for one block.
type Coefficients = kernel.Coefficients

// ChannelState is the follower state of one channel.
type ChannelState = kernel.State

// CoefficientsFrom extracts the follower coefficients from a parameter
// snapshot.
func CoefficientsFrom(s param.Snapshot) Coefficients {
	return Coefficients{
		Threshold: s.ThresholdGain,
		Attack:    s.AttackCoeff,
		Release:   s.ReleaseCoeff,
	}
}

// ChunkSizeFor returns the chunk length for sampleRate: round(sampleRate/100),
// at least 1.
func ChunkSizeFor(sampleRate float64) int {
	return max(1, int(math.Round(sampleRate/100)))
}

var (
	processImpl     kernel.ProcessFn
	processName     string
	processInitOnce sync.Once
)

// Follower tracks the envelope of several channels.
type Follower struct {
	chunkSize int
	states    []ChannelState
}

// New returns a follower with zeroed state.
func New(chunkSize, channels int) (*Follower, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("envelope: chunk size must be > 0: %d", chunkSize)
	}

	if channels <= 0 || channels > core.MaxChannels {
		return nil, fmt.Errorf("envelope: channels must be in [1, %d]: %d", core.MaxChannels, channels)
	}

	return &Follower{chunkSize: chunkSize, states: make([]ChannelState, channels)}, nil
}

// Prepare sizes the follower for spec and resets all state.
func (f *Follower) Prepare(spec core.ProcessSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}

	f.chunkSize = ChunkSizeFor(spec.SampleRate)
	if cap(f.states) >= spec.NumChannels {
		f.states = f.states[:spec.NumChannels]
	} else {
		f.states = make([]ChannelState, spec.NumChannels)
	}

	f.Reset()

	return nil
}

// Reset zeroes the state of every channel.
func (f *Follower) Reset() {
	clear(f.states)
}

// ChunkSize returns the chunk length in samples.
func (f *Follower) ChunkSize() int { return f.chunkSize }

// Channels returns the number of tracked channels.
func (f *Follower) Channels() int { return len(f.states) }

// State returns a copy of the state of channel ch.
func (f *Follower) State(ch int) ChannelState { return f.states[ch] }

// Next feeds one sample of channel ch and returns the envelope value that
// applies to it.
func (f *Follower) Next(ch int, x float64, c Coefficients) float64 {
	return kernel.Step(&f.states[ch], x, c, f.chunkSize)
}

// ProcessBlock feeds a block and writes the per-sample envelope to env.
// Blocks whose channel count differs from the follower, or an env block of
// a different shape, are ignored.
func (f *Follower) ProcessBlock(env, in *buffer.Block, c Coefficients) {
	if in == nil || env == nil || in.NumChannels() != len(f.states) || !env.SameShape(in) {
		return
	}

	processInitOnce.Do(initProcessKernel)
	processImpl(c, f.chunkSize, f.states, env.Channels(), in.Channels())
}

// Kernel returns the name of the block kernel selected for this CPU.
func Kernel() string {
	processInitOnce.Do(initProcessKernel)
	return processName
}

func initProcessKernel() {
	entry := kernel.Global.Lookup(cpu.DetectFeatures())
	if entry == nil {
		panic("envelope: no Process kernel registered (missing generic fallback?)")
	}

	if entry.Process == nil {
		panic("envelope: selected kernel missing Process")
	}

	processImpl = entry.Process
	processName = entry.Name
}
