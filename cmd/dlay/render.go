package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/echo"
	"github.com/cwbudde/algo-dlay/internal/cli"
)

// RenderCmd processes a WAV file offline.
type RenderCmd struct {
	EchoFlags

	Block   int     `help:"Processing block size in samples" default:"512"`
	Tail    float64 `help:"Seconds appended after the input (negative estimates the decay)" default:"-1" placeholder:"s"`
	MaxTail float64 `help:"Upper bound for the estimated tail in seconds" default:"30" placeholder:"s"`

	Input  string `arg:"" name:"input" help:"Input WAV file" type:"existingfile"`
	Output string `arg:"" name:"output" help:"Output WAV file (16-bit)" type:"path"`
}

// Run executes the render command.
func (c *RenderCmd) Run() error {
	start := time.Now()

	in, err := readWAV(c.Input)
	if err != nil {
		return err
	}

	proc, err := c.NewProcessor()
	if err != nil {
		return err
	}

	if err := proc.Prepare(in.SampleRate, c.Block, len(in.Channels)); err != nil {
		return err
	}

	tail := tailFrames(proc, in.SampleRate, c.Tail, c.MaxTail)
	out := renderEcho(proc, in, tail)

	if err := writeWAV(c.Output, out); err != nil {
		return err
	}

	cli.PrintKeyValues(os.Stdout, "dlay render", []cli.KeyValue{
		{Key: "Input", Value: c.Input},
		{Key: "Output", Value: c.Output},
		{Key: "Format", Value: fmt.Sprintf("%d ch, %.0f Hz, block %d", len(in.Channels), in.SampleRate, c.Block)},
		{Key: "Tail", Value: fmt.Sprintf("%.2f s", float64(tail)/in.SampleRate)},
		{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
	})

	return nil
}

// tailFrames resolves the tail length. A negative request estimates the
// decay from the processor's parameters, bounded by maxSeconds.
func tailFrames(proc *echo.Processor, sampleRate, seconds, maxSeconds float64) int {
	limit := int(max(0, maxSeconds) * sampleRate)

	if seconds >= 0 {
		return int(seconds * sampleRate)
	}

	n := proc.TailSamples()
	if n < 0 || n > limit {
		return limit
	}

	return n
}

// renderEcho streams the input plus tail silence through a prepared
// processor block by block.
func renderEcho(proc *echo.Processor, in *audioData, tail int) *audioData {
	spec := proc.Spec()
	total := in.Len() + tail

	out := &audioData{
		SampleRate: in.SampleRate,
		Channels:   make([][]float64, len(in.Channels)),
	}
	for ch := range out.Channels {
		out.Channels[ch] = make([]float64, total)
	}

	block := buffer.New(spec.NumChannels, spec.BlockSize)

	for pos := 0; pos < total; pos += spec.BlockSize {
		block.Zero()

		for ch, src := range in.Channels {
			if pos < len(src) {
				copy(block.Channel(ch), src[pos:])
			}
		}

		proc.ProcessBlock(block)

		for ch, dst := range out.Channels {
			copy(dst[pos:], block.Channel(ch))
		}
	}

	return out
}
