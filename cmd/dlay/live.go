package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/chzyer/readline"
	"github.com/gordonklaus/portaudio"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/echo"
)

// LiveCmd runs the echo on the default duplex audio device.
type LiveCmd struct {
	EchoFlags

	SampleRate float64 `help:"Sample rate in Hz" default:"48000" placeholder:"hz"`
	Block      int     `help:"Frames per device buffer" default:"256"`
	Channels   int     `help:"Input and output channels (1 or 2)" default:"2"`
}

// Run executes the live command.
func (c *LiveCmd) Run() error {
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("live: channels must be 1 or 2: %d", c.Channels)
	}

	proc, err := c.NewProcessor()
	if err != nil {
		return err
	}

	if err := proc.Prepare(c.SampleRate, c.Block, c.Channels); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer portaudio.Terminate()

	cb := newLiveCallback(proc)

	stream, err := portaudio.OpenDefaultStream(c.Channels, c.Channels, c.SampleRate, c.Block, cb.process)
	if err != nil {
		log.Fatal(err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("dlay live: %d ch, %.0f Hz, %d frames. Type help for commands.\n",
		c.Channels, c.SampleRate, c.Block)

	err = repl(&controller{proc: proc, out: os.Stdout})

	if stopErr := stream.Stop(); stopErr != nil {
		return stopErr
	}

	return err
}

// liveCallback is the audio thread. It owns the scratch block and runs
// the processor once per device buffer.
type liveCallback struct {
	proc  *echo.Processor
	block *buffer.Block
}

func newLiveCallback(proc *echo.Processor) *liveCallback {
	spec := proc.Spec()

	return &liveCallback{
		proc:  proc,
		block: buffer.New(spec.NumChannels, spec.BlockSize),
	}
}

func (l *liveCallback) process(in, out [][]float32) {
	if len(in) == 0 || len(in[0]) != l.block.Len() {
		for ch := range out {
			if ch < len(in) {
				copy(out[ch], in[ch])
			} else {
				clear(out[ch])
			}
		}

		return
	}

	l.block.CopyFromFloat32(in)
	l.proc.ProcessBlock(l.block)
	l.block.CopyToFloat32(out)
}

func repl(c *controller) error {
	rl, err := readline.New("dlay> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(c.out, err)
			continue
		}

		if err := c.eval(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(c.out, err)
		}
	}
}
