package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
	"github.com/cwbudde/algo-dlay/dsp/echo"
	"github.com/cwbudde/algo-dlay/internal/cli"
)

// ImpulseCmd feeds a unit impulse and reports the repeats.
type ImpulseCmd struct {
	EchoFlags

	SampleRate float64 `help:"Sample rate in Hz" default:"48000" placeholder:"hz"`
	Block      int     `help:"Processing block size in samples" default:"512"`
	Repeats    int     `help:"Number of repeats to report" default:"8"`
}

// echoTap is one measured repeat of the impulse.
type echoTap struct {
	Index     int
	Position  int
	Amplitude float64
}

// Run executes the impulse command.
func (c *ImpulseCmd) Run() error {
	if c.Repeats < 1 {
		return fmt.Errorf("impulse: repeats must be >= 1: %d", c.Repeats)
	}

	proc, err := c.NewProcessor()
	if err != nil {
		return err
	}

	if err := proc.Prepare(c.SampleRate, c.Block, 1); err != nil {
		return err
	}

	taps := measureImpulse(proc, c.Repeats)
	printImpulseReport(os.Stdout, proc, taps)

	return nil
}

// measureImpulse runs a unit impulse through a prepared processor and
// returns the peak of each repeat window. Window k spans one delay period
// centred on k*delay; a zero delay yields no taps.
func measureImpulse(proc *echo.Processor, repeats int) []echoTap {
	spec := proc.Spec()
	delaySamples := proc.Params().Snapshot().DelaySamples
	if delaySamples <= 0 {
		return nil
	}

	total := (repeats+1)*delaySamples + spec.BlockSize
	response := make([]float64, 0, total+spec.BlockSize)

	block := buffer.New(spec.NumChannels, spec.BlockSize)

	for pos := 0; pos < total; pos += spec.BlockSize {
		block.Zero()
		if pos == 0 {
			block.Channel(0)[0] = 1
		}

		proc.ProcessBlock(block)
		response = append(response, block.Channel(0)...)
	}

	half := delaySamples / 2
	taps := make([]echoTap, 0, repeats)

	for k := 1; k <= repeats; k++ {
		lo := max(1, k*delaySamples-half)
		hi := min(len(response), k*delaySamples+half+1)

		tap := echoTap{Index: k, Position: k * delaySamples}
		for i := lo; i < hi; i++ {
			if a := math.Abs(response[i]); a > math.Abs(tap.Amplitude) {
				tap.Amplitude = response[i]
				tap.Position = i
			}
		}

		taps = append(taps, tap)
	}

	return taps
}

func printImpulseReport(w io.Writer, proc *echo.Processor, taps []echoTap) {
	spec := proc.Spec()
	v := proc.Params().Values()
	snap := proc.Params().Snapshot()

	cli.PrintKeyValues(w, "dlay impulse", []cli.KeyValue{
		{Key: "Sample rate", Value: fmt.Sprintf("%.0f Hz", spec.SampleRate)},
		{Key: "Block", Value: fmt.Sprintf("%d samples", spec.BlockSize)},
		{Key: "Rate", Value: fmt.Sprintf("%.1f ms (%d samples)", v.RateMs, snap.DelaySamples)},
		{Key: "Feedback", Value: fmt.Sprintf("%.2f dB (%.4f)", v.FeedbackDB, snap.FeedbackGain)},
		{Key: "Wet", Value: fmt.Sprintf("%.1f %%", v.WetPercent)},
		{Key: "Insert", Value: onOff(!v.Bypass)},
	})
	fmt.Fprintln(w)

	if len(taps) == 0 {
		fmt.Fprintln(w, cli.KeyStyle.Render("  no repeats at zero delay"))
		return
	}

	rows := make([][]string, 0, len(taps))
	for _, tap := range taps {
		rows = append(rows, []string{
			fmt.Sprintf("%d", tap.Index),
			fmt.Sprintf("%d", tap.Position),
			fmt.Sprintf("%.2f", 1000*float64(tap.Position)/spec.SampleRate),
			fmt.Sprintf("%+.5f", tap.Amplitude),
			formatDB(tap.Amplitude),
		})
	}

	cli.PrintTable(w, []string{"#", "sample", "ms", "amplitude", "dB"}, rows)
}

func formatDB(x float64) string {
	if x == 0 {
		return "-inf"
	}

	return fmt.Sprintf("%.2f", core.LinearToDB(math.Abs(x)))
}

func onOff(b bool) string {
	if b {
		return "on"
	}

	return "off"
}
