// Command dlay runs the echo core offline on WAV files, reports its impulse
// response, or processes a live audio device.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/algo-dlay/dsp/echo"
	"github.com/cwbudde/algo-dlay/dsp/param"
	"github.com/cwbudde/algo-dlay/dsp/shaper"
	"github.com/cwbudde/algo-dlay/internal/cli"
	"github.com/cwbudde/algo-dlay/measure/harmonics"
)

const matchHarmonics = 8

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version versionFlag `short:"v" help:"Show version information"`

	Render  RenderCmd  `cmd:"" help:"Process a WAV file through the echo"`
	Impulse ImpulseCmd `cmd:"" help:"Print the echo positions and levels of a unit impulse"`
	Live    LiveCmd    `cmd:"" help:"Run the echo on the default audio device"`
}

type versionFlag bool

// BeforeApply prints the version and exits before any command runs.
func (versionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)

	return nil
}

// EchoFlags are the echo controls shared by all commands.
type EchoFlags struct {
	Rate         float64 `help:"Delay time in milliseconds (0-1000)" default:"${rate}" placeholder:"ms"`
	Feedback     float64 `help:"Feedback gain in dB (<= 0)" default:"${feedback}" placeholder:"db"`
	Wet          float64 `help:"Wet level in percent (0-100)" default:"${wet}" placeholder:"percent"`
	Threshold    float64 `help:"Waveshaper threshold in dB (<= 0)" default:"${threshold}" placeholder:"db"`
	Attack       float64 `help:"Waveshaper attack in milliseconds" default:"${attack}" placeholder:"ms"`
	Release      float64 `help:"Waveshaper release in milliseconds" default:"${release}" placeholder:"ms"`
	Cutoff       float64 `help:"Anti-aliasing cutoff in Hz (1000-3000)" default:"${cutoff}" placeholder:"hz"`
	Resonance    float64 `help:"Anti-aliasing resonance (0-1)" default:"${resonance}"`
	BypassInsert bool    `help:"Bypass the filter and waveshaper on the recorded signal"`
	Smoothing    float64 `help:"Feedback and wet ramp time in milliseconds (0 disables)" default:"20" placeholder:"ms"`
	MaxDelay     float64 `help:"Delay buffer capacity in seconds (1-60)" default:"1" placeholder:"s"`

	Shape     string    `help:"Waveshaper transfer curve (tanh, chebyshev)" default:"tanh" enum:"tanh,chebyshev"`
	Drive     float64   `help:"Drive k of the tanh(k*x) curve" default:"2"`
	Harmonics []float64 `help:"Harmonic amplitudes for the chebyshev curve, fundamental first" sep:"," placeholder:"a1,a2,..."`
	Match     string    `help:"WAV recording of a sine through the unit to match; overrides --harmonics" type:"existingfile" placeholder:"file"`
	MatchHz   float64   `help:"Frequency of the sine in the --match recording" default:"1000" placeholder:"hz"`
}

// Values returns the flags as parameter values.
func (f EchoFlags) Values() param.Values {
	return param.Values{
		RateMs:      f.Rate,
		FeedbackDB:  f.Feedback,
		WetPercent:  f.Wet,
		ThresholdDB: f.Threshold,
		AttackMs:    f.Attack,
		ReleaseMs:   f.Release,
		CutoffHz:    f.Cutoff,
		Resonance:   f.Resonance,
		Bypass:      f.BypassInsert,
	}
}

// NewProcessor builds an unprepared echo processor from the flags.
func (f EchoFlags) NewProcessor() (*echo.Processor, error) {
	table, err := f.Table()
	if err != nil {
		return nil, err
	}

	return echo.New(
		echo.WithValues(f.Values()),
		echo.WithSmoothing(f.Smoothing),
		echo.WithMaxDelay(f.MaxDelay),
		echo.WithTable(table),
	)
}

// Table builds the waveshaper table selected by the flags.
func (f EchoFlags) Table() (*shaper.Table, error) {
	switch f.Shape {
	case "", "tanh":
		if f.Drive <= 0 {
			return nil, fmt.Errorf("drive must be > 0: %g", f.Drive)
		}

		return shaper.NewTable(shaper.Tanh(f.Drive))
	case "chebyshev":
		amps := f.Harmonics
		if f.Match != "" {
			measured, err := measureHarmonics(f.Match, f.MatchHz)
			if err != nil {
				return nil, err
			}

			amps = measured
		}

		weights := harmonics.ChebyshevWeights(amps)
		if weights == nil {
			return nil, fmt.Errorf("chebyshev shape needs --harmonics or --match with a non-zero spectrum")
		}

		return shaper.NewTable(shaper.Chebyshev(weights))
	default:
		return nil, fmt.Errorf("unknown shape: %s", f.Shape)
	}
}

// measureHarmonics analyzes the first channel of a sine recording.
func measureHarmonics(path string, fundamentalHz float64) ([]float64, error) {
	data, err := readWAV(path)
	if err != nil {
		return nil, err
	}

	res, err := harmonics.Analyze(data.Channels[0], data.SampleRate, fundamentalHz, matchHarmonics)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", path, err)
	}

	return res.Amplitudes, nil
}

func defaultVars() kong.Vars {
	v := param.DefaultValues()
	format := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

	return kong.Vars{
		"version":   version,
		"rate":      format(v.RateMs),
		"feedback":  format(v.FeedbackDB),
		"wet":       format(v.WetPercent),
		"threshold": format(v.ThresholdDB),
		"attack":    format(v.AttackMs),
		"release":   format(v.ReleaseMs),
		"cutoff":    format(v.CutoffHz),
		"resonance": format(v.Resonance),
	}
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("dlay"),
		kong.Description("Bucket-brigade style echo with a dynamic waveshaper"),
		kong.UsageOnError(),
		defaultVars(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := ctx.Run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}
