package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-dlay/dsp/echo"
	"github.com/cwbudde/algo-dlay/internal/cli"
)

var errQuit = errors.New("quit")

// controller interprets prompt commands on the control thread. It only
// touches the processor through its concurrency-safe setters.
type controller struct {
	proc *echo.Processor
	out  io.Writer
}

type command struct {
	name  string
	usage string
	arity int
	run   func(c *controller, args []string) error
}

// commands is filled in init because help lists it.
var commands []command

func init() {
	commands = []command{
		{"rate", "rate <ms>", 1, numberCommand((*echo.Processor).SetRate)},
		{"feedback", "feedback <dB>", 1, numberCommand((*echo.Processor).SetFeedback)},
		{"wet", "wet <percent>", 1, numberCommand((*echo.Processor).SetWet)},
		{"threshold", "threshold <dB>", 1, numberCommand((*echo.Processor).SetThreshold)},
		{"attack", "attack <ms>", 1, numberCommand((*echo.Processor).SetAttack)},
		{"release", "release <ms>", 1, numberCommand((*echo.Processor).SetRelease)},
		{"cutoff", "cutoff <Hz>", 1, numberCommand((*echo.Processor).SetCutoff)},
		{"resonance", "resonance <0-1>", 1, numberCommand((*echo.Processor).SetResonance)},
		{"bypass", "bypass on|off", 1, bypassCommand},
		{"show", "show", 0, showCommand},
		{"help", "help", 0, helpCommand},
		{"quit", "quit", 0, func(*controller, []string) error { return errQuit }},
	}
}

func (c *controller) eval(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}

		if len(args) != cmd.arity {
			return fmt.Errorf("%s: wrong number of arguments: want %d, got %d (usage: %s)",
				cmd.name, cmd.arity, len(args), cmd.usage)
		}

		return cmd.run(c, args)
	}

	return fmt.Errorf("unknown command: %s", name)
}

func numberCommand(set func(*echo.Processor, float64)) func(*controller, []string) error {
	return func(c *controller, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", args[0])
		}

		set(c.proc, v)

		return nil
	}
}

func bypassCommand(c *controller, args []string) error {
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		c.proc.SetInsertBypass(true)
	case "off", "false", "0":
		c.proc.SetInsertBypass(false)
	default:
		return fmt.Errorf("bypass: expected on or off, got %q", args[0])
	}

	return nil
}

func showCommand(c *controller, _ []string) error {
	v := c.proc.Params().Values()

	cli.PrintKeyValues(c.out, "", []cli.KeyValue{
		{Key: "rate", Value: fmt.Sprintf("%.1f ms", v.RateMs)},
		{Key: "feedback", Value: fmt.Sprintf("%.2f dB", v.FeedbackDB)},
		{Key: "wet", Value: fmt.Sprintf("%.1f %%", v.WetPercent)},
		{Key: "threshold", Value: fmt.Sprintf("%.2f dB", v.ThresholdDB)},
		{Key: "attack", Value: fmt.Sprintf("%.1f ms", v.AttackMs)},
		{Key: "release", Value: fmt.Sprintf("%.1f ms", v.ReleaseMs)},
		{Key: "cutoff", Value: fmt.Sprintf("%.0f Hz", v.CutoffHz)},
		{Key: "resonance", Value: fmt.Sprintf("%.2f", v.Resonance)},
		{Key: "bypass", Value: onOff(v.Bypass)},
	})

	return nil
}

func helpCommand(c *controller, _ []string) error {
	for _, cmd := range commands {
		fmt.Fprintf(c.out, "  %s\n", cli.KeyStyle.Render(cmd.usage))
	}

	return nil
}
