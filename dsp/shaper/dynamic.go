package shaper

import (
	"fmt"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
	"github.com/cwbudde/algo-dlay/dsp/envelope"
)

// Dynamic is an envelope-controlled waveshaper. Each output sample is
// lerp(x, table(x), env) where env is the follower value for that sample.
type Dynamic struct {
	table    *Table
	follower *envelope.Follower
	env      *buffer.Block
}

// NewDynamic returns an unprepared dynamic waveshaper using table.
func NewDynamic(table *Table) (*Dynamic, error) {
	if table == nil {
		return nil, fmt.Errorf("shaper: table is nil")
	}

	follower, err := envelope.New(1, 1)
	if err != nil {
		return nil, err
	}

	return &Dynamic{table: table, follower: follower}, nil
}

// Prepare sizes the envelope state and scratch for spec and resets it.
func (d *Dynamic) Prepare(spec core.ProcessSpec) error {
	if err := d.follower.Prepare(spec); err != nil {
		return fmt.Errorf("shaper: %w", err)
	}

	d.env = buffer.New(spec.NumChannels, spec.BlockSize)

	return nil
}

// Reset zeroes the envelope state.
func (d *Dynamic) Reset() {
	d.follower.Reset()
}

// Table returns the transfer table.
func (d *Dynamic) Table() *Table { return d.table }

// Envelope returns the current envelope value of channel ch.
func (d *Dynamic) Envelope(ch int) float64 {
	return d.follower.State(ch).Env
}

// Follower exposes the envelope follower, mainly for inspection.
func (d *Dynamic) Follower() *envelope.Follower { return d.follower }

// Process shapes block in place. With bypass set the block is left
// untouched and the envelope state is frozen. Blocks that do not match the
// prepared shape are ignored.
func (d *Dynamic) Process(block *buffer.Block, c envelope.Coefficients, bypass bool) {
	if bypass || d.env == nil || !d.env.SameShape(block) {
		return
	}

	d.follower.ProcessBlock(d.env, block, c)

	for ch := range block.NumChannels() {
		samples := block.Channel(ch)
		env := d.env.Channel(ch)

		for i, x := range samples {
			if e := env[i]; e != 0 {
				samples[i] = core.Lerp(x, d.table.Process(x), e)
			}
		}
	}
}
