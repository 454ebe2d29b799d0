package shaper

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dlay/dsp/core"
)

const (
	defaultTableSize = 1024
	minTableSize     = 2
	maxTableSize     = 1 << 20
	maxChebyshevTerm = 16
)

// TransferFunc maps an input sample to an output sample.
type TransferFunc func(x float64) float64

// Tanh returns the transfer function tanh(k*x).
func Tanh(k float64) TransferFunc {
	return func(x float64) float64 {
		return math.Tanh(k * x)
	}
}

// Chebyshev returns the weighted sum of Chebyshev polynomials of the first
// kind: weights[k-1] scales T_k. Driven by a full-scale sine, T_k produces
// only the k-th harmonic, so the weights set the harmonic spectrum
// directly. At most 16 weights are used.
func Chebyshev(weights []float64) TransferFunc {
	w := append([]float64(nil), weights[:min(len(weights), maxChebyshevTerm)]...)

	return func(x float64) float64 {
		if len(w) == 0 {
			return 0
		}

		// T_0=1, T_1=x; recurrence T_n = 2x·T_{n-1} − T_{n-2}
		t0, t1 := 1.0, x
		sum := w[0] * t1

		for n := 2; n <= len(w); n++ {
			tn := 2*x*t1 - t0
			sum += w[n-1] * tn
			t0, t1 = t1, tn
		}

		return sum
	}
}

// TableOption mutates table configuration.
type TableOption func(*tableConfig) error

type tableConfig struct {
	size   int
	lo, hi float64
}

func defaultTableConfig() tableConfig {
	return tableConfig{size: defaultTableSize, lo: -1, hi: 1}
}

// WithSize sets the number of table entries in [2, 1<<20].
func WithSize(n int) TableOption {
	return func(cfg *tableConfig) error {
		if n < minTableSize || n > maxTableSize {
			return fmt.Errorf("shaper: table size must be in [%d, %d]: %d", minTableSize, maxTableSize, n)
		}

		cfg.size = n

		return nil
	}
}

// WithDomain sets the input range covered by the table. Inputs outside are
// clamped to it.
func WithDomain(lo, hi float64) TableOption {
	return func(cfg *tableConfig) error {
		if !core.IsFinite(lo) || !core.IsFinite(hi) || lo >= hi {
			return fmt.Errorf("shaper: domain must be finite with lo < hi: [%f, %f]", lo, hi)
		}

		cfg.lo, cfg.hi = lo, hi

		return nil
	}
}

// Table is an immutable sampled transfer function. It is safe for
// concurrent use.
type Table struct {
	values []float64
	lo, hi float64
	scale  float64
}

// NewTable samples fn at evenly spaced points over the domain, both ends
// included.
func NewTable(fn TransferFunc, opts ...TableOption) (*Table, error) {
	if fn == nil {
		return nil, fmt.Errorf("shaper: transfer function is nil")
	}

	cfg := defaultTableConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	values := make([]float64, cfg.size)
	step := (cfg.hi - cfg.lo) / float64(cfg.size-1)

	for i := range values {
		x := cfg.lo + float64(i)*step
		if i == cfg.size-1 {
			x = cfg.hi
		}

		v := fn(x)
		if !core.IsFinite(v) {
			return nil, fmt.Errorf("shaper: transfer function is not finite at %f: %f", x, v)
		}

		values[i] = v
	}

	return &Table{
		values: values,
		lo:     cfg.lo,
		hi:     cfg.hi,
		scale:  float64(cfg.size-1) / (cfg.hi - cfg.lo),
	}, nil
}

// Size returns the number of entries.
func (t *Table) Size() int { return len(t.values) }

// Domain returns the input range covered by the table.
func (t *Table) Domain() (lo, hi float64) { return t.lo, t.hi }

// Process evaluates the table at x with linear interpolation. x is clamped
// to the domain; NaN maps to the lower edge.
func (t *Table) Process(x float64) float64 {
	if !(x > t.lo) {
		return t.values[0]
	}

	last := len(t.values) - 1
	if x >= t.hi {
		return t.values[last]
	}

	pos := (x - t.lo) * t.scale

	i := int(pos)
	if i >= last {
		return t.values[last]
	}

	frac := pos - float64(i)

	return t.values[i] + frac*(t.values[i+1]-t.values[i])
}

// ProcessInPlace replaces every sample of buf by its table value.
func (t *Table) ProcessInPlace(buf []float64) {
	for i, x := range buf {
		buf[i] = t.Process(x)
	}
}
