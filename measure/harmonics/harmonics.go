// Package harmonics measures the harmonic spectrum of a periodic signal and
// turns it into Chebyshev waveshaper weights.
//
// Feeding a full-scale sine through a recording of an analog delay and
// analyzing the result gives per-harmonic amplitudes; ChebyshevWeights maps
// them onto a transfer function that reproduces the same spectrum.
package harmonics

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-dlay/dsp/core"
)

const (
	minSignalLength = 64
	maxHarmonics    = 16
	captureBins     = 2
	searchBins      = 2
)

// Result holds a harmonic analysis.
type Result struct {
	// FundamentalHz is the frequency of the strongest bin near the requested
	// fundamental.
	FundamentalHz float64
	// FundamentalLevel is the estimated peak amplitude of the fundamental.
	FundamentalLevel float64
	// Amplitudes[k-1] is harmonic k relative to the fundamental, so
	// Amplitudes[0] is 1. Harmonics above Nyquist are 0.
	Amplitudes []float64
	// THD is the ratio of the RMS sum of harmonics 2..count to the
	// fundamental.
	THD float64
}

// Analyze measures count harmonics of fundamentalHz in signal. The signal is
// Hann-windowed and zero-padded to a power of two.
func Analyze(signal []float64, sampleRate, fundamentalHz float64, count int) (Result, error) {
	if len(signal) < minSignalLength {
		return Result{}, fmt.Errorf("harmonics: signal must have at least %d samples: %d", minSignalLength, len(signal))
	}

	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return Result{}, fmt.Errorf("harmonics: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if fundamentalHz <= 0 || fundamentalHz >= sampleRate/2 || !core.IsFinite(fundamentalHz) {
		return Result{}, fmt.Errorf("harmonics: fundamental must be in (0, %f): %f", sampleRate/2, fundamentalHz)
	}

	if count < 1 || count > maxHarmonics {
		return Result{}, fmt.Errorf("harmonics: count must be in [1, %d]: %d", maxHarmonics, count)
	}

	n := len(signal)
	fftSize := nextPowerOf2(n)

	coeffs := hann(n)
	windowed := make([]float64, n)
	vecmath.MulBlock(windowed, signal, coeffs)

	in := make([]complex128, fftSize)
	for i, v := range windowed {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return Result{}, fmt.Errorf("harmonics: %w", err)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return Result{}, fmt.Errorf("harmonics: %w", err)
	}

	bins := fftSize/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)

	for i := range bins {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}

	mag := make([]float64, bins)
	vecmath.Magnitude(mag, re, im)

	binHz := sampleRate / float64(fftSize)

	// Coherent gain of the window, one-sided spectrum.
	windowSum := 0.0
	for _, w := range coeffs {
		windowSum += w
	}

	scale := 2 / windowSum

	levels := make([]float64, count)
	fundamentalBin := 0

	for k := 1; k <= count; k++ {
		center := int(math.Round(float64(k) * fundamentalHz / binHz))
		if center+captureBins >= bins {
			break
		}

		peak := peakBin(mag, center-searchBins, center+searchBins)
		if k == 1 {
			fundamentalBin = peak
		}

		levels[k-1] = scale * bandLevel(mag, peak, captureBins) / hannEnergyCorrection
	}

	res := Result{
		FundamentalHz:    float64(fundamentalBin) * binHz,
		FundamentalLevel: levels[0],
		Amplitudes:       make([]float64, count),
	}

	if levels[0] <= 0 {
		return res, nil
	}

	sum := 0.0
	for k, level := range levels {
		res.Amplitudes[k] = level / levels[0]
		if k > 0 {
			sum += res.Amplitudes[k] * res.Amplitudes[k]
		}
	}

	res.THD = math.Sqrt(sum)

	return res, nil
}

// ChebyshevWeights converts relative harmonic amplitudes into weights for
// shaper.Chebyshev. weights[k-1] scales T_k; the weights are normalized so
// their absolute sum is 1, which keeps a full-scale input within [-1, 1].
// It returns nil if all amplitudes are zero.
func ChebyshevWeights(amplitudes []float64) []float64 {
	amplitudes = amplitudes[:min(len(amplitudes), maxHarmonics)]

	total := 0.0
	for _, a := range amplitudes {
		total += math.Abs(a)
	}

	if total == 0 || !core.IsFinite(total) {
		return nil
	}

	weights := make([]float64, len(amplitudes))
	for i, a := range amplitudes {
		weights[i] = math.Abs(a) / total
	}

	return weights
}

// hannEnergyCorrection is sqrt of the summed squared bin gains of a
// periodic Hann window (1 + 2*(1/2)^2), relative to its center bin.
var hannEnergyCorrection = math.Sqrt(1.5)

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}

	return w
}

func peakBin(mag []float64, lo, hi int) int {
	lo = max(lo, 1)
	hi = min(hi, len(mag)-1)

	best := lo
	for i := lo + 1; i <= hi; i++ {
		if mag[i] > mag[best] {
			best = i
		}
	}

	return best
}

// bandLevel returns the root of the summed squared magnitudes around center.
func bandLevel(mag []float64, center, width int) float64 {
	sum := 0.0

	for i := max(center-width, 0); i <= min(center+width, len(mag)-1); i++ {
		sum += mag[i] * mag[i]
	}

	return math.Sqrt(sum)
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
