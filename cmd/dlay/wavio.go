package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/youpy/go-wav"
)

const (
	maxWAVChannels = 2
	outputBits     = 16
)

// audioData is planar float audio with its sample rate.
type audioData struct {
	SampleRate float64
	Channels   [][]float64
}

// Len returns the number of frames.
func (a *audioData) Len() int {
	if len(a.Channels) == 0 {
		return 0
	}

	return len(a.Channels[0])
}

func readWAV(path string) (*audioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := wav.NewReader(f)

	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	numChannels := int(format.NumChannels)
	if numChannels < 1 || numChannels > maxWAVChannels {
		return nil, fmt.Errorf("read %s: unsupported channel count %d", path, numChannels)
	}

	data := &audioData{
		SampleRate: float64(format.SampleRate),
		Channels:   make([][]float64, numChannels),
	}

	for {
		samples, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, sample := range samples {
			for ch := range data.Channels {
				data.Channels[ch] = append(data.Channels[ch], r.FloatValue(sample, uint(ch)))
			}
		}
	}

	return data, nil
}

func writeWAV(path string, data *audioData) error {
	numChannels := len(data.Channels)
	if numChannels < 1 || numChannels > maxWAVChannels {
		return fmt.Errorf("write %s: unsupported channel count %d", path, numChannels)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	n := data.Len()
	w := wav.NewWriter(f, uint32(n), uint16(numChannels), uint32(math.Round(data.SampleRate)), outputBits)

	samples := make([]wav.Sample, n)
	for i := range samples {
		for ch := range numChannels {
			samples[i].Values[ch] = quantize16(data.Channels[ch][i])
		}
	}

	if err := w.WriteSamples(samples); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}

// quantize16 converts a float sample to a clipped signed 16-bit value.
func quantize16(x float64) int {
	const full = math.MaxInt16

	if math.IsNaN(x) {
		return 0
	}

	return int(math.Round(math.Max(-1, math.Min(1, x)) * full))
}
