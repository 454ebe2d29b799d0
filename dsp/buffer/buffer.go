package buffer

import "fmt"

// Block is a planar multi-channel sample block. Every channel has the same
// length.
type Block struct {
	channels [][]float64
}

// New returns a zero-filled Block with numChannels channels of length
// samples each. Negative arguments are treated as zero.
func New(numChannels, length int) *Block {
	if numChannels < 0 {
		numChannels = 0
	}

	if length < 0 {
		length = 0
	}

	b := &Block{channels: make([][]float64, numChannels)}

	backing := make([]float64, numChannels*length)
	for ch := range b.channels {
		b.channels[ch] = backing[ch*length : (ch+1)*length : (ch+1)*length]
	}

	return b
}

// FromChannels wraps existing channel slices without copying.
// Mutations through the Block are visible in the slices and vice versa.
func FromChannels(channels [][]float64) (*Block, error) {
	for ch := 1; ch < len(channels); ch++ {
		if len(channels[ch]) != len(channels[0]) {
			return nil, fmt.Errorf("buffer: channel %d length %d differs from channel 0 length %d",
				ch, len(channels[ch]), len(channels[0]))
		}
	}

	return &Block{channels: channels}, nil
}

// NewView returns an empty Block whose channel table can hold numChannels
// views. Use it with View to obtain an allocation-free window.
func NewView(numChannels int) *Block {
	if numChannels < 0 {
		numChannels = 0
	}

	return &Block{channels: make([][]float64, 0, numChannels)}
}

// NumChannels returns the channel count.
func (b *Block) NumChannels() int {
	return len(b.channels)
}

// Len returns the per-channel sample count.
func (b *Block) Len() int {
	if len(b.channels) == 0 {
		return 0
	}

	return len(b.channels[0])
}

// Channel returns the samples of channel ch.
func (b *Block) Channel(ch int) []float64 {
	return b.channels[ch]
}

// Channels returns the underlying channel table.
func (b *Block) Channels() [][]float64 {
	return b.channels
}

// View points dst at samples [offset, offset+length) of every channel of b.
// dst's channel table is reused; no allocation happens as long as its
// capacity covers b.NumChannels(). It reports false and leaves dst
// unchanged if the window is out of range.
func (b *Block) View(dst *Block, offset, length int) bool {
	if offset < 0 || length < 0 || offset+length > b.Len() {
		return false
	}

	dst.channels = dst.channels[:0]
	for _, samples := range b.channels {
		dst.channels = append(dst.channels, samples[offset:offset+length:offset+length])
	}

	return true
}

// SameShape reports whether b and other have equal channel count and length.
func (b *Block) SameShape(other *Block) bool {
	return other != nil && b.NumChannels() == other.NumChannels() && b.Len() == other.Len()
}

// Zero sets all samples to 0.
func (b *Block) Zero() {
	for _, samples := range b.channels {
		clear(samples)
	}
}

// CopyFrom copies src into b channel by channel and returns the number of
// samples copied per channel. Extra channels or samples on either side are
// left untouched.
func (b *Block) CopyFrom(src *Block) int {
	n := min(b.Len(), src.Len())
	for ch := range min(b.NumChannels(), src.NumChannels()) {
		copy(b.channels[ch][:n], src.channels[ch][:n])
	}

	return n
}

// CopyFromFloat32 converts planar float32 audio into b. Channels beyond
// b.NumChannels() are ignored; missing channels are zeroed.
func (b *Block) CopyFromFloat32(src [][]float32) {
	for ch, dst := range b.channels {
		if ch >= len(src) {
			clear(dst)
			continue
		}

		in := src[ch]

		n := min(len(dst), len(in))
		for i := range n {
			dst[i] = float64(in[i])
		}

		clear(dst[n:])
	}
}

// CopyToFloat32 converts b into planar float32 audio. Destination channels
// beyond b.NumChannels() receive channel 0.
func (b *Block) CopyToFloat32(dst [][]float32) {
	if len(b.channels) == 0 {
		return
	}

	for ch, out := range dst {
		src := b.channels[0]
		if ch < len(b.channels) {
			src = b.channels[ch]
		}

		n := min(len(out), len(src))
		for i := range n {
			out[i] = float32(src[i])
		}
	}
}

// Copy returns a deep copy of the block.
func (b *Block) Copy() *Block {
	out := New(b.NumChannels(), b.Len())
	out.CopyFrom(b)

	return out
}
