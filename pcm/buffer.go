// Package pcm provides immutable multichannel PCM sample buffers, the
// canonical WAV container used for source loading and capture export, and
// sample-accurate segment extraction.
package pcm

import (
	"errors"
	"fmt"
)

// ErrNoSegment is returned when a requested segment contains no samples.
var ErrNoSegment = errors.New("pcm: segment is empty")

// Buffer is a decoded multichannel PCM sample. Channel data is stored as
// one float64 slice per channel. A Buffer is treated as immutable once
// constructed; all readers share the same backing slices.
type Buffer struct {
	channels   [][]float64
	sampleRate float64
}

// FromChannels wraps existing channel slices without copying. All channels
// must have identical length.
func FromChannels(channels [][]float64, sampleRate float64) (*Buffer, error) {
	if len(channels) == 0 {
		return nil, errors.New("pcm: at least one channel required")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pcm: sample rate must be > 0: %f", sampleRate)
	}

	frames := len(channels[0])
	for ch, data := range channels {
		if len(data) != frames {
			return nil, fmt.Errorf("pcm: channel %d has %d frames, want %d", ch, len(data), frames)
		}
	}

	return &Buffer{channels: channels, sampleRate: sampleRate}, nil
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.channels) }

// Frames returns the per-channel frame count.
func (b *Buffer) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() float64 { return b.sampleRate }

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Frames()) / b.sampleRate
}

// Channel returns the sample data for one channel. The returned slice is
// shared, not copied.
func (b *Buffer) Channel(ch int) []float64 {
	return b.channels[ch]
}

// Sample reads channel ch at a fractional frame position using linear
// interpolation. Positions outside the buffer clamp to the edge samples.
func (b *Buffer) Sample(ch int, pos float64) float64 {
	data := b.channels[ch]
	n := len(data)
	if n == 0 {
		return 0
	}
	if pos <= 0 {
		return data[0]
	}
	if pos >= float64(n-1) {
		return data[n-1]
	}

	i := int(pos)
	frac := pos - float64(i)

	return data[i] + (data[i+1]-data[i])*frac
}
