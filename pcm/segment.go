package pcm

import "math"

// ReverseSegment extracts the time range [startTime, startTime+duration)
// from the buffer and returns a new buffer of the same channel count and
// sample rate with the samples of every channel in reverse order.
//
// Sample indices are clamped to the valid range. If the clamped range
// contains no samples, ErrNoSegment is returned and the caller should
// drop whatever it was about to schedule.
func (b *Buffer) ReverseSegment(startTime, duration float64) (*Buffer, error) {
	frames := b.Frames()

	start := int(math.Floor(startTime * b.sampleRate))
	count := int(math.Round(duration * b.sampleRate))

	if start < 0 {
		count += start
		start = 0
	}
	if start > frames {
		start = frames
	}
	if start+count > frames {
		count = frames - start
	}
	if count < 1 {
		return nil, ErrNoSegment
	}

	out := make([][]float64, len(b.channels))
	for ch, data := range b.channels {
		rev := make([]float64, count)
		for i := range count {
			rev[i] = data[start+count-1-i]
		}
		out[ch] = rev
	}

	return &Buffer{channels: out, sampleRate: b.sampleRate}, nil
}
