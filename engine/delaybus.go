package engine

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/delay"
)

const (
	maxDelaySeconds  = 2.0
	delayRampSeconds = 0.05
)

// delayBus is the shared feedback delay return: one fractional delay
// line per channel with a self-feedback loop. Delay-time changes ramp
// over 50 ms instead of jumping, which keeps retargets click-free.
type delayBus struct {
	sampleRate float64
	lines      []*delay.Line
	out        [][]float64

	feedback float64

	current float64 // delay in samples, smoothed
	target  float64
	step    float64 // per-frame ramp increment
}

func newDelayBus(sampleRate float64, channels int) (*delayBus, error) {
	size := int(maxDelaySeconds*sampleRate) + 4

	d := &delayBus{
		sampleRate: sampleRate,
		out:        scratch(channels),
		feedback:   defaultDelayFeed,
		current:    0.25 * sampleRate,
		target:     0.25 * sampleRate,
	}

	for ch := 0; ch < channels; ch++ {
		line, err := delay.New(size)
		if err != nil {
			return nil, fmt.Errorf("delay bus channel %d: %w", ch, err)
		}
		d.lines = append(d.lines, line)
	}

	return d, nil
}

// setTime retargets the delay time in seconds, ramped over 50 ms.
// Returns false for non-finite or non-positive values, leaving the
// previous time in effect.
func (d *delayBus) setTime(seconds float64) bool {
	if !(seconds > 0) || seconds > maxDelaySeconds {
		return false
	}

	d.target = seconds * d.sampleRate
	d.step = (d.target - d.current) / (delayRampSeconds * d.sampleRate)

	return true
}

// seconds returns the currently scheduled delay time.
func (d *delayBus) seconds() float64 {
	return d.current / d.sampleRate
}

// process consumes one block of send input and fills d.out with the
// delayed return, advancing the time ramp frame by frame.
func (d *delayBus) process(in [][]float64, frames int) {
	for i := range frames {
		if d.step != 0 {
			d.current += d.step
			if (d.step > 0 && d.current >= d.target) || (d.step < 0 && d.current <= d.target) {
				d.current = d.target
				d.step = 0
			}
		}

		for ch, line := range d.lines {
			echo := line.ReadFractional(d.current)
			line.Write(in[ch][i] + echo*d.feedback)
			d.out[ch][i] = echo
		}
	}
}

func (d *delayBus) reset() {
	for _, line := range d.lines {
		line.Reset()
	}
	for ch := range d.out {
		clear(d.out[ch])
	}
}
