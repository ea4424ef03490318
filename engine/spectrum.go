package engine

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
)

const spectrumSize = 1024

// spectrumTap accumulates the mono master signal and publishes magnitude
// frames every spectrumSize samples. It sits after the compressor, where
// an output visualizer would tap the graph.
type spectrumTap struct {
	plan   *algofft.Plan[complex128]
	coeffs []float64
	ring   []float64
	fill   int

	in   []complex128
	out  []complex128
	mags []float64
}

func newSpectrumTap() (*spectrumTap, error) {
	plan, err := algofft.NewPlan64(spectrumSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum tap: %w", err)
	}

	return &spectrumTap{
		plan:   plan,
		coeffs: window.Generate(window.TypeHann, spectrumSize),
		ring:   make([]float64, spectrumSize),
		in:     make([]complex128, spectrumSize),
		out:    make([]complex128, spectrumSize),
	}, nil
}

// feed mixes the master channels down to mono and accumulates them into
// the analysis window, emitting a magnitude frame when it fills.
func (t *spectrumTap) feed(master [][]float64, channels, frames int) {
	inv := 1 / float64(channels)
	for i := range frames {
		mono := 0.0
		for ch := 0; ch < channels; ch++ {
			mono += master[ch][i]
		}
		t.ring[t.fill] = mono * inv
		t.fill++
		if t.fill == spectrumSize {
			t.analyze()
			t.fill = 0
		}
	}
}

func (t *spectrumTap) analyze() {
	for i, v := range t.ring {
		t.in[i] = complex(v*t.coeffs[i], 0)
	}
	if err := t.plan.Forward(t.out, t.in); err != nil {
		return
	}
	t.mags = spectrum.Magnitude(t.out[:spectrumSize/2+1])
}

// magnitudes returns the latest analysis frame, nil before the first.
func (t *spectrumTap) magnitudes() []float64 {
	return t.mags
}
