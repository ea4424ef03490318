package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"
	"github.com/cwbudde/algo-dsp/dsp/effects/reverb"
)

const (
	// reverbBlockOrder sets partitioned-convolution latency to
	// 2^7 = 128 samples, matching the render block.
	reverbBlockOrder = 7

	defaultReverbReturn = 0.9
	defaultDelayReturn  = 0.85
	defaultDelayFeed    = 0.35

	// reverbDipSeconds is the return-gain dip bracketing a reverb
	// kernel swap, so a mid-tail swap never produces a step.
	reverbDipSeconds = 0.025
)

// graph owns the persistent routing topology: per-grain outputs
// accumulate into dry and send buses, the reverb and delay buses return
// into the master, and the master runs through saturation, compression
// and the spectrum tap. Built once by Initialize, torn down by Dispose.
type graph struct {
	sampleRate float64
	channels   int

	// Per-block scratch, one slice per channel, renderBlockFrames long.
	dry      [][]float64
	reverbIn [][]float64
	delayIn  [][]float64
	master   [][]float64

	rev          []*reverb.ConvolutionReverb
	reverbReturn float64
	reverbScale  float64 // dip envelope around kernel swaps
	pendingRev   []*reverb.ConvolutionReverb
	dipStep      float64

	delay *delayBus

	sat  []*effects.Distortion
	comp []*dynamics.Compressor

	tap *spectrumTap
}

func newGraph(sampleRate float64, channels int, reverbDecay float64, rng *rand.Rand) (*graph, error) {
	g := &graph{
		sampleRate:   sampleRate,
		channels:     channels,
		dry:          scratch(channels),
		reverbIn:     scratch(channels),
		delayIn:      scratch(channels),
		master:       scratch(channels),
		reverbReturn: defaultReverbReturn,
		reverbScale:  1,
		dipStep:      1 / (reverbDipSeconds * sampleRate / renderBlockFrames),
	}

	rev, err := buildReverbs(reverbDecay, sampleRate, channels, rng)
	if err != nil {
		return nil, err
	}
	g.rev = rev

	g.delay, err = newDelayBus(sampleRate, channels)
	if err != nil {
		return nil, err
	}

	for ch := 0; ch < channels; ch++ {
		sat, err := effects.NewDistortion(sampleRate,
			effects.WithDistortionMode(effects.DistortionModeSoftSat),
			effects.WithDistortionDrive(1.2),
			effects.WithDistortionMix(1),
		)
		if err != nil {
			return nil, fmt.Errorf("saturation stage: %w", err)
		}
		g.sat = append(g.sat, sat)

		comp, err := dynamics.NewCompressor(sampleRate)
		if err != nil {
			return nil, fmt.Errorf("compressor stage: %w", err)
		}
		if err := comp.SetThreshold(-18); err != nil {
			return nil, fmt.Errorf("compressor threshold: %w", err)
		}
		if err := comp.SetRatio(3); err != nil {
			return nil, fmt.Errorf("compressor ratio: %w", err)
		}
		if err := comp.SetAttack(8); err != nil {
			return nil, fmt.Errorf("compressor attack: %w", err)
		}
		if err := comp.SetRelease(120); err != nil {
			return nil, fmt.Errorf("compressor release: %w", err)
		}
		g.comp = append(g.comp, comp)
	}

	g.tap, err = newSpectrumTap()
	if err != nil {
		return nil, err
	}

	return g, nil
}

func scratch(channels int) [][]float64 {
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, renderBlockFrames)
	}
	return out
}

// synthImpulse generates one channel of the procedural reverb kernel:
// exponentially tapered white noise, sample[i] = uniform(-1,1)*(1-i/n)^2.
func synthImpulse(decaySeconds, sampleRate float64, rng *rand.Rand) []float64 {
	n := int(decaySeconds * sampleRate)
	if n < 1 {
		n = 1
	}

	ir := make([]float64, n)
	for i := range ir {
		t := 1 - float64(i)/float64(n)
		ir[i] = (rng.Float64()*2 - 1) * t * t
	}

	return ir
}

func buildReverbs(decaySeconds, sampleRate float64, channels int, rng *rand.Rand) ([]*reverb.ConvolutionReverb, error) {
	out := make([]*reverb.ConvolutionReverb, 0, channels)
	for ch := 0; ch < channels; ch++ {
		kernel := synthImpulse(decaySeconds, sampleRate, rng)

		r, err := reverb.NewConvolutionReverb(kernel, reverbBlockOrder)
		if err != nil {
			return nil, fmt.Errorf("reverb bus channel %d: %w", ch, err)
		}
		// The bus carries wet signal only; dry routing is explicit.
		r.SetWetDry(1, 0)
		out = append(out, r)
	}

	return out, nil
}

// installReverbs arms a kernel swap. The swap itself happens on the
// render path once the return gain has dipped to zero.
func (g *graph) installReverbs(rev []*reverb.ConvolutionReverb) {
	g.pendingRev = rev
}

func (g *graph) beginBlock(frames int) {
	for ch := 0; ch < g.channels; ch++ {
		clear(g.dry[ch][:frames])
		clear(g.reverbIn[ch][:frames])
		clear(g.delayIn[ch][:frames])
		clear(g.master[ch][:frames])
	}
}

// processBlock runs the bus returns and the master chain over the
// current scratch block.
func (g *graph) processBlock(frames int) {
	g.stepReverbSwap()

	for ch := 0; ch < g.channels; ch++ {
		wet := g.reverbIn[ch][:frames]
		// ProcessBlock only fails on mismatched slice lengths, which
		// beginBlock rules out.
		_ = g.rev[ch].ProcessInPlace(wet)
	}

	g.delay.process(g.delayIn, frames)

	for ch := 0; ch < g.channels; ch++ {
		master := g.master[ch][:frames]
		dry := g.dry[ch][:frames]
		wet := g.reverbIn[ch][:frames]
		echo := g.delay.out[ch][:frames]

		revGain := g.reverbReturn * g.reverbScale
		for i := range frames {
			master[i] = dry[i] + wet[i]*revGain + echo[i]*defaultDelayReturn
		}

		g.sat[ch].ProcessInPlace(master)
		g.comp[ch].ProcessInPlace(master)
	}

	g.tap.feed(g.master, g.channels, frames)
}

// stepReverbSwap advances the dip envelope around a pending kernel swap:
// ramp the return down, exchange the convolvers, ramp back up.
func (g *graph) stepReverbSwap() {
	if g.pendingRev != nil {
		g.reverbScale -= g.dipStep
		if g.reverbScale <= 0 {
			g.reverbScale = 0
			g.rev = g.pendingRev
			g.pendingRev = nil
		}
		return
	}
	if g.reverbScale < 1 {
		g.reverbScale += g.dipStep
		if g.reverbScale > 1 {
			g.reverbScale = 1
		}
	}
}

// teardown releases every stage. Individual reset failures are logged
// and do not stop the remaining stages from being released.
func (g *graph) teardown(log *slog.Logger) {
	for ch, r := range g.rev {
		if r == nil {
			log.Warn("teardown: reverb stage already released", "channel", ch)
			continue
		}
		r.Reset()
	}
	g.rev = nil
	g.pendingRev = nil

	if g.delay != nil {
		g.delay.reset()
		g.delay = nil
	}

	for _, c := range g.comp {
		c.Reset()
	}
	g.comp = nil

	for _, s := range g.sat {
		s.Reset()
	}
	g.sat = nil

	g.tap = nil
}
