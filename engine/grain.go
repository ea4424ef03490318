package engine

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/cloph-dsp/paint-sonic-strokes/gesture"
	"github.com/cloph-dsp/paint-sonic-strokes/pcm"
	"github.com/cloph-dsp/paint-sonic-strokes/profile"
)

const (
	minPlaybackRate  = 0.05
	grainPeakLevel   = 0.1
	minAttackSeconds = 0.0025
	minSegmentSec    = 0.001 // reversed segments shorter than this are dropped

	// Free-mode attenuation curves. Tunable feel constants, not
	// contracts: they keep fast strokes from washing out the buses.
	sendSpeedCurve  = 0.3
	delaySpeedCurve = 0.4

	minRhythmicDelay = 0.08

	// Send envelopes decay slower than the grain itself so the bus
	// tails breathe a little past the dry sound.
	sendDecayStretch = 1.2

	// Envelope shape: linear decay lands at nearSilence*peak, the
	// exponential tail takes it to tailFloor*peak at the grain end.
	nearSilence = 0.02
	tailFloor   = 1e-4
)

// grain is one scheduled fragment. Immutable once registered except for
// its playhead and age, which only the render path touches.
type grain struct {
	start int64 // absolute engine frame
	age   int   // engine frames since start
	env   grainEnv

	src       *pcm.Buffer
	pos       float64 // fractional frame in src
	step      float64 // src frames per engine frame
	srcFrames int

	panGain []float64 // per output channel

	dryLevel   float64
	reverbSend float64
	delaySend  float64
	sendScale  float64

	filters []*biquad.Section
}

// grainEnv is the click-free amplitude shape: linear attack to peak,
// linear decay to near-silence, then an exponential tail to the floor.
type grainEnv struct {
	peak      float64
	attack    int
	tailStart int
	dur       int
}

func newGrainEnv(peak float64, attackFrames, durFrames int) grainEnv {
	if durFrames < 3 {
		durFrames = 3
	}
	if attackFrames < 1 {
		attackFrames = 1
	}
	if attackFrames > durFrames-2 {
		attackFrames = durFrames - 2
	}

	tail := durFrames / 8
	if tail < 1 {
		tail = 1
	}
	tailStart := durFrames - tail
	if tailStart <= attackFrames {
		tailStart = attackFrames + 1
	}

	return grainEnv{peak: peak, attack: attackFrames, tailStart: tailStart, dur: durFrames}
}

func (ev grainEnv) at(age int) float64 {
	switch {
	case age <= 0:
		return 0
	case age < ev.attack:
		return ev.peak * float64(age) / float64(ev.attack)
	case age < ev.tailStart:
		t := float64(age-ev.attack) / float64(ev.tailStart-ev.attack)
		return ev.peak * (1 - t*(1-nearSilence))
	case age < ev.dur:
		t := float64(age-ev.tailStart) / float64(ev.dur-ev.tailStart)
		return ev.peak * nearSilence * math.Pow(tailFloor/nearSilence, t)
	default:
		return 0
	}
}

// sendAt evaluates the envelope with the decay phase stretched, keeping
// the attack identical while the sends ring out slightly longer.
func (ev grainEnv) sendAt(age int) float64 {
	if age < ev.attack {
		return ev.at(age)
	}
	scaled := ev.attack + int(float64(age-ev.attack)/sendDecayStretch)
	return ev.at(scaled)
}

// playbackRate derives the grain playback rate from the vertical gesture
// position and the profile, clamped away from zero both before and
// after the profile's rate multiplier.
func playbackRate(pitch float64, p profile.Profile) float64 {
	rate := 0.5 + pitch*1.5 + p.RateOffset
	if rate < minPlaybackRate {
		rate = minPlaybackRate
	}
	rate *= p.RateMul
	if rate < minPlaybackRate {
		rate = minPlaybackRate
	}
	return rate
}

// grainSeconds derives the grain duration: a 50-150 ms base from brush
// size, shortened by gesture density in free mode, scaled by the
// profile, then clamped against the buffer length.
func grainSeconds(brushSize, density, bufferDur float64, p profile.Profile, synced bool) float64 {
	base := 0.05 + (brushSize/50)*0.1

	dur := base
	if !synced {
		dur = base / (1 + math.Min(density, 10)*p.DensityScale*0.5)
	}
	dur *= p.DurationMul

	if bufferDur <= 0.05 {
		return math.Min(dur, 0.85*bufferDur)
	}

	margin := math.Max(0.002, 0.0125*bufferDur)
	if dur < 0.01 {
		dur = 0.01
	}
	if dur > bufferDur-margin {
		dur = bufferDur - margin
	}
	return dur
}

// TriggerGrain resolves the color profile for one gesture, computes
// pitch, duration, offset and envelope, and registers a grain on the
// audio timeline. With no loaded buffer or while stopped it is a silent
// no-op; gestures before audio is ready are expected.
func (e *Engine) TriggerGrain(p gesture.Params, brushSize float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || !e.playing || e.source == nil {
		return
	}

	prof := profile.Resolve(p.Color, brushSize)

	rate := playbackRate(p.Pitch, prof)
	if prof.PitchRandomness > 0 {
		rate *= 1 + (e.rng.Float64()*2-1)*prof.PitchRandomness
	}

	bufDur := e.source.Duration()
	durSec := grainSeconds(brushSize, p.Density, bufDur, prof, e.tempo.sync)
	if durSec <= 0 {
		return
	}

	offset := p.Position * bufDur
	if prof.PositionJitter > 0 {
		offset += (e.rng.Float64()*2 - 1) * prof.PositionJitter * bufDur
	}
	offset = core.Clamp(offset, 0, bufDur-durSec)

	src := e.source
	pos := offset * src.SampleRate()
	if prof.Reverse {
		seg, err := e.source.ReverseSegment(offset-durSec, durSec)
		if err != nil || seg.Duration() < minSegmentSec {
			return
		}
		src = seg
		pos = 0
	}

	peak := grainPeakLevel * prof.GainMul
	attackSec := math.Min(durSec*math.Min(prof.AttackPortion, 0.9), durSec*0.8)
	if attackSec < minAttackSeconds {
		attackSec = minAttackSeconds
	}

	durFrames := int(durSec * e.sampleRate)
	env := newGrainEnv(peak, int(attackSec*e.sampleRate), durFrames)

	pan := (e.rng.Float64()*2 - 1) * prof.PanSpread
	panGain := panGains(pan, e.channels)

	sendScale := 1.0
	speed := math.Min(p.Density, 10)
	if !e.tempo.sync {
		sendScale = 1 / (1 + speed*sendSpeedCurve)
	}

	if !e.tempo.sync && p.Color.RhythmicDelay() {
		t := math.Max(minRhythmicDelay, e.tempo.delaySeconds()/(1+speed*delaySpeedCurve))
		if !e.graph.delay.setTime(t) {
			e.log.Warn("rhythmic delay retarget skipped", "seconds", t)
		}
	}

	start := e.clock
	if e.tempo.sync {
		start = e.tempo.nextGridFrame(e.clock, e.sampleRate)
	}

	coeffs := filterCoefficients(prof, e.sampleRate)
	filters := make([]*biquad.Section, e.channels)
	for ch := range filters {
		filters[ch] = biquad.NewSection(coeffs)
	}

	if len(e.grains) >= e.maxGrains {
		copy(e.grains, e.grains[1:])
		e.grains = e.grains[:e.maxGrains-1]
	}

	e.grains = append(e.grains, &grain{
		start:      start,
		env:        env,
		src:        src,
		pos:        pos,
		step:       rate * src.SampleRate() / e.sampleRate,
		srcFrames:  src.Frames(),
		panGain:    panGain,
		dryLevel:   prof.DryLevel,
		reverbSend: prof.ReverbSend,
		delaySend:  prof.DelaySend,
		sendScale:  sendScale,
		filters:    filters,
	})
}

func filterCoefficients(p profile.Profile, sampleRate float64) biquad.Coefficients {
	switch p.Filter {
	case profile.FilterLowpass:
		return design.Lowpass(p.FilterFreq, p.FilterQ, sampleRate)
	case profile.FilterHighpass:
		return design.Highpass(p.FilterFreq, p.FilterQ, sampleRate)
	case profile.FilterBandpass:
		return design.Bandpass(p.FilterFreq, p.FilterQ, sampleRate)
	case profile.FilterNotch:
		return design.Notch(p.FilterFreq, p.FilterQ, sampleRate)
	case profile.FilterPeaking:
		return design.Peak(p.FilterFreq, p.PeakGainDB, p.FilterQ, sampleRate)
	default:
		return design.Allpass(p.FilterFreq, p.FilterQ, sampleRate)
	}
}

// panGains maps a pan position in [-1, 1] to equal-power channel gains.
func panGains(pan float64, channels int) []float64 {
	if channels == 1 {
		return []float64{1}
	}

	theta := (pan + 1) * math.Pi / 4
	return []float64{math.Cos(theta), math.Sin(theta)}
}

// render mixes this grain into the graph's bus scratch for one block.
// Returns false once the grain has finished (or run out of source) and
// should leave the active set.
func (gr *grain) render(g *graph, clock int64, frames int) bool {
	from := 0
	if gr.start > clock {
		if gr.start >= clock+int64(frames) {
			return true // scheduled beyond this block
		}
		from = int(gr.start - clock)
	}

	srcChannels := gr.src.Channels()

	for i := from; i < frames; i++ {
		if gr.age >= gr.env.dur {
			return false
		}
		if gr.pos >= float64(gr.srcFrames-1) {
			return false
		}

		env := gr.env.at(gr.age)
		sendEnv := gr.env.sendAt(gr.age) * gr.sendScale

		for ch := 0; ch < g.channels; ch++ {
			srcCh := ch
			if srcCh >= srcChannels {
				srcCh = srcChannels - 1
			}

			s := gr.filters[ch].ProcessSample(gr.src.Sample(srcCh, gr.pos))
			s *= gr.panGain[ch]

			g.dry[ch][i] += s * env * gr.dryLevel
			if gr.reverbSend > 0 {
				g.reverbIn[ch][i] += s * sendEnv * gr.reverbSend
			}
			if gr.delaySend > 0 {
				g.delayIn[ch][i] += s * sendEnv * gr.delaySend
			}
		}

		gr.pos += gr.step
		gr.age++
	}

	return gr.age < gr.env.dur
}
