package engine

import (
	"math"
	"math/rand/v2"
)

const (
	defaultBPM            = 120.0
	defaultGrainSubdiv    = 4
	defaultDelaySubdiv    = 4
	defaultReverbDecaySec = 2.0
)

// tempo holds the musical timing state: BPM, the sync switch and the
// grain/delay subdivisions. Subdivisions are powers of two up to 32 and
// never zero; invalid updates are skipped with the prior value retained.
type tempo struct {
	bpm      float64
	bpmSet   bool // an explicit SetBPM switches the reverb decay to one beat
	sync     bool
	grainSub int
	delaySub int
}

func defaultTempo() tempo {
	return tempo{bpm: defaultBPM, grainSub: defaultGrainSubdiv, delaySub: defaultDelaySubdiv}
}

func validSubdivision(n int) bool {
	switch n {
	case 1, 2, 4, 8, 16, 32:
		return true
	}
	return false
}

func (t tempo) beatSeconds() float64 { return 60 / t.bpm }

// gridSeconds is the quantization interval for grain starts.
func (t tempo) gridSeconds() float64 { return t.beatSeconds() / float64(t.grainSub) }

// delaySeconds is the tempo-derived delay bus time.
func (t tempo) delaySeconds() float64 { return t.beatSeconds() / float64(t.delaySub) }

// reverbDecay is the tempo-derived reverb tail: one beat once a BPM has
// been set, the two-second default before that.
func (t tempo) reverbDecay() float64 {
	if t.bpmSet {
		return t.beatSeconds()
	}
	return defaultReverbDecaySec
}

// nextGridFrame returns the first grid point at or after the given
// frame. A clock already on the grid starts immediately.
func (t tempo) nextGridFrame(clock int64, sampleRate float64) int64 {
	grid := t.gridSeconds() * sampleRate
	if !(grid > 0) || math.IsInf(grid, 0) {
		return clock
	}

	n := math.Ceil(float64(clock) / grid)
	f := int64(math.Round(n * grid))
	if f < clock {
		f = clock
	}
	return f
}

// SetTempoSync enables or disables quantized grain starts.
func (e *Engine) SetTempoSync(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tempo.sync = enabled
}

// SetBPM updates the tempo. The delay bus retargets to the new beat
// subdivision and the reverb impulse is regenerated off the render path
// with a one-beat decay, swapped in at a block boundary. Non-positive or
// non-finite values are rejected and the previous tempo kept.
func (e *Engine) SetBPM(bpm float64) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		e.log.Warn("bpm update skipped", "bpm", bpm)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tempo.bpm = bpm
	e.tempo.bpmSet = true
	e.retargetDelayLocked()

	if e.initialized {
		e.rebuildReverbLocked(e.tempo.reverbDecay())
	}
}

// SetGrainSubdivision sets the quantization grid to 1/n of a beat.
// Values outside {1, 2, 4, 8, 16, 32} are skipped.
func (e *Engine) SetGrainSubdivision(n int) {
	if !validSubdivision(n) {
		e.log.Warn("grain subdivision update skipped", "subdivision", n)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tempo.grainSub = n
}

// SetDelaySubdivision sets the delay bus time to 1/n of a beat.
// Values outside {1, 2, 4, 8, 16, 32} are skipped.
func (e *Engine) SetDelaySubdivision(n int) {
	if !validSubdivision(n) {
		e.log.Warn("delay subdivision update skipped", "subdivision", n)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tempo.delaySub = n
	e.retargetDelayLocked()
}

func (e *Engine) retargetDelayLocked() {
	if !e.initialized {
		return
	}

	seconds := e.tempo.delaySeconds()
	if !e.graph.delay.setTime(seconds) {
		e.log.Warn("delay time update skipped", "seconds", seconds)
	}
}

// rebuildReverbLocked regenerates the reverb kernels on a worker
// goroutine. Building the partitioned convolvers is the expensive part;
// only the finished pair is handed to the graph, and stale rebuilds
// (superseded by a newer BPM change) are discarded.
func (e *Engine) rebuildReverbLocked(decaySeconds float64) {
	e.irEpoch++
	epoch := e.irEpoch

	sampleRate := e.sampleRate
	channels := e.channels
	seed := e.seed + epoch

	go func() {
		rng := rand.New(rand.NewPCG(seed, seed))

		rev, err := buildReverbs(decaySeconds, sampleRate, channels, rng)
		if err != nil {
			e.log.Warn("reverb rebuild failed", "err", err)
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		if !e.initialized || epoch != e.irEpoch {
			return
		}
		e.graph.installReverbs(rev)
	}()
}
