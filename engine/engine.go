// Package engine implements the granular synthesis core: grain
// scheduling, the persistent dry/reverb/delay bus topology, tempo
// synchronization and PCM capture. The drawing surface feeds it gesture
// parameters; audio leaves through Render, either pulled by the device
// player or by an offline caller.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cloph-dsp/paint-sonic-strokes/pcm"
)

const (
	defaultSampleRate = 44100.0
	defaultChannels   = 2
	defaultMaxGrains  = 64
	defaultSeed       = 1

	// renderBlockFrames is the granularity of bus processing and of the
	// frame blocks handed to the capture worker.
	renderBlockFrames = 128
)

var (
	// ErrNotInitialized is returned by operations that need a built
	// signal graph.
	ErrNotInitialized = errors.New("engine: not initialized")

	// ErrRecording is returned by StartRecording while a capture
	// session is already active.
	ErrRecording = errors.New("engine: capture already active")

	// ErrNoCapture is returned by StopRecording when no frames were
	// captured.
	ErrNoCapture = errors.New("engine: no captured audio")
)

// Engine is the single mutable synthesis instance. It owns the source
// buffer, the persistent signal graph and the active grain set. All
// control methods are safe for concurrent use with Render.
type Engine struct {
	mu  sync.Mutex
	log *slog.Logger

	sampleRate float64
	channels   int
	maxGrains  int
	seed       uint64
	rng        *rand.Rand

	initialized bool
	playing     bool
	volume      float64

	source *pcm.Buffer
	clock  int64 // frames rendered since Initialize

	grains []*grain

	tempo   tempo
	irEpoch uint64 // discards stale async reverb rebuilds

	graph   *graph
	capture *capture
}

// Option configures an Engine before initialization.
type Option func(*Engine)

// WithSampleRate sets the engine sample rate in Hz.
func WithSampleRate(rate float64) Option {
	return func(e *Engine) { e.sampleRate = rate }
}

// WithChannels sets the output channel count (1 or 2).
func WithChannels(n int) Option {
	return func(e *Engine) { e.channels = n }
}

// WithLogger sets the logger used for engine warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSeed seeds the engine RNG for reproducible runs.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithMaxGrains caps the active grain set. When full, the oldest grain
// is displaced by new triggers.
func WithMaxGrains(n int) Option {
	return func(e *Engine) { e.maxGrains = n }
}

// New creates a configured but uninitialized engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		log:        slog.Default(),
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
		maxGrains:  defaultMaxGrains,
		seed:       defaultSeed,
		volume:     0.8,
		tempo:      defaultTempo(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.sampleRate <= 0 {
		return nil, fmt.Errorf("engine: sample rate must be > 0: %f", e.sampleRate)
	}
	if e.channels < 1 || e.channels > 2 {
		return nil, fmt.Errorf("engine: channel count must be 1 or 2: %d", e.channels)
	}
	if e.maxGrains < 1 {
		return nil, fmt.Errorf("engine: max grains must be >= 1: %d", e.maxGrains)
	}

	e.rng = rand.New(rand.NewPCG(e.seed, e.seed))

	return e, nil
}

// Initialize builds the persistent signal graph and starts the capture
// worker. Calling it on an initialized engine is a no-op.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	g, err := newGraph(e.sampleRate, e.channels, e.tempo.reverbDecay(), e.rng)
	if err != nil {
		return fmt.Errorf("engine: building signal graph: %w", err)
	}

	e.graph = g
	e.capture = newCapture(int(e.sampleRate), e.channels)
	e.clock = 0
	e.initialized = true

	return nil
}

// Dispose force-stops all grains, tears the signal graph down and stops
// the capture worker. The engine is unusable until re-initialized.
// Per-node teardown failures are logged and do not abort disposal.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return
	}

	e.grains = e.grains[:0]
	e.playing = false

	e.graph.teardown(e.log)
	e.graph = nil

	e.capture.close()
	e.capture = nil

	e.initialized = false
}

// LoadSource decodes a WAV byte stream and installs it as the source
// buffer, force-stopping any grains still reading the previous one. On
// decode failure the previous buffer stays installed and the engine
// remains usable for a retry.
func (e *Engine) LoadSource(data []byte) error {
	buf, err := pcm.DecodeWAV(data)
	if err != nil {
		e.log.Warn("source decode failed", "err", err)
		return fmt.Errorf("engine: decoding source: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.grains = e.grains[:0]
	e.source = buf

	return nil
}

// Start enables grain triggering.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = true
}

// Stop is a hard cancellation: every active grain is dropped immediately
// and triggering is disabled. Bus tails are not flushed.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.grains = e.grains[:0]
}

// SetVolume sets the master output level in [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = core.Clamp(v, 0, 1)
}

// SetRandomSeed reseeds the engine RNG. Pan, jitter and pitch
// randomization become reproducible from this point on.
func (e *Engine) SetRandomSeed(seed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(rand.NewPCG(seed, seed))
}

// ActiveGrains returns the number of grains currently scheduled or
// sounding.
func (e *Engine) ActiveGrains() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.grains)
}

// Playing reports whether triggering is enabled.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// SampleRate returns the engine sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Channels returns the output channel count.
func (e *Engine) Channels() int { return e.channels }

// SpectrumMagnitudes returns the most recent magnitude frame from the
// master spectrum tap, or nil before the first full analysis window.
func (e *Engine) SpectrumMagnitudes() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}
	return e.graph.tap.magnitudes()
}

// Render fills dst with interleaved float32 output frames and advances
// the engine clock. dst length must be a multiple of the channel count.
// An uninitialized engine renders silence.
func (e *Engine) Render(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}

	frames := len(dst) / e.channels
	done := 0
	for done < frames {
		n := min(renderBlockFrames, frames-done)
		e.renderBlock(dst[done*e.channels:(done+n)*e.channels], n)
		done += n
	}
}

func (e *Engine) renderBlock(dst []float32, frames int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return
	}

	g := e.graph
	g.beginBlock(frames)

	write := 0
	for _, gr := range e.grains {
		if gr.render(g, e.clock, frames) {
			e.grains[write] = gr
			write++
		}
	}
	e.grains = e.grains[:write]

	g.processBlock(frames)

	for ch := range e.channels {
		master := g.master[ch][:frames]
		for i := range frames {
			dst[i*e.channels+ch] = float32(master[i] * e.volume)
		}
	}

	if e.capture.recording() {
		e.capture.push(g.master, frames, e.volume)
	}

	e.clock += int64(frames)
}
