package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Player binds an engine to the system audio device. The oto context
// pulls interleaved float32 frames from the engine on its own real-time
// goroutine via Read; triggering and control never block on it.
type Player struct {
	mu      sync.Mutex
	ctx     *oto.Context
	player  *oto.Player
	engine  *Engine
	samples []float32
	started bool
}

// NewPlayer opens the default output device for the engine's sample
// rate and channel count.
func NewPlayer(e *Engine) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   int(e.SampleRate()),
		ChannelCount: e.Channels(),
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("engine: opening audio device: %w", err)
	}
	<-ready

	p := &Player{
		ctx:     ctx,
		engine:  e,
		samples: make([]float32, 4096),
	}
	p.player = ctx.NewPlayer(p)

	return p, nil
}

// Read renders engine output into the device buffer.
func (p *Player) Read(buf []byte) (int, error) {
	n := len(buf) / 4

	if len(p.samples) < n {
		p.samples = make([]float32, n)
	}
	samples := p.samples[:n]

	p.engine.Render(samples)

	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}

	return n * 4, nil
}

// Play starts device playback.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started && p.player != nil {
		p.player.Play()
		p.started = true
	}
}

// Close stops playback and releases the device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil {
		return nil
	}

	err := p.player.Close()
	p.player = nil
	p.started = false

	return err
}
