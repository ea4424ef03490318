package engine

import (
	"sync/atomic"

	"github.com/cloph-dsp/paint-sonic-strokes/pcm"
)

type captureOp int

const (
	opFrames captureOp = iota
	opStart
	opStop
	opQuit
)

type captureMsg struct {
	op     captureOp
	frames [][]float64 // one slice per channel, opFrames only
	reply  chan captureResult
}

type captureResult struct {
	data []byte
	err  error
}

// capture accumulates post-master PCM on a dedicated worker goroutine.
// The render path hands it fixed-size frame blocks by copy over a
// channel; start/stop transitions are messages on the same channel, so
// they take effect between blocks, never mid-frame, and no state is
// shared between the render and worker goroutines.
type capture struct {
	sampleRate int
	channels   int

	ch     chan captureMsg
	active atomic.Bool
	done   chan struct{}
}

func newCapture(sampleRate, channels int) *capture {
	c := &capture{
		sampleRate: sampleRate,
		channels:   channels,
		ch:         make(chan captureMsg, 64),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

// recording reports whether a session is active. The render path checks
// this before copying a block.
func (c *capture) recording() bool {
	return c.active.Load()
}

// start begins a session. Fails if one is already active.
func (c *capture) start() error {
	if c.active.Load() {
		return ErrRecording
	}

	reply := make(chan captureResult, 1)
	c.ch <- captureMsg{op: opStart, reply: reply}
	<-reply

	c.active.Store(true)
	return nil
}

// stop ends the session and returns the encoded WAV, or ErrNoCapture if
// nothing was recorded. Blocks already queued ahead of the stop message
// are included.
func (c *capture) stop() ([]byte, error) {
	if !c.active.Load() {
		return nil, ErrNoCapture
	}
	c.active.Store(false)

	reply := make(chan captureResult, 1)
	c.ch <- captureMsg{op: opStop, reply: reply}
	res := <-reply

	return res.data, res.err
}

// push copies one block of master output and queues it for the worker.
func (c *capture) push(master [][]float64, frames int, volume float64) {
	block := make([][]float64, c.channels)
	for ch := range block {
		data := make([]float64, frames)
		for i := range frames {
			data[i] = master[ch][i] * volume
		}
		block[ch] = data
	}
	c.ch <- captureMsg{op: opFrames, frames: block}
}

func (c *capture) close() {
	c.active.Store(false)
	c.ch <- captureMsg{op: opQuit}
	<-c.done
}

// run owns the per-channel frame lists. Nothing else touches them.
func (c *capture) run() {
	defer close(c.done)

	var (
		blocks [][][]float64 // blocks[n][ch] -> frame data
		total  int
	)

	reset := func() {
		blocks = nil
		total = 0
	}

	for msg := range c.ch {
		switch msg.op {
		case opFrames:
			blocks = append(blocks, msg.frames)
			total += len(msg.frames[0])

		case opStart:
			reset()
			msg.reply <- captureResult{}

		case opStop:
			if total == 0 {
				msg.reply <- captureResult{err: ErrNoCapture}
				continue
			}

			channels := make([][]float64, c.channels)
			for ch := range channels {
				flat := make([]float64, 0, total)
				for _, block := range blocks {
					flat = append(flat, block[ch]...)
				}
				channels[ch] = flat
			}
			reset()

			data, err := pcm.EncodeWAV16(channels, c.sampleRate)
			msg.reply <- captureResult{data: data, err: err}

		case opQuit:
			return
		}
	}
}

// StartRecording begins capturing the post-master signal. It fails when
// the engine is not initialized or a session is already active; the
// in-progress session is never disturbed.
func (e *Engine) StartRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	return e.capture.start()
}

// StopRecording ends the capture session and returns the recorded audio
// as a 16-bit PCM WAV byte stream. Returns ErrNoCapture when no session
// was active or no frames were captured.
func (e *Engine) StopRecording() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.capture.stop()
}
