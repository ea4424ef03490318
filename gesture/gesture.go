// Package gesture converts normalized stroke events from the drawing
// layer into the grain parameters consumed by the engine.
package gesture

import (
	"time"

	"github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cloph-dsp/paint-sonic-strokes/profile"
)

// speedPerDensity is the gesture speed (canvas units per second) that
// maps to one unit of grain density.
const speedPerDensity = 120.0

// Event is one pointer sample from the drawing surface.
type Event struct {
	X, Y      float64 // canvas coordinates
	Speed     float64 // canvas units per second, >= 0
	BrushSize float64 // > 0
	Color     profile.Color
	Time      time.Time
}

// Params are the buffer-relative grain parameters derived from an Event.
type Params struct {
	Position float64 // playback offset in [0, 1]
	Pitch    float64 // 0 = bottom of canvas (low), 1 = top (high)
	Density  float64 // speed-derived, >= 0
	Color    profile.Color
}

// Map derives grain parameters from an event on a canvas of the given
// size. X maps to buffer position, Y maps inverted to pitch, and speed
// maps linearly to density.
func Map(ev Event, canvasWidth, canvasHeight float64) Params {
	p := Params{Color: ev.Color}

	if canvasWidth > 0 {
		p.Position = core.Clamp(ev.X/canvasWidth, 0, 1)
	}
	if canvasHeight > 0 {
		p.Pitch = core.Clamp(1-ev.Y/canvasHeight, 0, 1)
	}
	if ev.Speed > 0 {
		p.Density = ev.Speed / speedPerDensity
	}

	return p
}
