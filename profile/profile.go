// Package profile maps a stroke color and brush size to the effect
// settings applied to a single grain. Resolution is a pure function: the
// same color and brush size always produce the same profile, and nothing
// outside the returned value is touched.
package profile

import "github.com/cwbudde/algo-dsp/dsp/core"

// Color identifies the stroke color driving the effect character.
type Color int

const (
	// ColorUnknown resolves to a neutral all-pass profile.
	ColorUnknown Color = iota
	ColorBlue           // warm lowpass wash
	ColorGreen          // resonant bandpass with motion
	ColorYellow         // airy highpass, reverb heavy
	ColorPurple         // notch with rhythmic delay
	ColorRed            // peaking boost, dense
	ColorBlack          // reversed playback
)

// String returns the color name used by the stroke layer.
func (c Color) String() string {
	switch c {
	case ColorBlue:
		return "blue"
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	case ColorPurple:
		return "purple"
	case ColorRed:
		return "red"
	case ColorBlack:
		return "black"
	default:
		return "unknown"
	}
}

// ParseColor maps a color tag from the stroke layer to a Color. Tags not
// in the palette map to ColorUnknown.
func ParseColor(tag string) Color {
	switch tag {
	case "blue":
		return ColorBlue
	case "green":
		return ColorGreen
	case "yellow":
		return ColorYellow
	case "purple":
		return ColorPurple
	case "red":
		return ColorRed
	case "black":
		return ColorBlack
	default:
		return ColorUnknown
	}
}

// FilterKind selects the biquad response applied to a grain.
type FilterKind int

const (
	FilterAllpass FilterKind = iota
	FilterLowpass
	FilterHighpass
	FilterBandpass
	FilterNotch
	FilterPeaking
)

// Profile holds the per-grain effect settings resolved from a color and
// brush size. All levels are normalized linear gains unless noted.
type Profile struct {
	Filter     FilterKind
	FilterFreq float64 // Hz
	FilterQ    float64
	PeakGainDB float64 // peaking filter only

	ReverbSend float64
	DelaySend  float64
	DryLevel   float64

	GainMul     float64
	DurationMul float64
	PanSpread   float64 // pan drawn uniformly from [-PanSpread, PanSpread]

	DensityScale    float64 // scales speed-driven grain shortening
	RateOffset      float64 // added to the pitch-derived playback rate
	RateMul         float64 // multiplies the playback rate
	PositionJitter  float64 // fraction of buffer duration
	AttackPortion   float64 // fraction of grain duration spent in attack
	PitchRandomness float64 // +/- fractional rate randomization

	Reverse bool // play a time-reversed segment instead of the source
}

// Resolve computes the effect profile for one grain. Brush size maps to a
// wetness control, wet = clamp(brushSize/30, 0, 1), which every color
// interpolates its settings over.
func Resolve(color Color, brushSize float64) Profile {
	wet := core.Clamp(brushSize/30, 0, 1)

	p := Profile{
		Filter:         FilterAllpass,
		FilterFreq:     1000,
		FilterQ:        0.707,
		ReverbSend:     0.1,
		DryLevel:       0.9,
		GainMul:        1,
		DurationMul:    1,
		PanSpread:      0.15,
		DensityScale:   1,
		RateMul:        1,
		PositionJitter: 0.01,
		AttackPortion:  0.2,
	}

	switch color {
	case ColorBlue:
		p.Filter = FilterLowpass
		p.FilterFreq = 700 + wet*2800
		p.FilterQ = 0.8 + wet*1.4
		p.ReverbSend = 0.18 + wet*0.12
		p.DelaySend = 0
		p.DurationMul = 1.15
		p.DryLevel = 0.95

	case ColorGreen:
		p.Filter = FilterBandpass
		p.FilterFreq = 450 + wet*700
		p.FilterQ = 4 + wet*6
		p.ReverbSend = 0.12 + wet*0.08
		p.DelaySend = 0.18 + wet*0.12
		p.PanSpread = 0.6 * wet
		p.DensityScale = 1.15
		p.RateMul = 1.03

	case ColorYellow:
		p.Filter = FilterHighpass
		p.FilterFreq = 700 - wet*360
		if p.FilterFreq < 150 {
			p.FilterFreq = 150
		}
		p.ReverbSend = 0.5 + wet*0.22
		p.DelaySend = 0.12 + wet*0.08
		p.GainMul = 1.35
		p.DryLevel = 0.7
		p.PanSpread = 0.25

	case ColorPurple:
		p.Filter = FilterNotch
		p.FilterFreq = 950 + wet*850
		p.FilterQ = 2 + wet*5
		p.ReverbSend = 0.14 + wet*0.08
		p.DelaySend = 0.4 + wet*0.25
		p.DensityScale = 1.2
		p.RateMul = 1.03

	case ColorRed:
		p.Filter = FilterPeaking
		p.FilterFreq = 260 + wet*320
		p.FilterQ = 2.2 + wet*3
		p.PeakGainDB = 3 + wet*4
		p.ReverbSend = 0.42 + wet*0.18
		p.DelaySend = 0.2 + wet*0.1
		p.GainMul = 1.25
		p.DurationMul = 1.12

	case ColorBlack:
		p.Filter = FilterHighpass
		p.FilterFreq = 380 + wet*140
		p.ReverbSend = 0.38 + wet*0.22
		p.DelaySend = 0.18 + wet*0.14
		p.DurationMul = 1.35
		p.RateMul = 0.92
		p.DensityScale = 0.85
		p.PitchRandomness = 0.035
		p.AttackPortion = 0.45
		p.Reverse = true
	}

	return p
}

// RhythmicDelay reports whether this color retargets the shared delay
// time from gesture speed when tempo sync is off.
func (c Color) RhythmicDelay() bool {
	return c == ColorPurple
}
