package profile

import (
	"math"
	"testing"
)

func TestResolveIsDeterministic(t *testing.T) {
	for _, c := range []Color{ColorUnknown, ColorBlue, ColorGreen, ColorYellow, ColorPurple, ColorRed, ColorBlack} {
		a := Resolve(c, 17.5)
		b := Resolve(c, 17.5)
		if a != b {
			t.Fatalf("Resolve(%v, 17.5) not deterministic: %+v vs %+v", c, a, b)
		}
	}
}

func TestResolveWetnessClamps(t *testing.T) {
	// brushSize 30 already saturates the wetness control.
	at30 := Resolve(ColorBlue, 30)
	at90 := Resolve(ColorBlue, 90)
	if at30 != at90 {
		t.Fatalf("wetness should saturate at brush 30: %+v vs %+v", at30, at90)
	}

	at0 := Resolve(ColorBlue, 0)
	neg := Resolve(ColorBlue, -10)
	if at0 != neg {
		t.Fatalf("negative brush should clamp to dry: %+v vs %+v", at0, neg)
	}
}

func TestResolveBlueLowpass(t *testing.T) {
	p := Resolve(ColorBlue, 15) // wet = 0.5
	if p.Filter != FilterLowpass {
		t.Fatalf("filter = %v, want lowpass", p.Filter)
	}
	if math.Abs(p.FilterFreq-2100) > 1e-9 {
		t.Fatalf("freq = %g, want 2100", p.FilterFreq)
	}
	if math.Abs(p.FilterQ-1.5) > 1e-9 {
		t.Fatalf("q = %g, want 1.5", p.FilterQ)
	}
	if p.DelaySend != 0 {
		t.Fatalf("delay send = %g, want 0", p.DelaySend)
	}
	if p.Reverse {
		t.Fatal("blue must not reverse")
	}
}

func TestResolveYellowFrequencyFloor(t *testing.T) {
	p := Resolve(ColorYellow, 3000)
	if p.Filter != FilterHighpass {
		t.Fatalf("filter = %v, want highpass", p.Filter)
	}
	if p.FilterFreq < 150 {
		t.Fatalf("freq = %g, must not drop below 150", p.FilterFreq)
	}
}

func TestResolveBlackReverses(t *testing.T) {
	p := Resolve(ColorBlack, 20)
	if !p.Reverse {
		t.Fatal("black must reverse playback")
	}
	if p.RateMul >= 1 {
		t.Fatalf("rate mul = %g, want < 1", p.RateMul)
	}
	if p.PitchRandomness <= 0 {
		t.Fatalf("pitch randomness = %g, want > 0", p.PitchRandomness)
	}
	if p.AttackPortion <= 0.2 {
		t.Fatalf("attack portion = %g, want softened attack", p.AttackPortion)
	}
}

func TestResolveUnknownIsNeutral(t *testing.T) {
	p := Resolve(ColorUnknown, 25)
	if p.Filter != FilterAllpass {
		t.Fatalf("filter = %v, want allpass", p.Filter)
	}
	if p.Reverse {
		t.Fatal("unknown color must not reverse")
	}
	if p.GainMul != 1 || p.RateMul != 1 {
		t.Fatalf("gain/rate mul = %g/%g, want 1/1", p.GainMul, p.RateMul)
	}
}

func TestResolveSendsStayNormalized(t *testing.T) {
	colors := []Color{ColorUnknown, ColorBlue, ColorGreen, ColorYellow, ColorPurple, ColorRed, ColorBlack}
	for _, c := range colors {
		for _, brush := range []float64{0, 5, 15, 30, 50} {
			p := Resolve(c, brush)
			if p.ReverbSend < 0 || p.ReverbSend > 1 {
				t.Fatalf("%v brush %g: reverb send %g out of [0,1]", c, brush, p.ReverbSend)
			}
			if p.DelaySend < 0 || p.DelaySend > 1 {
				t.Fatalf("%v brush %g: delay send %g out of [0,1]", c, brush, p.DelaySend)
			}
			if p.DryLevel < 0 || p.DryLevel > 1 {
				t.Fatalf("%v brush %g: dry level %g out of [0,1]", c, brush, p.DryLevel)
			}
			if p.FilterFreq <= 0 {
				t.Fatalf("%v brush %g: filter freq %g must be positive", c, brush, p.FilterFreq)
			}
		}
	}
}

func TestParseColorRoundTrip(t *testing.T) {
	for _, c := range []Color{ColorBlue, ColorGreen, ColorYellow, ColorPurple, ColorRed, ColorBlack} {
		if got := ParseColor(c.String()); got != c {
			t.Fatalf("ParseColor(%q) = %v, want %v", c.String(), got, c)
		}
	}
	if got := ParseColor("magenta"); got != ColorUnknown {
		t.Fatalf("ParseColor(magenta) = %v, want ColorUnknown", got)
	}
}

func TestRhythmicDelay(t *testing.T) {
	if !ColorPurple.RhythmicDelay() {
		t.Fatal("purple drives the rhythmic delay")
	}
	for _, c := range []Color{ColorUnknown, ColorBlue, ColorGreen, ColorYellow, ColorRed, ColorBlack} {
		if c.RhythmicDelay() {
			t.Fatalf("%v should not drive the rhythmic delay", c)
		}
	}
}
