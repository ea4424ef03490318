package engine

import (
	"math"
	"testing"

	"github.com/cloph-dsp/paint-sonic-strokes/profile"
)

func TestGrainEnvShape(t *testing.T) {
	env := newGrainEnv(0.1, 100, 2000)

	if got := env.at(0); got != 0 {
		t.Fatalf("at(0) = %g, want 0", got)
	}
	if got := env.at(env.attack); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("at(attack) = %g, want peak 0.1", got)
	}
	if got := env.at(env.dur); got != 0 {
		t.Fatalf("at(dur) = %g, want 0", got)
	}

	// Rising through the attack, bounded by the peak everywhere.
	prev := 0.0
	for age := 1; age <= env.attack; age++ {
		v := env.at(age)
		if v < prev {
			t.Fatalf("attack not monotone at age %d: %g < %g", age, v, prev)
		}
		if v > 0.1+1e-12 {
			t.Fatalf("at(%d) = %g exceeds peak", age, v)
		}
		prev = v
	}

	// Non-increasing from the peak to the end, never negative.
	prev = env.at(env.attack)
	for age := env.attack + 1; age < env.dur; age++ {
		v := env.at(age)
		if v > prev+1e-12 {
			t.Fatalf("decay not monotone at age %d: %g > %g", age, v, prev)
		}
		if v < 0 {
			t.Fatalf("at(%d) = %g negative", age, v)
		}
		prev = v
	}

	// The final tail value sits at the floor, close enough to silence
	// that ending the grain there cannot click.
	last := env.at(env.dur - 1)
	if last > 0.1*nearSilence {
		t.Fatalf("tail end = %g, want <= %g", last, 0.1*nearSilence)
	}
}

func TestGrainEnvDegenerateDurations(t *testing.T) {
	// Tiny and inverted shapes must still produce a valid envelope.
	for _, tc := range []struct{ attack, dur int }{
		{0, 0}, {1, 1}, {500, 10}, {10, 3},
	} {
		env := newGrainEnv(0.1, tc.attack, tc.dur)
		if env.dur < 3 {
			t.Fatalf("newGrainEnv(%d, %d): dur = %d, want >= 3", tc.attack, tc.dur, env.dur)
		}
		if env.attack < 1 || env.attack >= env.tailStart || env.tailStart >= env.dur {
			t.Fatalf("newGrainEnv(%d, %d): bad phase order attack=%d tailStart=%d dur=%d",
				tc.attack, tc.dur, env.attack, env.tailStart, env.dur)
		}
		for age := 0; age <= env.dur; age++ {
			if v := env.at(age); v < 0 || v > 0.1+1e-12 {
				t.Fatalf("newGrainEnv(%d, %d): at(%d) = %g out of range", tc.attack, tc.dur, age, v)
			}
		}
	}
}

func TestGrainEnvSendRingsLonger(t *testing.T) {
	env := newGrainEnv(0.1, 50, 1000)

	for age := 0; age < env.attack; age++ {
		if env.sendAt(age) != env.at(age) {
			t.Fatalf("send attack diverges at age %d", age)
		}
	}
	for age := env.attack; age < env.dur; age++ {
		if env.sendAt(age)+1e-12 < env.at(age) {
			t.Fatalf("send envelope below dry at age %d: %g < %g", age, env.sendAt(age), env.at(age))
		}
	}
}

func TestPlaybackRateRange(t *testing.T) {
	neutral := profile.Resolve(profile.ColorUnknown, 20)

	if got := playbackRate(0, neutral); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("rate at pitch 0 = %g, want 0.5", got)
	}
	if got := playbackRate(1, neutral); math.Abs(got-2) > 1e-12 {
		t.Fatalf("rate at pitch 1 = %g, want 2", got)
	}

	// A profile that would push the rate to zero clamps, and the clamp
	// holds through a sub-unity rate multiplier as well.
	sink := neutral
	sink.RateOffset = -10
	if got := playbackRate(0.5, sink); got != minPlaybackRate {
		t.Fatalf("offset clamp: rate = %g, want %g", got, minPlaybackRate)
	}
	sink.RateMul = 0.5
	if got := playbackRate(0.5, sink); got < minPlaybackRate {
		t.Fatalf("multiplier clamp: rate = %g, want >= %g", got, minPlaybackRate)
	}
}

func TestGrainSecondsBounds(t *testing.T) {
	const bufDur = 1.0
	margin := math.Max(0.002, 0.0125*bufDur)

	colors := []profile.Color{
		profile.ColorUnknown, profile.ColorBlue, profile.ColorGreen,
		profile.ColorYellow, profile.ColorPurple, profile.ColorRed, profile.ColorBlack,
	}
	for _, c := range colors {
		for brush := 5.0; brush <= 50; brush += 5 {
			for _, density := range []float64{0, 1, 5, 10, 100} {
				for _, synced := range []bool{false, true} {
					p := profile.Resolve(c, brush)
					dur := grainSeconds(brush, density, bufDur, p, synced)
					if dur < 0.01 || dur > bufDur-margin {
						t.Fatalf("%v brush %g density %g synced %v: dur %g out of [0.01, %g]",
							c, brush, density, synced, dur, bufDur-margin)
					}
				}
			}
		}
	}
}

func TestGrainSecondsDensityShortensOnlyFreeMode(t *testing.T) {
	p := profile.Resolve(profile.ColorGreen, 25)

	slow := grainSeconds(25, 0, 2, p, false)
	fast := grainSeconds(25, 8, 2, p, false)
	if fast >= slow {
		t.Fatalf("free mode: fast gesture %g should be shorter than slow %g", fast, slow)
	}

	syncedSlow := grainSeconds(25, 0, 2, p, true)
	syncedFast := grainSeconds(25, 8, 2, p, true)
	if syncedFast != syncedSlow {
		t.Fatalf("synced mode: density must not change duration, %g vs %g", syncedFast, syncedSlow)
	}
}

func TestGrainSecondsTinyBuffer(t *testing.T) {
	p := profile.Resolve(profile.ColorUnknown, 50)

	dur := grainSeconds(50, 0, 0.02, p, true)
	if dur > 0.85*0.02 {
		t.Fatalf("tiny buffer: dur %g exceeds 85%% of buffer", dur)
	}
	if dur <= 0 {
		t.Fatalf("tiny buffer: dur %g must stay positive", dur)
	}
}

func TestPanGainsEqualPower(t *testing.T) {
	for _, pan := range []float64{-1, -0.5, 0, 0.5, 1} {
		g := panGains(pan, 2)
		if len(g) != 2 {
			t.Fatalf("pan %g: %d gains, want 2", pan, len(g))
		}
		power := g[0]*g[0] + g[1]*g[1]
		if math.Abs(power-1) > 1e-9 {
			t.Fatalf("pan %g: power %g, want 1", pan, power)
		}
	}

	center := panGains(0, 2)
	if math.Abs(center[0]-center[1]) > 1e-12 {
		t.Fatalf("center pan gains %g/%g should match", center[0], center[1])
	}

	mono := panGains(0.7, 1)
	if len(mono) != 1 || mono[0] != 1 {
		t.Fatalf("mono pan gains = %v, want [1]", mono)
	}
}
