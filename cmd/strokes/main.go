// Command strokes drives the granular engine with a scripted gesture
// sweep over a WAV sample, either rendering offline to a capture file or
// playing live on the default audio device.
//
// Usage:
//
//	strokes -in sample.wav -out take.wav
//	strokes -in sample.wav -play -seconds 10 -color purple -sync -bpm 96
//
// The sweep moves left to right across a virtual canvas while the pitch
// axis follows a slow sine, which exercises position, pitch and density
// mapping the way a real stroke does.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/cloph-dsp/paint-sonic-strokes/engine"
	"github.com/cloph-dsp/paint-sonic-strokes/gesture"
	"github.com/cloph-dsp/paint-sonic-strokes/profile"
)

const (
	canvasWidth  = 800.0
	canvasHeight = 600.0
)

func main() {
	in := flag.String("in", "", "source WAV file (required)")
	out := flag.String("out", "take.wav", "capture output file (offline mode)")
	play := flag.Bool("play", false, "play live on the default audio device instead of rendering offline")
	seconds := flag.Float64("seconds", 8, "performance length")
	colorName := flag.String("color", "blue", "stroke color: blue, green, yellow, purple, red, black")
	brush := flag.Float64("brush", 18, "brush size")
	bpm := flag.Float64("bpm", 120, "tempo in beats per minute")
	sync := flag.Bool("sync", false, "quantize grain starts to the tempo grid")
	grainDiv := flag.Int("grain-div", 4, "grain quantization subdivision")
	delayDiv := flag.Int("delay-div", 4, "delay time subdivision")
	volume := flag.Float64("volume", 0.8, "master volume in [0, 1]")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*in, *out, *play, *seconds, *colorName, *brush, *bpm, *sync, *grainDiv, *delayDiv, *volume, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "strokes:", err)
		os.Exit(1)
	}
}

func run(in, out string, play bool, seconds float64, colorName string, brush, bpm float64, sync bool, grainDiv, delayDiv int, volume float64, seed uint64) error {
	source, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	e, err := engine.New(
		engine.WithLogger(slog.Default()),
		engine.WithSeed(seed),
	)
	if err != nil {
		return err
	}

	if err := e.Initialize(); err != nil {
		return err
	}
	defer e.Dispose()

	if err := e.LoadSource(source); err != nil {
		return err
	}

	e.SetVolume(volume)
	e.SetBPM(bpm)
	e.SetTempoSync(sync)
	e.SetGrainSubdivision(grainDiv)
	e.SetDelaySubdivision(delayDiv)
	e.Start()

	color := profile.ParseColor(colorName)
	if color == profile.ColorUnknown {
		fmt.Fprintf(os.Stderr, "strokes: unknown color %q, using neutral profile\n", colorName)
	}

	if play {
		return runLive(e, seconds, color, brush)
	}
	return runOffline(e, out, seconds, color, brush)
}

// sweepEvent produces the scripted gesture at time t.
func sweepEvent(t, seconds float64, color profile.Color, brush float64) gesture.Event {
	progress := t / seconds
	return gesture.Event{
		X:         progress * canvasWidth,
		Y:         canvasHeight * (0.5 - 0.4*math.Sin(2*math.Pi*progress*1.5)),
		Speed:     120 + 220*math.Abs(math.Sin(2*math.Pi*progress*3)),
		BrushSize: brush,
		Color:     color,
	}
}

func runOffline(e *engine.Engine, out string, seconds float64, color profile.Color, brush float64) error {
	const triggerInterval = 0.03

	if err := e.StartRecording(); err != nil {
		return err
	}

	block := make([]float32, 512*e.Channels())
	blockSeconds := 512 / e.SampleRate()

	nextTrigger := 0.0
	for t := 0.0; t < seconds; t += blockSeconds {
		for nextTrigger <= t {
			ev := sweepEvent(nextTrigger, seconds, color, brush)
			e.TriggerGrain(gesture.Map(ev, canvasWidth, canvasHeight), ev.BrushSize)
			nextTrigger += triggerInterval
		}
		e.Render(block)
	}

	e.Stop()

	data, err := e.StopRecording()
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	return nil
}

func runLive(e *engine.Engine, seconds float64, color profile.Color, brush float64) error {
	p, err := engine.NewPlayer(e)
	if err != nil {
		return err
	}
	defer p.Close()

	p.Play()

	start := time.Now()
	ticker := time.NewTicker(30 * time.Millisecond)
	defer ticker.Stop()

	for now := range ticker.C {
		t := now.Sub(start).Seconds()
		if t >= seconds {
			break
		}

		ev := sweepEvent(t, seconds, color, brush)
		e.TriggerGrain(gesture.Map(ev, canvasWidth, canvasHeight), ev.BrushSize)
	}

	e.Stop()
	return nil
}
