package pcm

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAV16HeaderLayout(t *testing.T) {
	const (
		frames     = 301
		channels   = 2
		sampleRate = 48000
	)

	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
		for i := range data[ch] {
			data[ch][i] = math.Sin(2 * math.Pi * 440 * float64(i) / sampleRate)
		}
	}

	out, err := EncodeWAV16(data, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV16() error = %v", err)
	}

	dataBytes := frames * channels * 2
	if len(out) != 44+dataBytes {
		t.Fatalf("total size = %d, want %d", len(out), 44+dataBytes)
	}

	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad container tags: %q %q", out[0:4], out[8:12])
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+dataBytes) {
		t.Fatalf("RIFF size = %d, want %d", got, 36+dataBytes)
	}

	if string(out[12:16]) != "fmt " {
		t.Fatalf("bad fmt tag: %q", out[12:16])
	}
	if got := binary.LittleEndian.Uint16(out[20:22]); got != 1 {
		t.Fatalf("format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != channels {
		t.Fatalf("channels = %d, want %d", got, channels)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != sampleRate {
		t.Fatalf("sample rate = %d, want %d", got, sampleRate)
	}
	if got := binary.LittleEndian.Uint32(out[28:32]); got != sampleRate*channels*2 {
		t.Fatalf("byte rate = %d, want %d", got, sampleRate*channels*2)
	}
	if got := binary.LittleEndian.Uint16(out[32:34]); got != channels*2 {
		t.Fatalf("block align = %d, want %d", got, channels*2)
	}
	if got := binary.LittleEndian.Uint16(out[34:36]); got != 16 {
		t.Fatalf("bits = %d, want 16", got)
	}

	if string(out[36:40]) != "data" {
		t.Fatalf("bad data tag: %q", out[36:40])
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(dataBytes) {
		t.Fatalf("data size = %d, want %d", got, dataBytes)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	const sampleRate = 44100

	left := []float64{0, 0.25, -0.25, 0.9999, -1, 1, -0.5}
	right := []float64{0.1, -0.1, 0.5, -0.9999, 1, -1, 0.75}

	out, err := EncodeWAV16([][]float64{left, right}, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV16() error = %v", err)
	}

	buf, err := DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}

	if buf.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", buf.Channels())
	}
	if buf.Frames() != len(left) {
		t.Fatalf("frames = %d, want %d", buf.Frames(), len(left))
	}
	if buf.SampleRate() != sampleRate {
		t.Fatalf("sample rate = %f, want %d", buf.SampleRate(), sampleRate)
	}

	// One LSB at 16 bits.
	const lsb = 1.0 / 32768

	for ch, want := range [][]float64{left, right} {
		got := buf.Channel(ch)
		for i := range want {
			if diff := math.Abs(got[i] - want[i]); diff > lsb {
				t.Fatalf("channel %d sample %d: got %g, want %g (+/- %g)", ch, i, got[i], want[i], lsb)
			}
		}
	}
}

func TestDecode16BitMirrorsQuantization(t *testing.T) {
	// Positive and negative halves use different scale factors on
	// encode; decode must divide by the matching factor or samples near
	// positive full scale drift by ~2 LSB.
	samples := []float64{1, 0.9999, 0.5, -0.5, -1}

	out, err := EncodeWAV16([][]float64{samples}, 44100)
	if err != nil {
		t.Fatalf("EncodeWAV16() error = %v", err)
	}

	buf, err := DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}

	const lsb = 1.0 / 32768
	got := buf.Channel(0)
	for i, want := range samples {
		if diff := math.Abs(got[i] - want); diff > lsb {
			t.Fatalf("sample %d: got %.9f, want %.9f, diff %g > 1 LSB %g", i, got[i], want, diff, lsb)
		}
	}

	// The full-scale extremes are exact in both directions.
	if got[0] != 1 {
		t.Fatalf("decoded +1 = %.9f, want exactly 1", got[0])
	}
	if got[4] != -1 {
		t.Fatalf("decoded -1 = %.9f, want exactly -1", got[4])
	}
}

func TestQuantize16Extremes(t *testing.T) {
	cases := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{-1, -32768},
		{1, 32767},
		{-2, -32768},
		{2, 32767},
		{0.5, 16383},
		{-0.5, -16384},
	}
	for _, tc := range cases {
		if got := Quantize16(tc.in); got != tc.want {
			t.Fatalf("Quantize16(%g) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("not audio at all")); err == nil {
		t.Fatal("DecodeWAV() expected error for non-RIFF input")
	}
	if _, err := DecodeWAV(nil); err == nil {
		t.Fatal("DecodeWAV() expected error for empty input")
	}
}

func TestEncodeWAV16RejectsMismatchedChannels(t *testing.T) {
	_, err := EncodeWAV16([][]float64{make([]float64, 4), make([]float64, 5)}, 44100)
	if err == nil {
		t.Fatal("EncodeWAV16() expected error for mismatched channel lengths")
	}
}
