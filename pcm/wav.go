package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	waveFormatPCM       = 1
	waveFormatIEEEFloat = 3
)

// EncodeWAV16 serializes per-channel sample data as a canonical 16-bit
// PCM WAV file: a RIFF header (size 36+dataBytes), a 16-byte fmt chunk
// and a single data chunk with the channels interleaved sample by sample.
//
// Samples are clamped to [-1, 1] and quantized asymmetrically: negative
// values scale by 32768, positive by 32767.
func EncodeWAV16(channels [][]float64, sampleRate int) ([]byte, error) {
	if len(channels) == 0 {
		return nil, errors.New("pcm: at least one channel required")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pcm: sample rate must be > 0: %d", sampleRate)
	}

	frames := len(channels[0])
	for ch, data := range channels {
		if len(data) != frames {
			return nil, fmt.Errorf("pcm: channel %d has %d frames, want %d", ch, len(data), frames)
		}
	}

	numChannels := len(channels)
	dataBytes := frames * numChannels * 2
	blockAlign := numChannels * 2
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataBytes))

	buf.WriteString("RIFF")
	writeU32(buf, uint32(36+dataBytes))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeU32(buf, 16)
	writeU16(buf, waveFormatPCM)
	writeU16(buf, uint16(numChannels))
	writeU32(buf, uint32(sampleRate))
	writeU32(buf, uint32(byteRate))
	writeU16(buf, uint16(blockAlign))
	writeU16(buf, 16)

	buf.WriteString("data")
	writeU32(buf, uint32(dataBytes))

	for i := range frames {
		for ch := range numChannels {
			writeU16(buf, uint16(Quantize16(channels[ch][i])))
		}
	}

	return buf.Bytes(), nil
}

// Quantize16 clamps x to [-1, 1] and converts it to a signed 16-bit
// sample. The negative half scales by 32768, the positive half by 32767,
// so both full-scale extremes are representable without overflow.
func Quantize16(x float64) int16 {
	if x < -1 {
		x = -1
	}
	if x > 1 {
		x = 1
	}
	if x < 0 {
		return int16(x * 32768)
	}
	return int16(x * 32767)
}

func writeU16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

// DecodeWAV parses a RIFF/WAVE byte stream into a Buffer. Integer PCM at
// 8, 16, 24 or 32 bits and 32-bit IEEE float data are supported; other
// formats return an error and leave the caller free to retry with a
// different source.
func DecodeWAV(data []byte) (*Buffer, error) {
	r := bytes.NewReader(data)

	var riff [4]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("pcm: reading RIFF tag: %w", err)
	}
	if string(riff[:]) != "RIFF" {
		return nil, fmt.Errorf("pcm: not a RIFF stream: %q", riff[:])
	}

	var riffSize uint32
	if err := binary.Read(r, binary.LittleEndian, &riffSize); err != nil {
		return nil, fmt.Errorf("pcm: reading RIFF size: %w", err)
	}

	var wave [4]byte
	if _, err := io.ReadFull(r, wave[:]); err != nil {
		return nil, fmt.Errorf("pcm: reading WAVE tag: %w", err)
	}
	if string(wave[:]) != "WAVE" {
		return nil, fmt.Errorf("pcm: not a WAVE stream: %q", wave[:])
	}

	var (
		format      uint16
		numChannels int
		sampleRate  int
		bits        int
		raw         []byte
		haveFmt     bool
	)

	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("pcm: reading chunk id: %w", err)
		}

		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, fmt.Errorf("pcm: reading chunk size: %w", err)
		}

		body := make([]byte, chunkSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("pcm: reading %q chunk: %w", chunkID[:], err)
		}
		// Chunks are word-aligned; skip the pad byte of odd-sized chunks.
		if chunkSize%2 == 1 {
			_, _ = r.Seek(1, io.SeekCurrent)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("pcm: fmt chunk too short: %d bytes", len(body))
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			numChannels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			raw = body
		}
	}

	if !haveFmt {
		return nil, errors.New("pcm: missing fmt chunk")
	}
	if raw == nil {
		return nil, errors.New("pcm: missing data chunk")
	}
	if numChannels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("pcm: invalid fmt: %d channels at %d Hz", numChannels, sampleRate)
	}

	samples, err := decodeSamples(raw, format, bits)
	if err != nil {
		return nil, err
	}

	frames := len(samples) / numChannels
	channels := make([][]float64, numChannels)
	for ch := range channels {
		data := make([]float64, frames)
		for i := range frames {
			data[i] = samples[i*numChannels+ch]
		}
		channels[ch] = data
	}

	return FromChannels(channels, float64(sampleRate))
}

func decodeSamples(raw []byte, format uint16, bits int) ([]float64, error) {
	switch {
	case format == waveFormatPCM && bits == 16:
		out := make([]float64, len(raw)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			// Mirror the asymmetric quantization: negative samples
			// span 32768 steps, positive samples 32767.
			if v < 0 {
				out[i] = float64(v) / 32768
			} else {
				out[i] = float64(v) / 32767
			}
		}
		return out, nil
	case format == waveFormatPCM && bits == 8:
		out := make([]float64, len(raw))
		for i, b := range raw {
			out[i] = (float64(b) - 128) / 128
		}
		return out, nil
	case format == waveFormatPCM && bits == 24:
		out := make([]float64, len(raw)/3)
		for i := range out {
			v := int32(raw[i*3]) | int32(raw[i*3+1])<<8 | int32(raw[i*3+2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			out[i] = float64(v) / 8388608
		}
		return out, nil
	case format == waveFormatPCM && bits == 32:
		out := make([]float64, len(raw)/4)
		for i := range out {
			v := int32(binary.LittleEndian.Uint32(raw[i*4:]))
			out[i] = float64(v) / 2147483648
		}
		return out, nil
	case format == waveFormatIEEEFloat && bits == 32:
		out := make([]float64, len(raw)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("pcm: unsupported format %d at %d bits", format, bits)
	}
}
