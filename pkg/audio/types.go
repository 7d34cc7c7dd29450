// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats and float/PCM sample conversion
package audio

import "encoding/binary"

const (
	// DefaultSampleRate is the rate every beep is synthesized at.
	DefaultSampleRate = 44100

	// DefaultChannels is mono; beeps are not spatialized.
	DefaultChannels = 1

	MaxInt16 = 32767
	MinInt16 = -32768
)

// Format describes a PCM stream
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Mono16 returns a mono 16-bit format at the given rate
func Mono16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: DefaultChannels, BitDepth: 16}
}

// FloatToInt16 converts a float sample in [-1,1] to int16 with clipping
func FloatToInt16(sample float32) int16 {
	scaled := float64(sample) * MaxInt16
	if scaled > MaxInt16 {
		return MaxInt16
	}
	if scaled < MinInt16 {
		return MinInt16
	}
	return int16(scaled)
}

// Int16ToFloat converts an int16 sample back to [-1,1]
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / MaxInt16
}

// EncodePCM16LE converts float samples to signed 16-bit little-endian bytes
func EncodePCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(FloatToInt16(s)))
	}
	return out
}
