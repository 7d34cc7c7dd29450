// ABOUTME: Sine tone generator with cosine onset/offset ramps
// ABOUTME: Produces an immutable sample buffer shared by every beep
package tone

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
)

// sampleEpsilon absorbs float error in duration*rate products such as
// 0.05*44100 before rounding up to whole samples.
const sampleEpsilon = 1e-9

// Buffer is a synthesized mono tone. It is read-only after creation.
type Buffer struct {
	samples    []float32
	sampleRate int
	rampLen    int

	pcmOnce sync.Once
	pcm     []byte
}

// Synthesize generates a sine tone of the given duration with cosine ramps
// of rampDurationMs at both ends.
func Synthesize(durationSec, frequencyHz, amplitude, rampDurationMs float64, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be > 0, got %d", stimulus.ErrInvalidConfig, sampleRate)
	}
	if durationSec < 0 {
		return nil, fmt.Errorf("%w: tone duration must be >= 0, got %v", stimulus.ErrInvalidConfig, durationSec)
	}

	sampleCount := SampleCount(durationSec, sampleRate)
	rampLen := RampSamples(rampDurationMs, sampleRate, sampleCount)

	samples := make([]float32, sampleCount)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		sample := amplitude * math.Sin(2*math.Pi*frequencyHz*t)

		if i < rampLen {
			// Rising ramp
			fraction := float64(i) / float64(rampLen)
			sample *= 0.5 * (1 - math.Cos(math.Pi*fraction))
		} else if i >= sampleCount-rampLen {
			// Falling ramp
			fraction := float64(i-(sampleCount-rampLen)) / float64(rampLen)
			sample *= 0.5 * (1 + math.Cos(math.Pi*fraction))
		}

		samples[i] = float32(sample)
	}

	return &Buffer{
		samples:    samples,
		sampleRate: sampleRate,
		rampLen:    rampLen,
	}, nil
}

// ForConfig synthesizes the session beep described by cfg.
func ForConfig(cfg stimulus.Config, sampleRate int) (*Buffer, error) {
	return Synthesize(cfg.BeepDurationMs/1000, cfg.BaseFrequencyHz, cfg.Amplitude, cfg.RampDurationMs, sampleRate)
}

// SampleCount returns ceil(durationSec*sampleRate), at least 1.
func SampleCount(durationSec float64, sampleRate int) int {
	n := int(math.Ceil(durationSec*float64(sampleRate) - sampleEpsilon))
	if n < 1 {
		n = 1
	}
	return n
}

// RampSamples returns the ramp length in samples, capped at half the tone.
func RampSamples(rampDurationMs float64, sampleRate, sampleCount int) int {
	n := int(math.Ceil(rampDurationMs/1000*float64(sampleRate) - sampleEpsilon))
	if n < 0 {
		n = 0
	}
	return min(n, sampleCount/2)
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.samples) }

// At returns sample i.
func (b *Buffer) At(i int) float32 { return b.samples[i] }

// RampLen returns the number of samples in each ramp.
func (b *Buffer) RampLen() int { return b.rampLen }

// SampleRate returns the rate the tone was synthesized at.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Format returns the playback format of the tone.
func (b *Buffer) Format() audio.Format { return audio.Mono16(b.sampleRate) }

// Duration returns the playback length.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

// Samples returns a copy of the samples.
func (b *Buffer) Samples() []float32 {
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// PCM16 returns the tone as signed 16-bit little-endian PCM. The encoding is
// computed on first use and shared; callers must not modify it.
func (b *Buffer) PCM16() []byte {
	b.pcmOnce.Do(func() {
		b.pcm = audio.EncodePCM16LE(b.samples)
	})
	return b.pcm
}
