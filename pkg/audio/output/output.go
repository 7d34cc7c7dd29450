// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for beep playback backends
package output

import (
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(format audio.Format) error

	// Play starts a tone without waiting for it to finish
	Play(buf *tone.Buffer) error

	// Stop silences all tones currently playing
	Stop()

	// Close releases output resources
	Close() error
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
