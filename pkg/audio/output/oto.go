// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays each beep on its own oto player and tracks players in flight
package output

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Oto output implementation using oto library
type Oto struct {
	mu     sync.Mutex
	log    *zap.Logger
	otoCtx *oto.Context
	format audio.Format
	active []*oto.Player
	volume int
	muted  bool
	ready  bool
}

// NewOto creates a new Oto output
func NewOto(log *zap.Logger) *Oto {
	if log == nil {
		log = zap.NewNop()
	}
	return &Oto{
		log:    log,
		volume: 100,
	}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if format.BitDepth != 0 && format.BitDepth != 16 {
		o.log.Warn("oto only supports 16-bit output, ignoring requested bit depth",
			zap.Int("bitDepth", format.BitDepth))
	}

	// oto allows one context per process, so a format change keeps the old one
	if o.otoCtx != nil {
		if o.format.SampleRate != format.SampleRate || o.format.Channels != format.Channels {
			o.log.Warn("format change requested but oto cannot reinitialize, keeping existing context",
				zap.Int("sampleRate", o.format.SampleRate), zap.Int("channels", o.format.Channels))
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.ready = true

	o.log.Info("Audio output initialized",
		zap.Int("sampleRate", format.SampleRate), zap.Int("channels", format.Channels))

	return nil
}

// Play starts a beep
func (o *Oto) Play(buf *tone.Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return fmt.Errorf("output not initialized")
	}
	if buf.SampleRate() != o.format.SampleRate {
		return fmt.Errorf("tone sample rate %d does not match output rate %d", buf.SampleRate(), o.format.SampleRate)
	}

	o.pruneLocked()

	player := o.otoCtx.NewPlayer(bytes.NewReader(buf.PCM16()))
	player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	player.Play()
	o.active = append(o.active, player)

	return nil
}

// Stop halts every beep still playing
func (o *Oto) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, p := range o.active {
		p.Pause()
		if err := p.Close(); err != nil {
			o.log.Warn("Error closing player", zap.Error(err))
		}
	}
	o.active = nil
}

// pruneLocked closes players that have finished (must hold o.mu)
func (o *Oto) pruneLocked() {
	kept := o.active[:0]
	for _, p := range o.active {
		if p.IsPlaying() {
			kept = append(kept, p)
			continue
		}
		_ = p.Close()
	}
	o.active = kept
}

// Close releases output resources
func (o *Oto) Close() error {
	o.Stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
		o.ready = false
	}
	return nil
}

// SetVolume sets the volume (0-100) for subsequent beeps
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	o.volume = clampVolume(volume)
	o.mu.Unlock()
	o.log.Info("Volume set", zap.Int("volume", volume))
}

// SetMuted sets mute state for subsequent beeps
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	o.log.Info("Mute changed", zap.Bool("muted", muted))
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}
