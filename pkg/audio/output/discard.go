// ABOUTME: Output that drops audio while counting beeps
// ABOUTME: Used for dry runs on machines without a sound device
package output

import (
	"sync"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
)

// Discard accepts beeps without playing them
type Discard struct {
	mu     sync.Mutex
	open   bool
	played int
	stops  int
}

// NewDiscard creates a silent output
func NewDiscard() *Discard {
	return &Discard{}
}

func (d *Discard) Open(audio.Format) error {
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

func (d *Discard) Play(*tone.Buffer) error {
	d.mu.Lock()
	d.played++
	d.mu.Unlock()
	return nil
}

func (d *Discard) Stop() {
	d.mu.Lock()
	d.stops++
	d.mu.Unlock()
}

func (d *Discard) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// Played returns the number of beeps accepted
func (d *Discard) Played() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.played
}

// Stops returns the number of Stop calls
func (d *Discard) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}
