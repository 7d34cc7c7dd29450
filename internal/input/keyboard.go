// ABOUTME: Latching response keyboard fed by terminal key events
// ABOUTME: Presses stay down for a hold window since terminals report no releases
package input

import (
	"context"
	"sync"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
)

const (
	// DefaultHold is how long a key press reads as held. Terminal key repeat
	// refreshes the latch while a key stays down.
	DefaultHold = 150 * time.Millisecond

	pollInterval = 5 * time.Millisecond
)

// Keyboard latches left/right presses and queues start requests
type Keyboard struct {
	mu        sync.Mutex
	hold      time.Duration
	now       func() time.Time
	downUntil [2]time.Time

	starts chan struct{}
}

// NewKeyboard creates a keyboard with the given hold window. A zero hold
// uses DefaultHold.
func NewKeyboard(hold time.Duration) *Keyboard {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Keyboard{
		hold:   hold,
		now:    time.Now,
		starts: make(chan struct{}, 1),
	}
}

// Press records a key press on side
func (k *Keyboard) Press(side stimulus.Side) {
	k.mu.Lock()
	k.downUntil[side] = k.now().Add(k.hold)
	k.mu.Unlock()
}

// Release clears a latched press immediately
func (k *Keyboard) Release(side stimulus.Side) {
	k.mu.Lock()
	k.downUntil[side] = time.Time{}
	k.mu.Unlock()
}

// Pressed reports which buttons are currently down
func (k *Keyboard) Pressed() (left, right bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	return now.Before(k.downUntil[stimulus.SideLeft]), now.Before(k.downUntil[stimulus.SideRight])
}

// WaitReleased blocks until both buttons are up or ctx is done
func (k *Keyboard) WaitReleased(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if left, right := k.Pressed(); !left && !right {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RequestStart queues a start request. Requests made while one is already
// pending are dropped.
func (k *Keyboard) RequestStart() {
	select {
	case k.starts <- struct{}{}:
	default:
	}
}

// StartRequests delivers queued start requests
func (k *Keyboard) StartRequests() <-chan struct{} {
	return k.starts
}
