// ABOUTME: Trial-relative monotonic clock
// ABOUTME: Reports seconds since trial start and provides cancellable sleeps
package clock

import (
	"context"
	"sync"
	"time"
)

// Trial measures time since the current trial began
type Trial struct {
	mu    sync.RWMutex
	start time.Time
	now   func() time.Time
}

// NewTrial creates a clock. It reads zero until Start is called.
func NewTrial() *Trial {
	return &Trial{now: time.Now}
}

// Start resets the trial origin to now
func (c *Trial) Start() {
	c.mu.Lock()
	c.start = c.now()
	c.mu.Unlock()
}

// Now returns seconds since Start. time.Since uses the monotonic reading so
// wall clock adjustments do not affect it.
func (c *Trial) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.start.IsZero() {
		return 0
	}
	return c.now().Sub(c.start).Seconds()
}

// Sleep suspends for d or until ctx is done
func (c *Trial) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep waits for d, returning ctx.Err() if ctx finishes first
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
