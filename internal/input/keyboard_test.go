// ABOUTME: Tests for the latching response keyboard
// ABOUTME: Tests press latching, expiry, release waits and start requests
package input

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
)

type manualTime struct {
	mu sync.Mutex
	t  time.Time
}

func (m *manualTime) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualTime) advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

func newTestKeyboard() (*Keyboard, *manualTime) {
	mt := &manualTime{t: time.Unix(1000, 0)}
	k := NewKeyboard(100 * time.Millisecond)
	k.now = mt.now
	return k, mt
}

func TestNewKeyboardDefaultHold(t *testing.T) {
	k := NewKeyboard(0)
	if k.hold != DefaultHold {
		t.Errorf("expected hold %v, got %v", DefaultHold, k.hold)
	}
}

func TestPressLatchesUntilHoldExpires(t *testing.T) {
	k, mt := newTestKeyboard()

	if l, r := k.Pressed(); l || r {
		t.Fatal("expected no keys down initially")
	}

	k.Press(stimulus.SideLeft)
	if l, r := k.Pressed(); !l || r {
		t.Errorf("Pressed() = %v, %v after left press", l, r)
	}

	mt.advance(99 * time.Millisecond)
	if l, _ := k.Pressed(); !l {
		t.Error("left released before hold window elapsed")
	}

	mt.advance(time.Millisecond)
	if l, _ := k.Pressed(); l {
		t.Error("left still down after hold window")
	}
}

func TestRepeatRefreshesLatch(t *testing.T) {
	k, mt := newTestKeyboard()

	k.Press(stimulus.SideRight)
	mt.advance(80 * time.Millisecond)
	k.Press(stimulus.SideRight)
	mt.advance(80 * time.Millisecond)

	if _, r := k.Pressed(); !r {
		t.Error("repeat press did not extend latch")
	}
}

func TestRelease(t *testing.T) {
	k, _ := newTestKeyboard()
	k.Press(stimulus.SideLeft)
	k.Press(stimulus.SideRight)
	k.Release(stimulus.SideLeft)

	if l, r := k.Pressed(); l || !r {
		t.Errorf("Pressed() = %v, %v after left release", l, r)
	}
}

func TestWaitReleasedReturnsWhenUp(t *testing.T) {
	k := NewKeyboard(20 * time.Millisecond)
	k.Press(stimulus.SideLeft)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := k.WaitReleased(ctx); err != nil {
		t.Fatalf("WaitReleased: %v", err)
	}
	if l, r := k.Pressed(); l || r {
		t.Error("keys still down after WaitReleased")
	}
}

func TestWaitReleasedHonoursContext(t *testing.T) {
	k, _ := newTestKeyboard()
	k.Press(stimulus.SideLeft)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := k.WaitReleased(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestStartRequestsCoalesce(t *testing.T) {
	k, _ := newTestKeyboard()
	k.RequestStart()
	k.RequestStart()

	select {
	case <-k.StartRequests():
	default:
		t.Fatal("expected a pending start request")
	}

	select {
	case <-k.StartRequests():
		t.Fatal("expected duplicate start request to be dropped")
	default:
	}
}
