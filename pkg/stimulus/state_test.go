// ABOUTME: Tests for change events and outcome helpers
// ABOUTME: Tests the false alarm sentinel and response encodings
package stimulus

import "testing"

func TestNewEvent(t *testing.T) {
	evt := NewEvent(500, 100, 42, true, 3.25, 2)

	if evt.BaseFrequencyHz() != 500 || evt.BaseISIMs() != 100 {
		t.Errorf("unexpected base values: %v %v", evt.BaseFrequencyHz(), evt.BaseISIMs())
	}
	if evt.DeltaMs() != 42 || !evt.IsFaster() {
		t.Errorf("unexpected change values: %v %v", evt.DeltaMs(), evt.IsFaster())
	}
	if evt.ChangeOnsetTime() != 3.25 || evt.ChangeIndex() != 2 {
		t.Errorf("unexpected onset/index: %v %v", evt.ChangeOnsetTime(), evt.ChangeIndex())
	}
	if evt.IsFalseAlarm() {
		t.Error("real change reported as false alarm")
	}
	if evt.Direction() != "faster" {
		t.Errorf("expected faster, got %s", evt.Direction())
	}
}

func TestNewFalseAlarmEvent(t *testing.T) {
	state := TrainState{BaseFrequencyHz: 500, BaseISIMs: 100, CurrentDeltaMs: 80, IsFaster: true}

	evt := NewFalseAlarmEvent(state, 1.5)

	if !evt.IsFalseAlarm() || evt.ChangeIndex() != FalseAlarmIndex {
		t.Errorf("expected sentinel index, got %d", evt.ChangeIndex())
	}
	if evt.DeltaMs() != 0 {
		t.Errorf("expected zero delta, got %v", evt.DeltaMs())
	}
	if evt.IsFaster() {
		t.Error("sentinel must not carry a direction")
	}
	if evt.ChangeOnsetTime() != 1.5 {
		t.Errorf("expected onset 1.5, got %v", evt.ChangeOnsetTime())
	}
	if evt.BaseFrequencyHz() != 500 || evt.BaseISIMs() != 100 {
		t.Error("sentinel should carry the base tone parameters")
	}
}

func TestResponseOf(t *testing.T) {
	if ResponseOf(true) != ResponseFaster || int(ResponseFaster) != 1 {
		t.Error("faster should encode as 1")
	}
	if ResponseOf(false) != ResponseSlower || int(ResponseSlower) != 0 {
		t.Error("slower should encode as 0")
	}
	if int(ResponseNone) != -1 || ResponseNone.String() != "none" {
		t.Error("no response should encode as -1")
	}
}

func TestSideOf(t *testing.T) {
	tests := []struct {
		left, right bool
		expected    Side
	}{
		{true, false, SideLeft},
		{false, true, SideRight},
		{true, true, SideLeft},
	}

	for _, tt := range tests {
		if got := SideOf(tt.left, tt.right); got != tt.expected {
			t.Errorf("SideOf(%v,%v): expected %v, got %v", tt.left, tt.right, tt.expected, got)
		}
	}
}
