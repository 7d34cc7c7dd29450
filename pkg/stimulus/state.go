// ABOUTME: Beep train state and immutable change events
// ABOUTME: Events are snapshots taken at each standard-to-changed transition
package stimulus

import "fmt"

// FalseAlarmIndex marks an Event that carries no real change.
const FalseAlarmIndex = -1

// TrainState is the mutable state of a running beep train.
type TrainState struct {
	BaseFrequencyHz float64
	BaseISIMs       float64
	CurrentDeltaMs  float64 // staircase-controlled ISI shift
	IsFaster        bool
	ChangeOnsetTime float64 // trial-relative seconds
	IsChanged       bool
	ChangeCount     int
	Running         bool
}

// Event is an immutable snapshot of one ISI change.
type Event struct {
	baseFrequencyHz float64
	baseISIMs       float64
	deltaMs         float64
	isFaster        bool
	changeOnsetTime float64
	changeIndex     int
}

// NewEvent creates the record of a tempo change.
func NewEvent(baseFrequencyHz, baseISIMs, deltaMs float64, isFaster bool, changeOnsetTime float64, changeIndex int) Event {
	return Event{
		baseFrequencyHz: baseFrequencyHz,
		baseISIMs:       baseISIMs,
		deltaMs:         deltaMs,
		isFaster:        isFaster,
		changeOnsetTime: changeOnsetTime,
		changeIndex:     changeIndex,
	}
}

// NewFalseAlarmEvent creates the sentinel event logged for a response made
// while the train was steady.
func NewFalseAlarmEvent(state TrainState, at float64) Event {
	return NewEvent(state.BaseFrequencyHz, state.BaseISIMs, 0, false, at, FalseAlarmIndex)
}

func (e Event) BaseFrequencyHz() float64 { return e.baseFrequencyHz }
func (e Event) BaseISIMs() float64       { return e.baseISIMs }
func (e Event) DeltaMs() float64         { return e.deltaMs }
func (e Event) IsFaster() bool           { return e.isFaster }
func (e Event) ChangeOnsetTime() float64 { return e.changeOnsetTime }
func (e Event) ChangeIndex() int         { return e.changeIndex }

// IsFalseAlarm reports whether e is the false alarm sentinel.
func (e Event) IsFalseAlarm() bool { return e.changeIndex == FalseAlarmIndex }

// Direction returns "faster" or "slower".
func (e Event) Direction() string {
	if e.isFaster {
		return "faster"
	}
	return "slower"
}

func (e Event) String() string {
	if e.IsFalseAlarm() {
		return fmt.Sprintf("false-alarm@%.3fs", e.changeOnsetTime)
	}
	return fmt.Sprintf("change#%d %s %.1fms@%.3fs", e.changeIndex, e.Direction(), e.deltaMs, e.changeOnsetTime)
}
