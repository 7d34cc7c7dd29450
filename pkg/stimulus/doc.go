// ABOUTME: Shared data model for the rhythmic beep train
// ABOUTME: Stimulus configuration, train state, change events and outcomes
// Package stimulus defines the values that flow between the beep train,
// the response classifier and the persistence sinks.
//
// A Config is fixed for a whole session. The beep train owns a TrainState
// while a trial runs and emits one Event per tempo change. Each tick that
// carries a response resolves to an Outcome (Hit, Miss or FalseAlarm),
// which the classifier turns into ResponseFields for persistence.
//
// Example:
//
//	cfg := stimulus.DefaultConfig()
//	isi := stimulus.ChangedISIMs(cfg, 50, true) // 50 ms faster, floored to 60
package stimulus
