// ABOUTME: Tone synthesis package
// ABOUTME: Generates the ramped sine beep replayed for every stimulus
// Package tone synthesizes the fixed beep used by the beep train.
//
// A Buffer is computed once per session and never modified; the same
// Buffer (and its cached PCM encoding) is handed to the output for every
// beep.
//
// Example:
//
//	buf, err := tone.Synthesize(0.05, 500, 0.8, 15, 44100)
package tone
