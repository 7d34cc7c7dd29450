// ABOUTME: Audio output package for playing synthesized beeps
// ABOUTME: Provides the Output interface, an oto implementation and a discard sink
// Package output provides beep playback.
//
// Each Play starts the tone immediately and returns; playback overlaps
// whatever is still sounding. Stop silences every beep in flight.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(buf.Format())
//	err = out.Play(buf)
//	out.Stop()
package output
