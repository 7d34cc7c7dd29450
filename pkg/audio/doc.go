// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and float-to-PCM sample conversion
// Package audio provides the audio format description and sample conversion
// used by the tone synthesizer and the playback outputs.
//
// Tones are synthesized as float32 samples in [-1,1] and converted once to
// signed 16-bit little-endian PCM, the format the oto backend plays.
//
// Example:
//
//	format := audio.Format{SampleRate: 44100, Channels: 1, BitDepth: 16}
//	pcm := audio.EncodePCM16LE(samples)
package audio
