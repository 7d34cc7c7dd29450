// ABOUTME: Session-scoped stimulus configuration
// ABOUTME: Holds tone and timing parameters plus delta clamping and ISI flooring
package stimulus

import (
	"fmt"
	"math"
	"time"
)

// MinISIGapMs is the silent gap kept between the end of one beep and the
// onset of the next when a faster change would otherwise overlap them.
const MinISIGapMs = 10.0

// Config describes the beep train for one session.
type Config struct {
	BaseFrequencyHz float64
	BeepDurationMs  float64
	BaseISIMs       float64
	Amplitude       float64
	RampDurationMs  float64

	InitialDeltaMs float64
	MinDeltaMs     float64
	MaxDeltaMs     float64

	MinStandardPeriodSec float64
	MaxStandardPeriodSec float64
	DetectionWindowSec   float64

	StandardRepetitions int
}

// DefaultConfig returns the parameters used by the tempo detection experiment.
func DefaultConfig() Config {
	return Config{
		BaseFrequencyHz:      500,
		BeepDurationMs:       50,
		BaseISIMs:            100,
		Amplitude:            0.8,
		RampDurationMs:       15,
		InitialDeltaMs:       50,
		MinDeltaMs:           1,
		MaxDeltaMs:           550,
		MinStandardPeriodSec: 0.5,
		MaxStandardPeriodSec: 1.5,
		DetectionWindowSec:   0.8,
		StandardRepetitions:  5,
	}
}

// Validate checks ranges. All durations must be positive and the amplitude
// must lie in [0,1].
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"base frequency", c.BaseFrequencyHz},
		{"beep duration", c.BeepDurationMs},
		{"base ISI", c.BaseISIMs},
		{"ramp duration", c.RampDurationMs},
		{"min delta", c.MinDeltaMs},
		{"max delta", c.MaxDeltaMs},
		{"min standard period", c.MinStandardPeriodSec},
		{"max standard period", c.MaxStandardPeriodSec},
		{"detection window", c.DetectionWindowSec},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.Amplitude < 0 || c.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude must be in [0,1], got %v", ErrInvalidConfig, c.Amplitude)
	}
	if c.MinDeltaMs > c.MaxDeltaMs {
		return fmt.Errorf("%w: min delta %v exceeds max delta %v", ErrInvalidConfig, c.MinDeltaMs, c.MaxDeltaMs)
	}
	if c.MinStandardPeriodSec > c.MaxStandardPeriodSec {
		return fmt.Errorf("%w: min standard period %v exceeds max %v",
			ErrInvalidConfig, c.MinStandardPeriodSec, c.MaxStandardPeriodSec)
	}
	if c.StandardRepetitions < 0 {
		return fmt.Errorf("%w: standard repetitions must be >= 0, got %d", ErrInvalidConfig, c.StandardRepetitions)
	}

	return nil
}

// ClampDelta limits d to [MinDeltaMs, MaxDeltaMs].
func (c Config) ClampDelta(d float64) float64 {
	if d < c.MinDeltaMs {
		return c.MinDeltaMs
	}
	if d > c.MaxDeltaMs {
		return c.MaxDeltaMs
	}
	return d
}

// MinChangedISIMs is the shortest ISI a change may produce.
func (c Config) MinChangedISIMs() float64 {
	return c.BeepDurationMs + MinISIGapMs
}

// BaseISI returns the steady inter-stimulus interval.
func (c Config) BaseISI() time.Duration {
	return Millis(c.BaseISIMs)
}

// ChangedISIMs returns the perturbed ISI for a change of deltaMs in the given
// direction. The result never drops below MinChangedISIMs.
func ChangedISIMs(c Config, deltaMs float64, faster bool) float64 {
	isi := c.BaseISIMs + deltaMs
	if faster {
		isi = c.BaseISIMs - deltaMs
	}

	if floor := c.MinChangedISIMs(); isi < floor {
		return floor
	}
	return isi
}

// Millis converts fractional milliseconds to a time.Duration.
func Millis(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

// Seconds converts fractional seconds to a time.Duration.
func Seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
