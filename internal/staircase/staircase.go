// ABOUTME: Adaptive staircase for the ISI delta
// ABOUTME: Weighted up/down tracker per condition converging on a target accuracy
package staircase

import (
	"sync"

	"go.uber.org/zap"
)

// Config holds tracker parameters
type Config struct {
	InitialDeltaMs float64
	MinDeltaMs     float64
	MaxDeltaMs     float64

	// StepMs is the delta decrease after a correct response
	StepMs float64

	// MinStepMs bounds step halving
	MinStepMs float64

	// TargetCorrect is the proportion correct the track converges to
	TargetCorrect float64

	// HalvingReversals is how many reversals halve the step
	HalvingReversals int
}

// DefaultConfig returns a 75%-correct track starting at 50ms
func DefaultConfig() Config {
	return Config{
		InitialDeltaMs:   50,
		MinDeltaMs:       1,
		MaxDeltaMs:       550,
		StepMs:           8,
		MinStepMs:        1,
		TargetCorrect:    0.75,
		HalvingReversals: 3,
	}
}

// Tracker follows one condition
type Tracker struct {
	cfg       Config
	delta     float64
	step      float64
	lastDir   int // -1 harder, +1 easier, 0 none yet
	reversals int
	trials    int
	correct   int
}

// NewTracker creates a tracker at the initial delta
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:   cfg,
		delta: clamp(cfg.InitialDeltaMs, cfg.MinDeltaMs, cfg.MaxDeltaMs),
		step:  cfg.StepMs,
	}
}

// Update applies one response and returns the next delta. A smaller delta
// is a harder change to detect.
func (t *Tracker) Update(correct bool) float64 {
	t.trials++

	dir := 1
	move := t.step * upWeight(t.cfg.TargetCorrect)
	if correct {
		t.correct++
		dir = -1
		move = t.step
	}

	if t.lastDir != 0 && dir != t.lastDir {
		t.reversals++
		if t.reversals <= t.cfg.HalvingReversals {
			t.step = max(t.step/2, t.cfg.MinStepMs)
		}
	}
	t.lastDir = dir

	t.delta = clamp(t.delta+float64(dir)*move, t.cfg.MinDeltaMs, t.cfg.MaxDeltaMs)
	return t.delta
}

// upWeight is p/(1-p): the up step that makes the track settle at p correct
func upWeight(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 1
	}
	return p / (1 - p)
}

// Snapshot describes a tracker
type Snapshot struct {
	DeltaMs   float64
	StepMs    float64
	Reversals int
	Trials    int
	Correct   int
}

// Snapshot returns the tracker state
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		DeltaMs:   t.delta,
		StepMs:    t.step,
		Reversals: t.reversals,
		Trials:    t.trials,
		Correct:   t.correct,
	}
}

// Controller keeps an independent tracker per condition label
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	trackers map[string]*Tracker
	log      *zap.Logger
}

// NewController creates a controller. Trackers are created on first use.
func NewController(cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		trackers: make(map[string]*Tracker),
		log:      log,
	}
}

// ProcessResponse updates the tracker for condition and returns its next delta
func (c *Controller) ProcessResponse(condition string, correct bool) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.trackers[condition]
	if !ok {
		t = NewTracker(c.cfg)
		c.trackers[condition] = t
	}

	next := t.Update(correct)
	c.log.Info("Staircase step",
		zap.String("condition", condition),
		zap.Bool("correct", correct),
		zap.Float64("nextDeltaMs", next),
		zap.Int("reversals", t.reversals))

	return next
}

// Current returns the delta the next change in condition should use
func (c *Controller) Current(condition string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.trackers[condition]; ok {
		return t.delta
	}
	return clamp(c.cfg.InitialDeltaMs, c.cfg.MinDeltaMs, c.cfg.MaxDeltaMs)
}

// Snapshot returns the state of every tracker
func (c *Controller) Snapshot() map[string]Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Snapshot, len(c.trackers))
	for label, t := range c.trackers {
		out[label] = t.Snapshot()
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
