// ABOUTME: Beep train scheduler
// ABOUTME: Owns the train state, the playback cadence and the stop signal
package beeptrain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when a second train is started on a
// scheduler whose train has not ended.
var ErrAlreadyRunning = errors.New("beep train already running")

// ErrStopped is returned by PlayStandardSequence when Stop interrupts it
var ErrStopped = errors.New("standard sequence stopped")

// Scheduler drives the beep train for one trial at a time
type Scheduler struct {
	cfg    stimulus.Config
	beep   *tone.Buffer
	player Player
	rng    *rand.Rand
	log    *zap.Logger

	// mu guards state and cancel. It is never held while a collaborator runs.
	mu     sync.Mutex
	state  stimulus.TrainState
	cancel context.CancelFunc
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRand sets the source for phase durations and change directions
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New creates a scheduler for the session beep
func New(cfg stimulus.Config, beep *tone.Buffer, player Player, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if beep == nil {
		return nil, fmt.Errorf("%w: tone buffer", stimulus.ErrMissingCollaborator)
	}
	if player == nil {
		return nil, fmt.Errorf("%w: player", stimulus.ErrMissingCollaborator)
	}

	s := &Scheduler{
		cfg:    cfg,
		beep:   beep,
		player: player,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:    zap.NewNop(),
		state: stimulus.TrainState{
			BaseFrequencyHz: cfg.BaseFrequencyHz,
			BaseISIMs:       cfg.BaseISIMs,
			CurrentDeltaMs:  cfg.ClampDelta(cfg.InitialDeltaMs),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info("Beep train initialized",
		zap.Float64("freqHz", cfg.BaseFrequencyHz),
		zap.Float64("beepMs", cfg.BeepDurationMs),
		zap.Float64("isiMs", cfg.BaseISIMs),
		zap.Float64("deltaMs", s.state.CurrentDeltaMs),
		zap.Float64("rampMs", cfg.RampDurationMs))

	return s, nil
}

// Config returns the stimulus configuration
func (s *Scheduler) Config() stimulus.Config {
	return s.cfg
}

// SetDelta stores the ISI shift used by the next change. The value is clamped
// to the configured range; a change already in progress keeps its delta.
func (s *Scheduler) SetDelta(deltaMs float64) {
	s.mu.Lock()
	s.state.CurrentDeltaMs = s.cfg.ClampDelta(deltaMs)
	stored := s.state.CurrentDeltaMs
	s.mu.Unlock()

	s.log.Debug("Delta updated", zap.Float64("deltaMs", stored))
}

// CurrentState returns a snapshot of the train state
func (s *Scheduler) CurrentState() stimulus.TrainState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether a train is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Running
}

// Stop halts the train and silences any beep in flight. Safe to call at any
// time and more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.state.Running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.player.Stop()
}

// PlayStandardSequence plays repetitions beeps at a steady isiMs before the
// train starts. It returns when the last interval has elapsed, or ErrStopped
// if Stop is called first.
func (s *Scheduler) PlayStandardSequence(ctx context.Context, clk Clock, repetitions int, isiMs float64) error {
	if clk == nil {
		return fmt.Errorf("%w: clock", stimulus.ErrMissingCollaborator)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.begin(cancel); err != nil {
		return err
	}
	defer s.end()

	isi := stimulus.Millis(isiMs)
	for i := 0; i < repetitions; i++ {
		if err := s.player.Play(s.beep); err != nil {
			s.player.Stop()
			return fmt.Errorf("standard beep %d: %w", i, err)
		}
		if err := clk.Sleep(runCtx, isi); err != nil {
			s.player.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if runCtx.Err() != nil {
				s.log.Info("Standard sequence stopped", zap.Int("beeps", i+1))
				return ErrStopped
			}
			return err
		}
	}

	s.log.Info("Standard sequence complete",
		zap.Int("beeps", repetitions), zap.Float64("isiMs", isiMs))
	return nil
}

// StandardSequenceDuration returns how long PlayStandardSequence takes at the
// base ISI.
func (s *Scheduler) StandardSequenceDuration(repetitions int) time.Duration {
	return time.Duration(repetitions) * s.cfg.BaseISI()
}

// begin marks a new train as running and resets the per-trial counters
func (s *Scheduler) begin(cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Running {
		return ErrAlreadyRunning
	}
	s.state.Running = true
	s.state.IsChanged = false
	s.state.ChangeCount = 0
	s.cancel = cancel
	return nil
}

// end leaves the state in its terminal not-running condition
func (s *Scheduler) end() stimulus.TrainState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Running = false
	s.state.IsChanged = false
	s.cancel = nil
	return s.state
}

func (s *Scheduler) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Running
}

func (s *Scheduler) setChanged(changed bool) {
	s.mu.Lock()
	s.state.IsChanged = changed
	s.mu.Unlock()
}

// drawStandardPeriod picks the steady phase length in seconds
func (s *Scheduler) drawStandardPeriod() float64 {
	lo, hi := s.cfg.MinStandardPeriodSec, s.cfg.MaxStandardPeriodSec
	return lo + s.rng.Float64()*(hi-lo)
}

// beginChange performs the standard-to-changed transition and returns the
// event snapshot and the changed ISI in milliseconds
func (s *Scheduler) beginChange(now float64) (stimulus.Event, float64) {
	faster := s.rng.Float64() < 0.5

	s.mu.Lock()
	delta := s.cfg.ClampDelta(s.state.CurrentDeltaMs)
	isi := stimulus.ChangedISIMs(s.cfg, delta, faster)

	s.state.IsFaster = faster
	s.state.ChangeOnsetTime = now
	s.state.IsChanged = true
	s.state.ChangeCount++

	evt := stimulus.NewEvent(s.cfg.BaseFrequencyHz, s.cfg.BaseISIMs, delta, faster, now, s.state.ChangeCount-1)
	s.mu.Unlock()

	s.log.Info("Tempo change",
		zap.Int("index", evt.ChangeIndex()),
		zap.String("direction", evt.Direction()),
		zap.Float64("deltaMs", delta),
		zap.Float64("isiMs", isi),
		zap.Float64("onset", now))

	return evt, isi
}
