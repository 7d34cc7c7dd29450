// ABOUTME: Beep train phase machine
// ABOUTME: Alternates steady and perturbed ISI phases and polls responses each tick
package beeptrain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"go.uber.org/zap"
)

// RunBeepTrain plays the train until the trial clock reaches trialDuration
// seconds, Stop is called or ctx is cancelled. Responses are handed to
// c.Responder as they are classified.
//
// A collaborator error stops the train, silences audio and is returned.
// Stopping the train is not an error; cancelling ctx returns ctx.Err().
func (s *Scheduler) RunBeepTrain(ctx context.Context, trialDuration float64, c Collaborators) error {
	if err := c.validate(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.begin(cancel); err != nil {
		return err
	}

	t := &trial{s: s, ctx: runCtx, duration: trialDuration, c: c}
	err := t.run()

	final := s.end()
	s.player.Stop()

	s.log.Info("Beep train ended",
		zap.Int("changes", final.ChangeCount),
		zap.Float64("trialTime", c.Clock.Now()))

	switch {
	case err == nil:
		return nil
	case runCtx.Err() != nil && errors.Is(err, runCtx.Err()):
		return ctx.Err()
	default:
		s.log.Error("Beep train failed", zap.Error(err))
		return err
	}
}

// trial carries one run of the train through its phases
type trial struct {
	s        *Scheduler
	ctx      context.Context
	duration float64
	c        Collaborators
}

func (t *trial) run() error {
	for t.active() {
		if err := t.standard(); err != nil {
			return err
		}
		if !t.active() {
			break
		}

		evt, isiMs := t.s.beginChange(t.c.Clock.Now())
		if err := t.changed(evt, isiMs); err != nil {
			return err
		}
		t.s.setChanged(false)
	}
	return nil
}

// active is checked at every tick boundary
func (t *trial) active() bool {
	return t.ctx.Err() == nil && t.s.running() && t.c.Clock.Now() < t.duration
}

// beep plays the tone and suspends for one interval
func (t *trial) beep(isi time.Duration) error {
	if err := t.s.player.Play(t.s.beep); err != nil {
		return fmt.Errorf("play beep: %w", err)
	}
	return t.c.Clock.Sleep(t.ctx, isi)
}

func (t *trial) waitReleased() error {
	if err := t.c.Input.WaitReleased(t.ctx); err != nil {
		return fmt.Errorf("wait for release: %w", err)
	}
	return nil
}

// standard plays the steady ISI for a randomly drawn period. A press in this
// phase is a false alarm.
func (t *trial) standard() error {
	target := t.s.drawStandardPeriod()
	isiSec := t.s.cfg.BaseISIMs / 1000
	isi := stimulus.Seconds(isiSec)

	t.s.setChanged(false)
	t.s.log.Debug("Standard phase", zap.Float64("periodSec", target))

	elapsed := 0.0
	for elapsed < target && t.active() {
		if err := t.beep(isi); err != nil {
			return err
		}
		elapsed += isiSec

		left, right := t.c.Input.Pressed()
		if !left && !right {
			continue
		}

		fa := stimulus.FalseAlarm{
			RespondedFaster: t.c.Responder.DeriveDirection(stimulus.SideOf(left, right)),
			At:              t.c.Clock.Now(),
			State:           t.s.CurrentState(),
		}
		t.s.log.Info("False alarm during standard phase", zap.Float64("at", fa.At))
		if err := t.c.Responder.OnFalseAlarm(fa); err != nil {
			return fmt.Errorf("false alarm: %w", err)
		}

		// The release wait is not added to elapsed.
		if err := t.waitReleased(); err != nil {
			return err
		}
	}
	return nil
}

// changed plays the perturbed ISI until a response or the end of the
// detection window. A response is attributed to the tick in which it was
// seen; a tick that started inside the window can still score a hit.
func (t *trial) changed(evt stimulus.Event, isiMs float64) error {
	window := t.s.cfg.DetectionWindowSec
	isiSec := isiMs / 1000
	isi := stimulus.Seconds(isiSec)

	elapsed := 0.0
	for elapsed < window && t.active() {
		if err := t.beep(isi); err != nil {
			return err
		}
		elapsed += isiSec

		left, right := t.c.Input.Pressed()
		if !left && !right {
			continue
		}

		hit := stimulus.Hit{
			ResponseTimeSec: t.c.Clock.Now() - evt.ChangeOnsetTime(),
			RespondedFaster: t.c.Responder.DeriveDirection(stimulus.SideOf(left, right)),
		}
		t.s.log.Info("Response",
			zap.Int("index", evt.ChangeIndex()),
			zap.Float64("rt", hit.ResponseTimeSec),
			zap.Bool("respondedFaster", hit.RespondedFaster))
		if err := t.c.Responder.OnHit(evt, hit); err != nil {
			return fmt.Errorf("hit: %w", err)
		}
		return t.waitReleased()
	}

	if elapsed >= window {
		t.s.log.Info("Miss", zap.Int("index", evt.ChangeIndex()), zap.Float64("windowSec", window))
		if err := t.c.Responder.OnMiss(evt); err != nil {
			return fmt.Errorf("miss: %w", err)
		}
	}
	return nil
}
