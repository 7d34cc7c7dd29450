// ABOUTME: Contracts consumed by the beep train
// ABOUTME: Audio player, trial clock, response input and response classifier
package beeptrain

import (
	"context"
	"fmt"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
)

// Player plays beeps. Play must return without waiting for the tone to end.
type Player interface {
	Play(buf *tone.Buffer) error
	Stop()
}

// Clock reports trial-relative seconds and suspends the train between beeps.
type Clock interface {
	Now() float64
	Sleep(ctx context.Context, d time.Duration) error
}

// Input exposes the response buttons.
type Input interface {
	Pressed() (left, right bool)
	// WaitReleased blocks until both buttons are up or ctx is done.
	WaitReleased(ctx context.Context) error
}

// Responder classifies responses and routes the outcomes.
type Responder interface {
	DeriveDirection(side stimulus.Side) bool
	OnHit(evt stimulus.Event, hit stimulus.Hit) error
	OnMiss(evt stimulus.Event) error
	OnFalseAlarm(fa stimulus.FalseAlarm) error
}

// Collaborators are the per-trial dependencies of RunBeepTrain.
type Collaborators struct {
	Input     Input
	Clock     Clock
	Responder Responder
}

func (c Collaborators) validate() error {
	switch {
	case c.Input == nil:
		return fmt.Errorf("%w: input", stimulus.ErrMissingCollaborator)
	case c.Clock == nil:
		return fmt.Errorf("%w: clock", stimulus.ErrMissingCollaborator)
	case c.Responder == nil:
		return fmt.Errorf("%w: responder", stimulus.ErrMissingCollaborator)
	}
	return nil
}
