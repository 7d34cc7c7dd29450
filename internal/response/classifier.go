// ABOUTME: Response classifier for the beep train
// ABOUTME: Scores responses, routes outcomes to persistence and the staircase
package response

import (
	"fmt"
	"sync"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"go.uber.org/zap"
)

// DefaultPracticeCutoff is the number of opening trials that give feedback
// instead of updating the staircase.
const DefaultPracticeCutoff = 2

// Staircase returns the next delta for a condition after a scored response
type Staircase interface {
	ProcessResponse(condition string, correct bool) float64
}

// Persistence stores one record per classified response
type Persistence interface {
	LogEvent(evt stimulus.Event, isFalseAlarm bool, fields stimulus.ResponseFields) error
}

// DeltaSetter receives the staircase result
type DeltaSetter interface {
	SetDelta(deltaMs float64)
}

// Feedback shows the participant whether a practice response was correct
type Feedback interface {
	ShowFeedback(correct bool)
}

// FeedbackFunc adapts a function to Feedback
type FeedbackFunc func(correct bool)

func (f FeedbackFunc) ShowFeedback(correct bool) { f(correct) }

// Deps are the collaborators of a Classifier
type Deps struct {
	Staircase   Staircase
	Persistence Persistence
	Delta       DeltaSetter
	Feedback    Feedback // optional
	Logger      *zap.Logger
}

// Classifier scores responses for the current trial
type Classifier struct {
	staircase   Staircase
	persistence Persistence
	delta       DeltaSetter
	feedback    Feedback
	log         *zap.Logger

	mapping        Mapping
	practiceCutoff int

	mu    sync.Mutex
	trial stimulus.TrialInfo
}

// New creates a classifier with a mapping fixed for the session
func New(deps Deps, mapping Mapping, practiceCutoff int) (*Classifier, error) {
	switch {
	case deps.Staircase == nil:
		return nil, fmt.Errorf("%w: staircase", stimulus.ErrMissingCollaborator)
	case deps.Persistence == nil:
		return nil, fmt.Errorf("%w: persistence", stimulus.ErrMissingCollaborator)
	case deps.Delta == nil:
		return nil, fmt.Errorf("%w: delta setter", stimulus.ErrMissingCollaborator)
	}
	if mapping != LeftFaster && mapping != LeftSlower {
		return nil, fmt.Errorf("%w: response mapping %d", stimulus.ErrInvalidConfig, mapping)
	}

	c := &Classifier{
		staircase:      deps.Staircase,
		persistence:    deps.Persistence,
		delta:          deps.Delta,
		feedback:       deps.Feedback,
		log:            deps.Logger,
		mapping:        mapping,
		practiceCutoff: practiceCutoff,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.feedback == nil {
		c.feedback = FeedbackFunc(func(correct bool) {
			c.log.Info("Practice feedback", zap.Bool("correct", correct))
		})
	}

	c.log.Info("Response mapping assigned", zap.String("mapping", mapping.String()))
	return c, nil
}

// Mapping returns the session response mapping
func (c *Classifier) Mapping() Mapping { return c.mapping }

// BeginTrial sets the trial context used by subsequent records
func (c *Classifier) BeginTrial(info stimulus.TrialInfo) {
	c.mu.Lock()
	c.trial = info
	c.mu.Unlock()
}

func (c *Classifier) currentTrial() stimulus.TrialInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trial
}

// DeriveDirection reports whether a press on side means "faster"
func (c *Classifier) DeriveDirection(side stimulus.Side) bool {
	return DeriveDirection(side, c.mapping)
}

// DeriveDirection reports whether a press on side means "faster" under m
func DeriveDirection(side stimulus.Side, m Mapping) bool {
	left := side == stimulus.SideLeft
	if m == LeftFaster {
		return left
	}
	return !left
}

// ConditionLabel names the staircase for a block type. Stationary blocks
// (type 0) have no staircase.
func ConditionLabel(blockType int) (string, bool) {
	switch blockType {
	case 1:
		return "slow", true
	case 2:
		return "natural", true
	default:
		return "", false
	}
}

// Classify dispatches an outcome to OnHit, OnMiss or OnFalseAlarm
func (c *Classifier) Classify(evt stimulus.Event, o stimulus.Outcome) error {
	switch o := o.(type) {
	case stimulus.Hit:
		return c.OnHit(evt, o)
	case stimulus.Miss:
		return c.OnMiss(evt)
	case stimulus.FalseAlarm:
		return c.OnFalseAlarm(o)
	default:
		return fmt.Errorf("unknown outcome %T", o)
	}
}

// OnHit scores a response made during a change
func (c *Classifier) OnHit(evt stimulus.Event, hit stimulus.Hit) error {
	correct := hit.RespondedFaster == evt.IsFaster()
	fields := stimulus.ResponseFields{
		Trial:           c.currentTrial(),
		Correct:         correct,
		Response:        stimulus.ResponseOf(hit.RespondedFaster),
		ClickOnsetTime:  evt.ChangeOnsetTime() + hit.ResponseTimeSec,
		ResponseTimeSec: hit.ResponseTimeSec,
	}

	c.logEvent(evt, false, fields)

	c.log.Info("Response scored",
		zap.Bool("correct", correct),
		zap.String("responded", fields.Response.String()),
		zap.String("actual", evt.Direction()),
		zap.Float64("rt", hit.ResponseTimeSec))

	c.score(fields.Trial, correct)
	return nil
}

// OnMiss scores a change that got no response
func (c *Classifier) OnMiss(evt stimulus.Event) error {
	fields := stimulus.ResponseFields{
		Trial:           c.currentTrial(),
		Correct:         false,
		Response:        stimulus.ResponseNone,
		ClickOnsetTime:  stimulus.NoClick,
		ResponseTimeSec: stimulus.NoClick,
	}

	c.logEvent(evt, false, fields)

	c.log.Info("Miss scored", zap.String("actual", evt.Direction()))

	c.score(fields.Trial, false)
	return nil
}

// OnFalseAlarm logs a response made while the train was steady. False alarms
// never reach the staircase.
func (c *Classifier) OnFalseAlarm(fa stimulus.FalseAlarm) error {
	evt := stimulus.NewFalseAlarmEvent(fa.State, fa.At)
	fields := stimulus.ResponseFields{
		Trial:           c.currentTrial(),
		Correct:         false,
		Response:        stimulus.ResponseOf(fa.RespondedFaster),
		ClickOnsetTime:  fa.At,
		ResponseTimeSec: stimulus.NoClick,
	}

	c.logEvent(evt, true, fields)

	c.log.Info("False alarm scored",
		zap.Float64("at", fa.At),
		zap.String("responded", fields.Response.String()))
	return nil
}

// logEvent hands the record to persistence. A failed write is logged and
// scoring carries on: the staircase must not stall on a sink.
func (c *Classifier) logEvent(evt stimulus.Event, isFalseAlarm bool, fields stimulus.ResponseFields) {
	if err := c.persistence.LogEvent(evt, isFalseAlarm, fields); err != nil {
		c.log.Error("Failed to record response",
			zap.Int("changeIndex", evt.ChangeIndex()),
			zap.Bool("falseAlarm", isFalseAlarm),
			zap.Int("trial", fields.Trial.Index),
			zap.Error(err))
	}
}

// score updates the staircase past the practice trials, or shows feedback
// during them
func (c *Classifier) score(trial stimulus.TrialInfo, correct bool) {
	if trial.Index < c.practiceCutoff {
		c.feedback.ShowFeedback(correct)
		return
	}

	condition, ok := ConditionLabel(trial.BlockType)
	if !ok {
		return
	}

	next := c.staircase.ProcessResponse(condition, correct)
	c.delta.SetDelta(next)

	c.log.Info("Staircase updated",
		zap.String("condition", condition),
		zap.Bool("correct", correct),
		zap.Float64("nextDeltaMs", next))
}
