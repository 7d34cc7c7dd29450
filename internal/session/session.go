// ABOUTME: Session orchestration
// ABOUTME: Runs each planned trial: standard sequence, beep train, pack-down
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/beeptrain"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/record"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/response"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase is what the session is doing right now
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseStandard Phase = "standard"
	PhaseTrain    Phase = "train"
	PhaseDone     Phase = "done"
)

// Clock is the trial clock. Start resets it to zero at trial start.
type Clock interface {
	beeptrain.Clock
	Start()
}

// Input is the response keyboard plus trial start requests
type Input interface {
	beeptrain.Input
	StartRequests() <-chan struct{}
}

// Responder classifies responses within a trial context
type Responder interface {
	beeptrain.Responder
	BeginTrial(info stimulus.TrialInfo)
}

// DeltaSource reports the current delta of a staircase condition
type DeltaSource interface {
	Current(condition string) float64
}

// Publisher receives trial markers. Optional.
type Publisher interface {
	Publish(markerType string, payload interface{})
}

// Config holds per-session settings
type Config struct {
	TrialDurationSec    float64
	StandardRepetitions int
}

// Deps are the session collaborators
type Deps struct {
	Scheduler *beeptrain.Scheduler
	Clock     Clock
	Input     Input
	Responder Responder
	Staircase DeltaSource // optional
	Markers   Publisher   // optional
	Logger    *zap.Logger
}

// Status is a snapshot for the console
type Status struct {
	Phase      Phase
	Trial      stimulus.TrialInfo
	Completed  int
	Total      int
	Train      stimulus.TrainState
	TrialTime  float64
	LastResult string
}

// Session runs a trial plan
type Session struct {
	config Config
	plan   []stimulus.TrialInfo

	sched     *beeptrain.Scheduler
	clock     Clock
	input     Input
	responder Responder
	staircase DeltaSource
	markers   Publisher
	log       *zap.Logger

	mu         sync.Mutex
	phase      Phase
	current    stimulus.TrialInfo
	trialCount int
	lastResult string
}

// NewID returns a fresh session identifier
func NewID() string {
	return uuid.New().String()
}

// NewInfo describes a session starting now
func NewInfo(participant string, mapping response.Mapping) record.Session {
	return record.Session{
		ID:          NewID(),
		Participant: participant,
		Mapping:     mapping.String(),
		StartedAt:   time.Now().UTC(),
	}
}

// New creates a session for plan
func New(config Config, plan []stimulus.TrialInfo, deps Deps) (*Session, error) {
	switch {
	case deps.Scheduler == nil:
		return nil, fmt.Errorf("%w: scheduler", stimulus.ErrMissingCollaborator)
	case deps.Clock == nil:
		return nil, fmt.Errorf("%w: clock", stimulus.ErrMissingCollaborator)
	case deps.Input == nil:
		return nil, fmt.Errorf("%w: input", stimulus.ErrMissingCollaborator)
	case deps.Responder == nil:
		return nil, fmt.Errorf("%w: responder", stimulus.ErrMissingCollaborator)
	}
	if config.TrialDurationSec <= 0 {
		return nil, fmt.Errorf("%w: trial duration must be > 0", stimulus.ErrInvalidConfig)
	}

	s := &Session{
		config:    config,
		plan:      plan,
		sched:     deps.Scheduler,
		clock:     deps.Clock,
		input:     deps.Input,
		responder: deps.Responder,
		staircase: deps.Staircase,
		markers:   deps.Markers,
		log:       deps.Logger,
		phase:     PhaseWaiting,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s, nil
}

// Status returns a snapshot of progress
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Phase:      s.phase,
		Trial:      s.current,
		Completed:  s.trialCount,
		Total:      len(s.plan),
		LastResult: s.lastResult,
	}
	s.mu.Unlock()

	st.Train = s.sched.CurrentState()
	if st.Phase == PhaseStandard || st.Phase == PhaseTrain {
		st.TrialTime = s.clock.Now()
	}
	return st
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Run waits for a start request before each trial and returns when the plan
// is complete, ctx is cancelled or a trial fails.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("Session started", zap.Int("trials", len(s.plan)))

	for _, info := range s.plan {
		s.setPhase(PhaseWaiting)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.input.StartRequests():
		}

		if err := s.RunTrial(ctx, info); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	s.setPhase(PhaseDone)
	s.log.Info("Session complete", zap.Int("trials", len(s.plan)))
	return nil
}

// RunTrial plays one trial: the standard sequence, then the beep train until
// the trial duration elapses. The trial clock starts before the standard
// sequence so it counts toward the duration.
func (s *Session) RunTrial(ctx context.Context, info stimulus.TrialInfo) error {
	s.mu.Lock()
	s.current = info
	s.mu.Unlock()

	s.responder.BeginTrial(info)
	if label, ok := response.ConditionLabel(info.BlockType); ok && s.staircase != nil {
		s.sched.SetDelta(s.staircase.Current(label))
	}

	s.clock.Start()
	s.publish(record.MarkerTrialStart, info, 0)
	s.log.Info("Trial started",
		zap.Int("trial", info.Index),
		zap.Int("block", info.BlockID),
		zap.Int("blockType", info.BlockType))

	defer s.packDown(info)

	s.setPhase(PhaseStandard)
	cfg := s.sched.Config()
	if err := s.sched.PlayStandardSequence(ctx, s.clock, s.config.StandardRepetitions, cfg.BaseISIMs); err != nil {
		if errors.Is(err, ctx.Err()) {
			return ctx.Err()
		}
		if errors.Is(err, beeptrain.ErrStopped) {
			return nil
		}
		return fmt.Errorf("trial %d standard sequence: %w", info.Index, err)
	}

	s.setPhase(PhaseTrain)
	remaining := s.config.TrialDurationSec - s.clock.Now()
	supervisor := time.AfterFunc(stimulus.Seconds(max(remaining, 0)), s.sched.Stop)
	defer supervisor.Stop()

	err := s.sched.RunBeepTrain(ctx, s.config.TrialDurationSec, beeptrain.Collaborators{
		Input:     s.input,
		Clock:     s.clock,
		Responder: resultTracker{Responder: s.responder, s: s},
	})
	if err != nil {
		return fmt.Errorf("trial %d: %w", info.Index, err)
	}
	return nil
}

// packDown silences audio and advances the trial counter
func (s *Session) packDown(info stimulus.TrialInfo) {
	s.sched.Stop()

	s.mu.Lock()
	s.trialCount++
	count := s.trialCount
	s.mu.Unlock()

	trialTime := s.clock.Now()
	s.publish(record.MarkerTrialEnd, info, trialTime)
	s.log.Info("Trial ended",
		zap.Int("trial", info.Index),
		zap.Int("completed", count),
		zap.Float64("trialTime", trialTime),
		zap.Int("changes", s.sched.CurrentState().ChangeCount))
}

func (s *Session) publish(markerType string, info stimulus.TrialInfo, trialTime float64) {
	if s.markers == nil {
		return
	}
	s.markers.Publish(markerType, record.TrialMarker{
		Trial:     info.Index,
		Block:     info.BlockID,
		BlockType: info.BlockType,
		TrialTime: trialTime,
	})
}

func (s *Session) setLastResult(result string) {
	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()
}

// resultTracker notes the latest outcome for Status before classifying it
type resultTracker struct {
	Responder
	s *Session
}

func (r resultTracker) OnHit(evt stimulus.Event, hit stimulus.Hit) error {
	result := "wrong"
	if hit.RespondedFaster == evt.IsFaster() {
		result = "correct"
	}
	r.s.setLastResult(fmt.Sprintf("%s (%s, rt %.2fs)", result, evt.Direction(), hit.ResponseTimeSec))
	return r.Responder.OnHit(evt, hit)
}

func (r resultTracker) OnMiss(evt stimulus.Event) error {
	r.s.setLastResult(fmt.Sprintf("miss (%s)", evt.Direction()))
	return r.Responder.OnMiss(evt)
}

func (r resultTracker) OnFalseAlarm(fa stimulus.FalseAlarm) error {
	r.s.setLastResult(fmt.Sprintf("false alarm at %.2fs", fa.At))
	return r.Responder.OnFalseAlarm(fa)
}
