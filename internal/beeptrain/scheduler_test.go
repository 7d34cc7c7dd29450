// ABOUTME: Tests for the beep train scheduler
// ABOUTME: Tests phase transitions, response classification, stop and failures
package beeptrain

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
)

type fakeClock struct {
	now     float64
	sleeps  int
	onSleep func(n int)
}

func (c *fakeClock) Now() float64 { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now += d.Seconds()
	c.sleeps++
	if c.onSleep != nil {
		c.onSleep(c.sleeps)
	}
	return ctx.Err()
}

type fakePlayer struct {
	plays int
	stops int
	err   error
}

func (p *fakePlayer) Play(*tone.Buffer) error {
	if p.err != nil {
		return p.err
	}
	p.plays++
	return nil
}

func (p *fakePlayer) Stop() { p.stops++ }

type fakeInput struct {
	pressed func() (bool, bool)
	onWait  func()
	waits   int
}

func (in *fakeInput) Pressed() (bool, bool) {
	if in.pressed == nil {
		return false, false
	}
	return in.pressed()
}

func (in *fakeInput) WaitReleased(ctx context.Context) error {
	in.waits++
	if in.onWait != nil {
		in.onWait()
	}
	return ctx.Err()
}

type hitRecord struct {
	evt stimulus.Event
	hit stimulus.Hit
}

type fakeResponder struct {
	hits    []hitRecord
	misses  []stimulus.Event
	fas     []stimulus.FalseAlarm
	missErr error
	onMiss  func(evt stimulus.Event)
}

func (r *fakeResponder) DeriveDirection(side stimulus.Side) bool { return side == stimulus.SideLeft }

func (r *fakeResponder) OnHit(evt stimulus.Event, hit stimulus.Hit) error {
	r.hits = append(r.hits, hitRecord{evt, hit})
	return nil
}

func (r *fakeResponder) OnMiss(evt stimulus.Event) error {
	if r.missErr != nil {
		return r.missErr
	}
	r.misses = append(r.misses, evt)
	if r.onMiss != nil {
		r.onMiss(evt)
	}
	return nil
}

func (r *fakeResponder) OnFalseAlarm(fa stimulus.FalseAlarm) error {
	r.fas = append(r.fas, fa)
	return nil
}

func newTestScheduler(t *testing.T, cfg stimulus.Config) (*Scheduler, *fakePlayer) {
	t.Helper()

	buf, err := tone.ForConfig(cfg, 44100)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	player := &fakePlayer{}
	s, err := New(cfg, buf, player, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, player
}

func TestNewMissingCollaborators(t *testing.T) {
	cfg := stimulus.DefaultConfig()
	buf, _ := tone.ForConfig(cfg, 44100)

	if _, err := New(cfg, nil, &fakePlayer{}); !errors.Is(err, stimulus.ErrMissingCollaborator) {
		t.Errorf("nil tone: expected ErrMissingCollaborator, got %v", err)
	}
	if _, err := New(cfg, buf, nil); !errors.Is(err, stimulus.ErrMissingCollaborator) {
		t.Errorf("nil player: expected ErrMissingCollaborator, got %v", err)
	}

	cfg.Amplitude = 2
	if _, err := New(cfg, buf, &fakePlayer{}); !errors.Is(err, stimulus.ErrInvalidConfig) {
		t.Errorf("bad config: expected ErrInvalidConfig, got %v", err)
	}
}

func TestInitialState(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())

	state := s.CurrentState()
	if state.CurrentDeltaMs != 50 {
		t.Errorf("expected initial delta 50, got %v", state.CurrentDeltaMs)
	}
	if state.Running || state.IsChanged || state.ChangeCount != 0 {
		t.Errorf("unexpected initial state: %+v", state)
	}
	if state.BaseFrequencyHz != 500 || state.BaseISIMs != 100 {
		t.Errorf("unexpected base values: %+v", state)
	}
}

func TestSetDeltaClamps(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())

	tests := []struct {
		in       float64
		expected float64
	}{
		{75, 75},
		{0, 1},
		{-3, 1},
		{551, 550},
		{1e6, 550},
		{550, 550},
	}

	for _, tt := range tests {
		s.SetDelta(tt.in)
		s.SetDelta(tt.in) // idempotent
		if got := s.CurrentState().CurrentDeltaMs; got != tt.expected {
			t.Errorf("SetDelta(%v): expected %v, got %v", tt.in, tt.expected, got)
		}
	}
}

func TestBeginChangeFloorsISI(t *testing.T) {
	cfg := stimulus.DefaultConfig()
	s, _ := newTestScheduler(t, cfg)

	for _, d := range []float64{-10, 1, 25, 40, 50, 89, 200, 550, 900} {
		s.SetDelta(d)
		evt, isi := s.beginChange(0)

		if evt.DeltaMs() != cfg.ClampDelta(d) {
			t.Errorf("delta %v: event carries %v", d, evt.DeltaMs())
		}
		if isi < cfg.BeepDurationMs+10 {
			t.Errorf("delta %v: ISI %v overlaps beep", d, isi)
		}
		if isi != stimulus.ChangedISIMs(cfg, evt.DeltaMs(), evt.IsFaster()) {
			t.Errorf("delta %v: ISI %v does not match direction", d, isi)
		}
	}
}

func TestRunBeepTrainMissingCollaborator(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())

	err := s.RunBeepTrain(context.Background(), 10, Collaborators{Clock: &fakeClock{}, Input: &fakeInput{}})
	if !errors.Is(err, stimulus.ErrMissingCollaborator) {
		t.Fatalf("expected ErrMissingCollaborator, got %v", err)
	}
	if player.plays != 0 {
		t.Error("no beep should play without collaborators")
	}
}

func TestMissesProduceSequentialEvents(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	clk := &fakeClock{}
	resp := &fakeResponder{}

	err := s.RunBeepTrain(context.Background(), 30, Collaborators{Input: &fakeInput{}, Clock: clk, Responder: resp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := s.CurrentState()
	if state.ChangeCount < 5 {
		t.Fatalf("expected several changes in 30s, got %d", state.ChangeCount)
	}
	if gap := state.ChangeCount - len(resp.misses); gap < 0 || gap > 1 {
		t.Errorf("expected one miss per completed change, got %d misses for %d changes",
			len(resp.misses), state.ChangeCount)
	}
	if len(resp.hits) != 0 || len(resp.fas) != 0 {
		t.Error("no responses should be classified without input")
	}

	prevOnset := -1.0
	for i, evt := range resp.misses {
		if evt.ChangeIndex() != i {
			t.Errorf("miss %d: expected change index %d, got %d", i, i, evt.ChangeIndex())
		}
		if evt.DeltaMs() != 50 {
			t.Errorf("miss %d: expected delta 50, got %v", i, evt.DeltaMs())
		}
		if evt.ChangeOnsetTime() <= prevOnset {
			t.Errorf("miss %d: onsets must increase", i)
		}
		prevOnset = evt.ChangeOnsetTime()
	}

	if clk.now < 30 {
		t.Errorf("train ended early at %v", clk.now)
	}
	if state.Running || s.Running() {
		t.Error("train should not be running after trial end")
	}
	if player.stops == 0 {
		t.Error("trial end should silence audio")
	}
}

func TestChangeCountResetsPerTrial(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())

	for trial := 0; trial < 2; trial++ {
		resp := &fakeResponder{}
		err := s.RunBeepTrain(context.Background(), 10, Collaborators{Input: &fakeInput{}, Clock: &fakeClock{}, Responder: resp})
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		if len(resp.misses) == 0 {
			t.Fatalf("trial %d: expected misses", trial)
		}
		if resp.misses[0].ChangeIndex() != 0 {
			t.Errorf("trial %d: first change index should be 0, got %d", trial, resp.misses[0].ChangeIndex())
		}
	}
}

func TestHitDuringChange(t *testing.T) {
	cfg := stimulus.DefaultConfig()
	s, _ := newTestScheduler(t, cfg)
	input := &fakeInput{}
	input.pressed = func() (bool, bool) {
		return s.CurrentState().IsChanged, false
	}
	resp := &fakeResponder{}

	err := s.RunBeepTrain(context.Background(), 20, Collaborators{Input: input, Clock: &fakeClock{}, Responder: resp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.hits) == 0 {
		t.Fatal("expected hits")
	}
	if len(resp.misses) != 0 || len(resp.fas) != 0 {
		t.Errorf("expected only hits, got %d misses and %d false alarms", len(resp.misses), len(resp.fas))
	}
	if input.waits != len(resp.hits) {
		t.Errorf("expected a release wait per hit, got %d waits for %d hits", input.waits, len(resp.hits))
	}

	for i, h := range resp.hits {
		if h.evt.ChangeIndex() != i {
			t.Errorf("hit %d: expected index %d, got %d", i, i, h.evt.ChangeIndex())
		}
		if !h.hit.RespondedFaster {
			t.Errorf("hit %d: left press should map to faster", i)
		}
		// Response seen at the end of the first changed interval
		want := stimulus.ChangedISIMs(cfg, h.evt.DeltaMs(), h.evt.IsFaster()) / 1000
		if math.Abs(h.hit.ResponseTimeSec-want) > 1e-6 {
			t.Errorf("hit %d: expected RT %v, got %v", i, want, h.hit.ResponseTimeSec)
		}
		if h.hit.ResponseTimeSec >= cfg.DetectionWindowSec {
			t.Errorf("hit %d: RT outside the detection window", i)
		}
	}
}

func TestFalseAlarmDuringStandard(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())
	calls := 0
	input := &fakeInput{}
	input.pressed = func() (bool, bool) {
		calls++
		return false, calls == 1
	}
	resp := &fakeResponder{}

	err := s.RunBeepTrain(context.Background(), 5, Collaborators{Input: input, Clock: &fakeClock{}, Responder: resp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.fas) != 1 {
		t.Fatalf("expected 1 false alarm, got %d", len(resp.fas))
	}
	fa := resp.fas[0]
	if fa.RespondedFaster {
		t.Error("right press should map to slower")
	}
	if fa.State.IsChanged {
		t.Error("false alarm must come from the standard phase")
	}
	if math.Abs(fa.At-0.1) > 1e-9 {
		t.Errorf("expected false alarm after first beep, got %v", fa.At)
	}
	if input.waits != 1 {
		t.Errorf("expected one release wait, got %d", input.waits)
	}
	if len(resp.hits) != 0 {
		t.Error("false alarm must not be scored as a hit")
	}
}

func TestDebounceExcludedFromStandardPeriod(t *testing.T) {
	cfg := stimulus.DefaultConfig()
	cfg.MinStandardPeriodSec = 0.45
	cfg.MaxStandardPeriodSec = 0.45 // five beeps at 100ms
	s, _ := newTestScheduler(t, cfg)

	clk := &fakeClock{}
	calls := 0
	input := &fakeInput{
		pressed: func() (bool, bool) {
			calls++
			return calls == 1, false
		},
		onWait: func() { clk.now += 10 }, // button held for 10s
	}
	resp := &fakeResponder{}

	err := s.RunBeepTrain(context.Background(), 20, Collaborators{Input: input, Clock: clk, Responder: resp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.misses) == 0 {
		t.Fatal("expected the first change to be missed")
	}
	onset := resp.misses[0].ChangeOnsetTime()
	if math.Abs(onset-10.5) > 1e-6 {
		t.Errorf("expected first change at 10.5s (wait not counted), got %v", onset)
	}
}

func TestSetDeltaAppliesAtNextChange(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())
	resp := &fakeResponder{}
	resp.onMiss = func(evt stimulus.Event) {
		s.SetDelta(evt.DeltaMs() + 100)
	}

	err := s.RunBeepTrain(context.Background(), 20, Collaborators{Input: &fakeInput{}, Clock: &fakeClock{}, Responder: resp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.misses) < 3 {
		t.Fatalf("expected several misses, got %d", len(resp.misses))
	}
	for i, evt := range resp.misses {
		want := math.Min(50+float64(i)*100, 550)
		if evt.DeltaMs() != want {
			t.Errorf("change %d: expected delta %v, got %v", i, want, evt.DeltaMs())
		}
	}
}

func TestStopHaltsTrain(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	clk := &fakeClock{}
	clk.onSleep = func(n int) {
		if n == 3 {
			s.Stop()
		}
	}

	err := s.RunBeepTrain(context.Background(), 60, Collaborators{Input: &fakeInput{}, Clock: clk, Responder: &fakeResponder{}})
	if err != nil {
		t.Fatalf("stop should not be an error, got %v", err)
	}

	if player.plays != 3 {
		t.Errorf("expected no beeps after stop, got %d plays", player.plays)
	}
	if player.stops == 0 {
		t.Error("stop should silence audio")
	}
	if s.Running() {
		t.Error("train should not be running after stop")
	}

	// Idempotent
	s.Stop()
	s.Stop()
	if s.Running() {
		t.Error("train should stay stopped")
	}
}

func TestContextCancelEndsTrain(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := &fakeClock{onSleep: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	err := s.RunBeepTrain(ctx, 60, Collaborators{Input: &fakeInput{}, Clock: clk, Responder: &fakeResponder{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Running() {
		t.Error("train should not be running after cancel")
	}
}

func TestCollaboratorFailureStopsTrain(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	boom := errors.New("sink down")
	resp := &fakeResponder{missErr: boom}

	err := s.RunBeepTrain(context.Background(), 60, Collaborators{Input: &fakeInput{}, Clock: &fakeClock{}, Responder: resp})
	if !errors.Is(err, boom) {
		t.Fatalf("expected collaborator error, got %v", err)
	}

	state := s.CurrentState()
	if state.Running || state.IsChanged {
		t.Errorf("expected terminal state, got %+v", state)
	}
	if player.stops == 0 {
		t.Error("failure should silence audio")
	}
	if state.ChangeCount != 1 {
		t.Errorf("expected failure on first change, got %d changes", state.ChangeCount)
	}
}

func TestPlayerFailureStopsTrain(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	player.err = errors.New("device lost")

	err := s.RunBeepTrain(context.Background(), 60, Collaborators{Input: &fakeInput{}, Clock: &fakeClock{}, Responder: &fakeResponder{}})
	if !errors.Is(err, player.err) {
		t.Fatalf("expected player error, got %v", err)
	}
	if s.Running() {
		t.Error("train should not be running after failure")
	}
	if player.stops == 0 {
		t.Error("failure should silence audio")
	}
}

func TestAlreadyRunning(t *testing.T) {
	s, _ := newTestScheduler(t, stimulus.DefaultConfig())
	var nestedErr error
	clk := &fakeClock{}
	clk.onSleep = func(n int) {
		if n == 1 {
			nestedErr = s.RunBeepTrain(context.Background(), 1, Collaborators{Input: &fakeInput{}, Clock: &fakeClock{}, Responder: &fakeResponder{}})
		}
	}

	if err := s.RunBeepTrain(context.Background(), 1, Collaborators{Input: &fakeInput{}, Clock: clk, Responder: &fakeResponder{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(nestedErr, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", nestedErr)
	}
}

func TestPlayStandardSequence(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	clk := &fakeClock{}

	if err := s.PlayStandardSequence(context.Background(), clk, 5, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if player.plays != 5 {
		t.Errorf("expected 5 beeps, got %d", player.plays)
	}
	if math.Abs(clk.now-0.5) > 1e-9 {
		t.Errorf("expected 0.5s elapsed, got %v", clk.now)
	}
	if got := s.StandardSequenceDuration(5); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
	if s.CurrentState().ChangeCount != 0 {
		t.Error("standard sequence must not produce changes")
	}
}

func TestPlayStandardSequenceCancelled(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	clk := &fakeClock{onSleep: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	err := s.PlayStandardSequence(ctx, clk, 5, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if player.plays != 2 {
		t.Errorf("expected 2 beeps before cancel, got %d", player.plays)
	}
	if player.stops == 0 {
		t.Error("cancel should silence audio")
	}
}

func TestPlayStandardSequenceStopped(t *testing.T) {
	s, player := newTestScheduler(t, stimulus.DefaultConfig())
	clk := &fakeClock{onSleep: func(n int) {
		if n == 2 {
			s.Stop()
		}
	}}

	err := s.PlayStandardSequence(context.Background(), clk, 5, 100)
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if player.plays != 2 {
		t.Errorf("expected 2 beeps before stop, got %d", player.plays)
	}
	if s.Running() {
		t.Error("scheduler still running after stop")
	}

	// the scheduler is reusable for the train afterwards
	if err := s.PlayStandardSequence(context.Background(), &fakeClock{}, 1, 100); err != nil {
		t.Errorf("second sequence: %v", err)
	}
}
