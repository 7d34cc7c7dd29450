// ABOUTME: Flat response record shared by all persistence sinks
// ABOUTME: Built from an event, its response fields and the session context
package record

import (
	"errors"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"go.uber.org/zap"
)

// Session identifies the running session in every record
type Session struct {
	ID          string    `json:"session_id"`
	Participant string    `json:"participant"`
	Mapping     string    `json:"response_mapping"`
	StartedAt   time.Time `json:"started_at"`
}

// Record is one classified response
type Record struct {
	SessionID string    `json:"session_id"`
	LoggedAt  time.Time `json:"logged_at"`

	Trial      int  `json:"trial"`
	Block      int  `json:"block"`
	TrialID    int  `json:"trial_in_block"`
	BlockType  int  `json:"block_type"`
	Stationary bool `json:"stationary"`

	BaseFrequencyHz float64 `json:"base_frequency_hz"`
	BaseISIMs       float64 `json:"base_isi_ms"`
	DeltaMs         float64 `json:"delta_ms"`
	Direction       string  `json:"direction"`
	ChangeOnsetTime float64 `json:"change_onset"`
	ChangeIndex     int     `json:"change_index"`
	IsFalseAlarm    bool    `json:"false_alarm"`

	Correct         bool    `json:"correct"`
	Response        int     `json:"response"`
	ClickOnsetTime  float64 `json:"click_onset"`
	ResponseTimeSec float64 `json:"rt"`
}

// New flattens an event and its response fields
func New(sessionID string, evt stimulus.Event, isFalseAlarm bool, f stimulus.ResponseFields, at time.Time) Record {
	return Record{
		SessionID:       sessionID,
		LoggedAt:        at,
		Trial:           f.Trial.Index,
		Block:           f.Trial.BlockID,
		TrialID:         f.Trial.TrialID,
		BlockType:       f.Trial.BlockType,
		Stationary:      f.Trial.Stationary,
		BaseFrequencyHz: evt.BaseFrequencyHz(),
		BaseISIMs:       evt.BaseISIMs(),
		DeltaMs:         evt.DeltaMs(),
		Direction:       evt.Direction(),
		ChangeOnsetTime: evt.ChangeOnsetTime(),
		ChangeIndex:     evt.ChangeIndex(),
		IsFalseAlarm:    isFalseAlarm,
		Correct:         f.Correct,
		Response:        int(f.Response),
		ClickOnsetTime:  f.ClickOnsetTime,
		ResponseTimeSec: f.ResponseTimeSec,
	}
}

func (r Record) fields() []zap.Field {
	return []zap.Field{
		zap.String("session", r.SessionID),
		zap.Int("trial", r.Trial),
		zap.Int("block", r.Block),
		zap.Int("blockType", r.BlockType),
		zap.Float64("deltaMs", r.DeltaMs),
		zap.String("direction", r.Direction),
		zap.Float64("changeOnset", r.ChangeOnsetTime),
		zap.Int("changeIndex", r.ChangeIndex),
		zap.Bool("falseAlarm", r.IsFalseAlarm),
		zap.Bool("correct", r.Correct),
		zap.Int("response", r.Response),
		zap.Float64("clickOnset", r.ClickOnsetTime),
		zap.Float64("rt", r.ResponseTimeSec),
	}
}

// Writer receives flattened records
type Writer interface {
	Write(r Record) error
}

// Recorder turns classifier output into records and hands them to writers.
// It satisfies the classifier's persistence contract.
type Recorder struct {
	sessionID string
	writers   []Writer
	now       func() time.Time
}

// NewRecorder creates a recorder for one session
func NewRecorder(sessionID string, writers ...Writer) *Recorder {
	return &Recorder{sessionID: sessionID, writers: writers, now: time.Now}
}

// Add appends a writer
func (r *Recorder) Add(w Writer) {
	r.writers = append(r.writers, w)
}

// LogEvent writes the record to every writer. All writers are attempted; the
// joined error reports each failure.
func (r *Recorder) LogEvent(evt stimulus.Event, isFalseAlarm bool, fields stimulus.ResponseFields) error {
	rec := New(r.sessionID, evt, isFalseAlarm, fields, r.now())

	var errs []error
	for _, w := range r.writers {
		if err := w.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogWriter writes records to a zap logger
type LogWriter struct {
	log *zap.Logger
}

// NewLogWriter creates a writer logging at info level
func NewLogWriter(log *zap.Logger) *LogWriter {
	return &LogWriter{log: log.Named("events")}
}

func (w *LogWriter) Write(r Record) error {
	w.log.Info("Response record", r.fields()...)
	return nil
}
