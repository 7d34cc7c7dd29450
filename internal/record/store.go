// ABOUTME: Postgres event store using gorm
// ABOUTME: One row per session and one row per classified response
package record

import (
	"fmt"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/logging"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SessionRow is a stored session
type SessionRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Participant string `gorm:"index"`
	Mapping     string
	StartedAt   time.Time
	EndedAt     *time.Time
}

func (SessionRow) TableName() string { return "sessions" }

// EventRow is a stored response record
type EventRow struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:36;index:idx_events_session_trial"`
	Trial      int    `gorm:"index:idx_events_session_trial"`
	Block      int
	TrialID    int
	BlockType  int
	Stationary bool

	BaseFrequencyHz float64
	BaseISIMs       float64
	DeltaMs         float64
	Direction       string `gorm:"size:8"`
	ChangeOnsetTime float64
	ChangeIndex     int
	IsFalseAlarm    bool

	Correct         bool
	Response        int
	ClickOnsetTime  float64
	ResponseTimeSec float64

	LoggedAt time.Time
}

func (EventRow) TableName() string { return "beep_events" }

func rowFromRecord(r Record) EventRow {
	return EventRow{
		SessionID:       r.SessionID,
		Trial:           r.Trial,
		Block:           r.Block,
		TrialID:         r.TrialID,
		BlockType:       r.BlockType,
		Stationary:      r.Stationary,
		BaseFrequencyHz: r.BaseFrequencyHz,
		BaseISIMs:       r.BaseISIMs,
		DeltaMs:         r.DeltaMs,
		Direction:       r.Direction,
		ChangeOnsetTime: r.ChangeOnsetTime,
		ChangeIndex:     r.ChangeIndex,
		IsFalseAlarm:    r.IsFalseAlarm,
		Correct:         r.Correct,
		Response:        r.Response,
		ClickOnsetTime:  r.ClickOnsetTime,
		ResponseTimeSec: r.ResponseTimeSec,
		LoggedAt:        r.LoggedAt,
	}
}

// Store persists sessions and events
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to postgres and migrates the schema
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormZapLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("Database connection established")

	return NewStore(db, log)
}

// NewStore wraps an open gorm handle and migrates the schema
func NewStore(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&SessionRow{}, &EventRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("Database migrations completed")
	return &Store{db: db, log: log}, nil
}

// BeginSession stores the session header
func (s *Store) BeginSession(sess Session) error {
	row := SessionRow{
		ID:          sess.ID,
		Participant: sess.Participant,
		Mapping:     sess.Mapping,
		StartedAt:   sess.StartedAt,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// EndSession stamps the session end time
func (s *Store) EndSession(id string, at time.Time) error {
	err := s.db.Model(&SessionRow{}).Where("id = ?", id).Update("ended_at", at).Error
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *Store) Write(r Record) error {
	row := rowFromRecord(r)
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
