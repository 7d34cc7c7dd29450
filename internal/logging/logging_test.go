// ABOUTME: Tests for logger construction and the GORM adapter
// ABOUTME: Uses zap observer cores to check what reaches the log
package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInitWritesToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, err := Init(Options{Directory: dir, MaxSize: 1})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
}

func newObserved(level logger.LogLevel) (*GormZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormZapLogger(zap.New(core)).LogMode(level).(*GormZapLogger)
	return l, logs
}

func TestGormTraceLevels(t *testing.T) {
	sql := func() (string, int64) { return "INSERT INTO beep_events ...", 1 }

	tests := []struct {
		name  string
		mode  logger.LogLevel
		begin time.Time
		err   error
		want  zapcore.Level
		count int
	}{
		{"error", logger.Warn, time.Now(), errors.New("boom"), zapcore.ErrorLevel, 1},
		{"record not found ignored", logger.Warn, time.Now(), gorm.ErrRecordNotFound, 0, 0},
		{"slow", logger.Warn, time.Now().Add(-time.Second), nil, zapcore.WarnLevel, 1},
		{"fast at warn", logger.Warn, time.Now(), nil, 0, 0},
		{"fast at info", logger.Info, time.Now(), nil, zapcore.DebugLevel, 1},
		{"silent", logger.Silent, time.Now(), errors.New("boom"), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, logs := newObserved(tt.mode)
			l.Trace(context.Background(), tt.begin, sql, tt.err)

			if logs.Len() != tt.count {
				t.Fatalf("expected %d entries, got %d", tt.count, logs.Len())
			}
			if tt.count > 0 && logs.All()[0].Level != tt.want {
				t.Errorf("expected level %v, got %v", tt.want, logs.All()[0].Level)
			}
		})
	}
}
