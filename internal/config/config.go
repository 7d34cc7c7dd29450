// ABOUTME: Session configuration loaded with viper
// ABOUTME: YAML file plus RHYTHMSTIM_ environment overrides on top of experiment defaults
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/staircase"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment overrides, e.g. RHYTHMSTIM_SESSION_PARTICIPANT
const EnvPrefix = "RHYTHMSTIM"

// Config is the top-level configuration
type Config struct {
	Stimulus  StimulusConfig  `mapstructure:"stimulus"`
	Session   SessionConfig   `mapstructure:"session"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Staircase StaircaseConfig `mapstructure:"staircase"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Markers   MarkersConfig   `mapstructure:"markers"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StimulusConfig holds tone and timing parameters
type StimulusConfig struct {
	BaseFrequencyHz      float64 `mapstructure:"base_frequency_hz"`
	BeepDurationMs       float64 `mapstructure:"beep_duration_ms"`
	BaseISIMs            float64 `mapstructure:"base_isi_ms"`
	Amplitude            float64 `mapstructure:"amplitude"`
	RampDurationMs       float64 `mapstructure:"ramp_duration_ms"`
	InitialDeltaMs       float64 `mapstructure:"initial_delta_ms"`
	MinDeltaMs           float64 `mapstructure:"min_delta_ms"`
	MaxDeltaMs           float64 `mapstructure:"max_delta_ms"`
	MinStandardPeriodSec float64 `mapstructure:"min_standard_period_sec"`
	MaxStandardPeriodSec float64 `mapstructure:"max_standard_period_sec"`
	DetectionWindowSec   float64 `mapstructure:"detection_window_sec"`
	StandardRepetitions  int     `mapstructure:"standard_repetitions"`
}

// SessionConfig holds per-session experiment settings
type SessionConfig struct {
	Participant      string  `mapstructure:"participant"`
	BlockTypes       []int   `mapstructure:"block_types"`
	TrialsPerBlock   int     `mapstructure:"trials_per_block"`
	PracticeCutoff   int     `mapstructure:"practice_cutoff"`
	TrialDurationSec float64 `mapstructure:"trial_duration_sec"`
	// ResponseMapping is "random", "left-faster" or "left-slower"
	ResponseMapping string `mapstructure:"response_mapping"`
	Seed            uint64 `mapstructure:"seed"` // 0 = time based
}

// AudioConfig holds output settings
type AudioConfig struct {
	SampleRate int  `mapstructure:"sample_rate"`
	Volume     int  `mapstructure:"volume"`
	DryRun     bool `mapstructure:"dry_run"`
}

// StaircaseConfig holds tracker settings
type StaircaseConfig struct {
	StepMs           float64 `mapstructure:"step_ms"`
	MinStepMs        float64 `mapstructure:"min_step_ms"`
	TargetCorrect    float64 `mapstructure:"target_correct"`
	HalvingReversals int     `mapstructure:"halving_reversals"`
}

// DatabaseConfig holds postgres settings. An empty host disables the store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MarkersConfig holds the marker stream settings
type MarkersConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Name    string `mapstructure:"name"`
	MDNS    bool   `mapstructure:"mdns"`
}

// LoggingConfig holds log rotation settings
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Debug      bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	s := stimulus.DefaultConfig()
	v.SetDefault("stimulus.base_frequency_hz", s.BaseFrequencyHz)
	v.SetDefault("stimulus.beep_duration_ms", s.BeepDurationMs)
	v.SetDefault("stimulus.base_isi_ms", s.BaseISIMs)
	v.SetDefault("stimulus.amplitude", s.Amplitude)
	v.SetDefault("stimulus.ramp_duration_ms", s.RampDurationMs)
	v.SetDefault("stimulus.initial_delta_ms", s.InitialDeltaMs)
	v.SetDefault("stimulus.min_delta_ms", s.MinDeltaMs)
	v.SetDefault("stimulus.max_delta_ms", s.MaxDeltaMs)
	v.SetDefault("stimulus.min_standard_period_sec", s.MinStandardPeriodSec)
	v.SetDefault("stimulus.max_standard_period_sec", s.MaxStandardPeriodSec)
	v.SetDefault("stimulus.detection_window_sec", s.DetectionWindowSec)
	v.SetDefault("stimulus.standard_repetitions", s.StandardRepetitions)

	v.SetDefault("session.participant", "anon")
	v.SetDefault("session.block_types", []int{0, 1, 2})
	v.SetDefault("session.trials_per_block", 20)
	v.SetDefault("session.practice_cutoff", 2)
	v.SetDefault("session.trial_duration_sec", 9.0)
	v.SetDefault("session.response_mapping", "random")
	v.SetDefault("session.seed", 0)

	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.volume", 100)
	v.SetDefault("audio.dry_run", false)

	sc := staircase.DefaultConfig()
	v.SetDefault("staircase.step_ms", sc.StepMs)
	v.SetDefault("staircase.min_step_ms", sc.MinStepMs)
	v.SetDefault("staircase.target_correct", sc.TargetCorrect)
	v.SetDefault("staircase.halving_reversals", sc.HalvingReversals)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "rhythmstim")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rhythmstim")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("markers.enabled", false)
	v.SetDefault("markers.port", 8930)
	v.SetDefault("markers.name", "rhythmstim")
	v.SetDefault("markers.mdns", true)

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.debug", false)
}

// Load reads configuration from path (optional) and the environment
func Load(path string, log *zap.Logger) (*Config, error) {
	if log == nil {
		log = zap.NewNop()
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		v.SetConfigName("rhythmstim")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info("Configuration loaded", zap.String("file", v.ConfigFileUsed()))
	return &cfg, nil
}

// Validate checks the settings the stimulus layer does not cover
func (c *Config) Validate() error {
	if err := c.ToStimulus().Validate(); err != nil {
		return err
	}
	if c.Session.TrialDurationSec <= 0 {
		return fmt.Errorf("%w: trial duration must be > 0", stimulus.ErrInvalidConfig)
	}
	if c.Session.TrialsPerBlock <= 0 {
		return fmt.Errorf("%w: trials per block must be > 0", stimulus.ErrInvalidConfig)
	}
	if len(c.Session.BlockTypes) == 0 {
		return fmt.Errorf("%w: no block types", stimulus.ErrInvalidConfig)
	}
	for _, bt := range c.Session.BlockTypes {
		if bt < 0 || bt > 2 {
			return fmt.Errorf("%w: block type %d not in 0..2", stimulus.ErrInvalidConfig, bt)
		}
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0", stimulus.ErrInvalidConfig)
	}
	if t := c.Staircase.TargetCorrect; t <= 0 || t >= 1 {
		return fmt.Errorf("%w: staircase target must be in (0,1), got %v", stimulus.ErrInvalidConfig, t)
	}
	return nil
}

// ToStimulus converts the stimulus section
func (c *Config) ToStimulus() stimulus.Config {
	s := c.Stimulus
	return stimulus.Config{
		BaseFrequencyHz:      s.BaseFrequencyHz,
		BeepDurationMs:       s.BeepDurationMs,
		BaseISIMs:            s.BaseISIMs,
		Amplitude:            s.Amplitude,
		RampDurationMs:       s.RampDurationMs,
		InitialDeltaMs:       s.InitialDeltaMs,
		MinDeltaMs:           s.MinDeltaMs,
		MaxDeltaMs:           s.MaxDeltaMs,
		MinStandardPeriodSec: s.MinStandardPeriodSec,
		MaxStandardPeriodSec: s.MaxStandardPeriodSec,
		DetectionWindowSec:   s.DetectionWindowSec,
		StandardRepetitions:  s.StandardRepetitions,
	}
}

// ToStaircase builds tracker settings sharing the stimulus delta range
func (c *Config) ToStaircase() staircase.Config {
	return staircase.Config{
		InitialDeltaMs:   c.Stimulus.InitialDeltaMs,
		MinDeltaMs:       c.Stimulus.MinDeltaMs,
		MaxDeltaMs:       c.Stimulus.MaxDeltaMs,
		StepMs:           c.Staircase.StepMs,
		MinStepMs:        c.Staircase.MinStepMs,
		TargetCorrect:    c.Staircase.TargetCorrect,
		HalvingReversals: c.Staircase.HalvingReversals,
	}
}

// DSN returns the postgres connection string, or "" when the store is off
func (d DatabaseConfig) DSN() string {
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}
