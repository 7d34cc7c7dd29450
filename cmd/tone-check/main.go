// ABOUTME: Audio check for the session rig
// ABOUTME: Plays the standard sequence and optionally a faster and a slower change
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/beeptrain"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/clock"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/config"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/output"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Config file")
	repeats    = flag.Int("repeats", 0, "Beeps per sequence (default: stimulus.standard_repetitions)")
	changes    = flag.Bool("changes", true, "Also play a faster and a slower sequence at the initial delta")
	volume     = flag.Int("volume", -1, "Output volume 0-100 (default: audio.volume)")
)

type sequence struct {
	name  string
	isiMs float64
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	stimCfg := cfg.ToStimulus()
	beep, err := tone.ForConfig(stimCfg, cfg.Audio.SampleRate)
	if err != nil {
		logger.Fatal("Failed to synthesize beep", zap.Error(err))
	}

	out := output.NewOto(logger)
	if err := out.Open(beep.Format()); err != nil {
		logger.Fatal("Failed to open audio output", zap.Error(err))
	}
	defer func() { _ = out.Close() }()

	vol := cfg.Audio.Volume
	if *volume >= 0 {
		vol = *volume
	}
	out.SetVolume(vol)

	sched, err := beeptrain.New(stimCfg, beep, out, beeptrain.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := *repeats
	if n <= 0 {
		n = stimCfg.StandardRepetitions
	}

	sequences := []sequence{{"standard", stimCfg.BaseISIMs}}
	if *changes {
		delta := stimCfg.ClampDelta(stimCfg.InitialDeltaMs)
		sequences = append(sequences,
			sequence{"faster", stimulus.ChangedISIMs(stimCfg, delta, true)},
			sequence{"slower", stimulus.ChangedISIMs(stimCfg, delta, false)})
	}

	clk := clock.NewTrial()
	clk.Start()

	for _, seq := range sequences {
		logger.Info("Playing sequence",
			zap.String("sequence", seq.name),
			zap.Int("beeps", n),
			zap.Float64("isiMs", seq.isiMs))

		if err := sched.PlayStandardSequence(ctx, clk, n, seq.isiMs); err != nil {
			logger.Warn("Sequence interrupted", zap.Error(err))
			return
		}
		// a second of silence between sequences
		if err := clk.Sleep(ctx, stimulus.Seconds(1)); err != nil {
			return
		}
	}

	logger.Info("Tone check complete", zap.Float64("elapsedSec", clk.Now()))
}
