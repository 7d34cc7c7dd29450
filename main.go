// ABOUTME: Entry point for the tempo change detection session runner
// ABOUTME: Loads config, wires audio, staircase and recording, then runs the trial plan
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/beeptrain"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/clock"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/config"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/discovery"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/input"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/logging"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/record"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/response"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/session"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/staircase"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/ui"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/version"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/output"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/audio/tone"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "", "Config file (default: ./rhythmstim.yaml or ./config/rhythmstim.yaml)")
	participant = flag.String("participant", "", "Participant ID (overrides config)")
	dryRun      = flag.Bool("dry-run", false, "Discard audio instead of opening the sound device")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI; trials start automatically and nobody responds")
	markers     = flag.Bool("markers", false, "Serve the websocket marker stream (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *participant != "" {
		cfg.Session.Participant = *participant
	}
	if *dryRun {
		cfg.Audio.DryRun = true
	}
	if *markers {
		cfg.Markers.Enabled = true
	}

	useTUI := !*noTUI

	// TUI mode: log only to file
	logger, err := logging.Init(logging.Options{
		Directory:  cfg.Logging.Directory,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !useTUI,
		Debug:      cfg.Logging.Debug,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, useTUI, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Session failed", zap.Error(err))
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "session failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, useTUI bool, logger *zap.Logger) error {
	seed := cfg.Session.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	mapping, err := chooseMapping(cfg.Session.ResponseMapping, rng)
	if err != nil {
		return err
	}

	info := session.NewInfo(cfg.Session.Participant, mapping)
	logger = logger.With(zap.String("session", info.ID))
	logger.Info("Starting session",
		zap.String("version", version.String()),
		zap.String("participant", info.Participant),
		zap.String("mapping", info.Mapping),
		zap.Uint64("seed", seed))

	stimCfg := cfg.ToStimulus()
	beep, err := tone.ForConfig(stimCfg, cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("synthesize beep: %w", err)
	}

	out, err := openOutput(cfg, beep, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("Error closing audio output", zap.Error(err))
		}
	}()

	sched, err := beeptrain.New(stimCfg, beep, out,
		beeptrain.WithRand(rng),
		beeptrain.WithLogger(logger.Named("train")))
	if err != nil {
		return err
	}

	stair := staircase.NewController(cfg.ToStaircase(), logger.Named("staircase"))
	keyboard := input.NewKeyboard(input.DefaultHold)

	recorder := record.NewRecorder(info.ID, record.NewLogWriter(logger))

	if dsn := cfg.Database.DSN(); dsn != "" {
		store, err := record.Open(dsn, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.BeginSession(info); err != nil {
			return err
		}
		defer func() {
			if err := store.EndSession(info.ID, time.Now().UTC()); err != nil {
				logger.Warn("Error closing session row", zap.Error(err))
			}
		}()
		recorder.Add(store)
	}

	var publisher session.Publisher
	if cfg.Markers.Enabled {
		ms, stop, err := startMarkers(cfg, info, logger)
		if err != nil {
			return err
		}
		defer stop()
		recorder.Add(ms)
		publisher = ms
	}

	var console *ui.Console
	var feedback response.Feedback
	if useTUI {
		var audioCtl ui.Audio
		if oto, ok := out.(*output.Oto); ok {
			audioCtl = oto
		}
		console = ui.New(version.Product+" session "+info.Participant, info.Mapping, keyboard, audioCtl)
		feedback = response.FeedbackFunc(console.ShowFeedback)
	}

	classifier, err := response.New(response.Deps{
		Staircase:   stair,
		Persistence: recorder,
		Delta:       sched,
		Feedback:    feedback,
		Logger:      logger.Named("response"),
	}, mapping, cfg.Session.PracticeCutoff)
	if err != nil {
		return err
	}

	plan, err := session.BuildPlan(cfg.Session.BlockTypes, cfg.Session.TrialsPerBlock)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Config{
		TrialDurationSec:    cfg.Session.TrialDurationSec,
		StandardRepetitions: stimCfg.StandardRepetitions,
	}, plan, session.Deps{
		Scheduler: sched,
		Clock:     clock.NewTrial(),
		Input:     keyboard,
		Responder: classifier,
		Staircase: stair,
		Markers:   publisher,
		Logger:    logger.Named("session"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	var quit <-chan struct{}
	if console != nil {
		go func() {
			if err := console.Run(); err != nil {
				logger.Error("TUI failed", zap.Error(err))
			}
		}()
		go statusUpdateLoop(ctx, sess, stair, console.Send)
		quit = console.QuitChan()
	} else {
		go autoStart(ctx, sess, keyboard)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-done:
	case <-quit:
		logger.Info("Received quit signal from TUI")
		cancel()
		sched.Stop()
		err = <-done
	case <-sigChan:
		logger.Info("Shutdown signal received")
		cancel()
		sched.Stop()
		err = <-done
	}
	if console != nil {
		console.Quit()
	}

	logger.Info("Session stopped",
		zap.Int("completed", sess.Status().Completed),
		zap.Any("staircase", stair.Snapshot()))
	return err
}

func chooseMapping(setting string, rng *rand.Rand) (response.Mapping, error) {
	if setting == "" || setting == "random" {
		return response.RandomMapping(rng), nil
	}
	return response.ParseMapping(setting)
}

func openOutput(cfg *config.Config, beep *tone.Buffer, logger *zap.Logger) (output.Output, error) {
	if cfg.Audio.DryRun {
		logger.Info("Dry run: audio discarded")
		out := output.NewDiscard()
		return out, out.Open(beep.Format())
	}

	out := output.NewOto(logger.Named("audio"))
	if err := out.Open(beep.Format()); err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	out.SetVolume(cfg.Audio.Volume)
	return out, nil
}

func startMarkers(cfg *config.Config, info record.Session, logger *zap.Logger) (*record.MarkerServer, func(), error) {
	ms := record.NewMarkerServer(info, logger)
	addr, err := ms.Start(fmt.Sprintf(":%d", cfg.Markers.Port))
	if err != nil {
		return nil, nil, err
	}

	var disc *discovery.Manager
	if cfg.Markers.MDNS {
		disc = discovery.NewManager(discovery.Config{
			ServiceName: cfg.Markers.Name,
			Port:        addr.(*net.TCPAddr).Port,
			Path:        record.MarkerPath,
			SessionID:   info.ID,
		}, logger)
		if err := disc.Advertise(); err != nil {
			logger.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	stop := func() {
		if disc != nil {
			disc.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ms.Shutdown(ctx); err != nil {
			logger.Warn("Marker server shutdown", zap.Error(err))
		}
	}
	return ms, stop, nil
}

// statusUpdateLoop periodically pushes session state to the TUI
func statusUpdateLoop(ctx context.Context, sess *session.Session, stair *staircase.Controller, send func(msg tea.Msg)) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// staircase snapshots only change between changes
	stairTicker := time.NewTicker(time.Second)
	defer stairTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stairTicker.C:
			send(ui.StatusMsg{Session: sess.Status(), Staircase: stair.Snapshot()})
		case <-ticker.C:
			send(ui.StatusMsg{Session: sess.Status()})
		}
	}
}

// autoStart requests each trial as soon as the session is waiting for one
func autoStart(ctx context.Context, sess *session.Session, keyboard *input.Keyboard) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sess.Status().Phase == session.PhaseWaiting {
				keyboard.RequestStart()
			}
		}
	}
}
