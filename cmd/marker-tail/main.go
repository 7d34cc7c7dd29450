// ABOUTME: Marker stream viewer
// ABOUTME: Finds a session runner via mDNS (or -url) and prints its markers
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/discovery"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	url     = flag.String("url", "", "Marker stream URL (skip mDNS), e.g. ws://rig:8930/markers")
	timeout = flag.Duration("timeout", 10*time.Second, "How long to browse for a stream")
	raw     = flag.Bool("raw", false, "Print raw JSON")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := *url
	if target == "" {
		disc := discovery.NewManager(discovery.Config{}, logger)
		disc.Browse()
		defer disc.Stop()

		select {
		case stream := <-disc.Streams():
			target = stream.URL()
			logger.Info("Discovered marker stream",
				zap.String("name", stream.Name),
				zap.String("session", stream.SessionID))
		case <-time.After(*timeout):
			logger.Fatal("No marker stream found", zap.Duration("timeout", *timeout))
		case <-ctx.Done():
			return
		}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		logger.Fatal("Failed to connect", zap.String("url", target), zap.Error(err))
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Stream closed", zap.Error(err))
			}
			return
		}
		printMarker(data)
	}
}

type marker struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

func printMarker(data []byte) {
	if *raw {
		fmt.Println(string(data))
		return
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%s  %-14s %s\n", m.Time.Format("15:04:05.000"), m.Type, m.Payload)
}
