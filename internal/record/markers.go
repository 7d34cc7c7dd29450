// ABOUTME: WebSocket marker stream for external recording equipment
// ABOUTME: Broadcasts session, trial and response markers to every connected client
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Marker types
const (
	MarkerHello      = "server/hello"
	MarkerTrialStart = "trial/start"
	MarkerTrialEnd   = "trial/end"
	MarkerResponse   = "response"
)

// MarkerPath is the websocket endpoint
const MarkerPath = "/markers"

const (
	clientBuffer  = 64
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Marker is one message on the stream
type Marker struct {
	Type    string      `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// TrialMarker is the payload of trial/start and trial/end
type TrialMarker struct {
	Trial     int     `json:"trial"`
	Block     int     `json:"block"`
	BlockType int     `json:"block_type"`
	TrialTime float64 `json:"trial_time"`
}

type markerClient struct {
	id       string
	conn     *websocket.Conn
	sendChan chan Marker
}

// MarkerServer serves the marker stream
type MarkerServer struct {
	session  Session
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	// clientsMu guards clients and closed. Writers are added to wg only
	// under it so Shutdown never waits on a late registration.
	clientsMu sync.RWMutex
	clients   map[string]*markerClient
	closed    bool

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// NewMarkerServer creates a marker stream for sess
func NewMarkerServer(sess Session, log *zap.Logger) *MarkerServer {
	return &MarkerServer{
		session: sess,
		log:     log.Named("markers"),
		upgrader: websocket.Upgrader{
			// Clients are recording machines on the lab network, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:     time.Now,
		clients: make(map[string]*markerClient),
	}
}

// Handler returns the HTTP handler serving MarkerPath
func (s *MarkerServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(MarkerPath, s.handleWebSocket)
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *MarkerServer) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler()}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Marker server failed", zap.Error(err))
		}
	}()

	s.log.Info("Marker stream listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Shutdown closes the listener and every client connection
func (s *MarkerServer) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.clientsMu.Lock()
	s.closed = true
	for _, c := range s.clients {
		_ = c.conn.Close()
	}
	s.clientsMu.Unlock()

	s.wg.Wait()
	return err
}

// ClientCount returns the number of connected clients
func (s *MarkerServer) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Publish queues a marker for every client. Slow clients drop markers
// rather than stall the beep train.
func (s *MarkerServer) Publish(markerType string, payload interface{}) {
	m := Marker{Type: markerType, Time: s.now(), Payload: payload}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		select {
		case c.sendChan <- m:
		default:
			s.log.Warn("Marker dropped for slow client",
				zap.String("client", c.id),
				zap.String("type", markerType))
		}
	}
}

// Write publishes a response record
func (s *MarkerServer) Write(r Record) error {
	s.Publish(MarkerResponse, r)
	return nil
}

func (s *MarkerServer) isClosed() bool {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.closed
}

func (s *MarkerServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "marker stream shut down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	s.log.Info("Marker client connected", zap.String("remote", r.RemoteAddr))
	s.handleConnection(conn)
}

func (s *MarkerServer) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	client := &markerClient{
		id:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan Marker, clientBuffer),
	}

	// hello is queued before registration so it is always first
	client.sendChan <- Marker{Type: MarkerHello, Time: s.now(), Payload: s.session}

	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		s.log.Debug("Marker client rejected after shutdown", zap.String("client", client.id))
		return
	}
	s.clients[client.id] = client
	s.wg.Add(1)
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer s.wg.Done()
		s.clientWriter(client, done)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.id)
		s.clientsMu.Unlock()
		close(done)
		s.log.Info("Marker client disconnected", zap.String("client", client.id))
	}()

	// The stream is one way; reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Marker client read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *MarkerServer) clientWriter(client *markerClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case m := <-client.sendChan:
			data, err := json.Marshal(m)
			if err != nil {
				s.log.Error("Marshal marker", zap.Error(err))
				continue
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Marker write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
