// ABOUTME: mDNS discovery for the marker stream
// ABOUTME: The session runner advertises its stream; recording machines browse for it
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the mDNS service type of the marker stream
const ServiceType = "_rhythmstim-markers._tcp"

const browseTimeout = 3 * time.Second

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // websocket path, published as a TXT record
	SessionID   string
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	streams chan *StreamInfo
}

// StreamInfo describes a discovered marker stream
type StreamInfo struct {
	Name      string
	Host      string
	Port      int
	Path      string
	SessionID string
}

// URL returns the websocket URL of the stream
func (s *StreamInfo) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), s.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		log:     log.Named("discovery"),
		ctx:     ctx,
		cancel:  cancel,
		streams: make(chan *StreamInfo, 10),
	}
}

func (m *Manager) txt() []string {
	txt := []string{"path=" + m.config.Path}
	if m.config.SessionID != "" {
		txt = append(txt, "session="+m.config.SessionID)
	}
	return txt
}

// Advertise publishes the marker stream until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Info("Advertising marker stream",
		zap.String("name", m.config.ServiceName),
		zap.Int("port", m.config.Port),
		zap.String("type", ServiceType))

	go func() {
		<-m.ctx.Done()
		_ = server.Shutdown()
	}()

	return nil
}

// Browse searches for marker streams in the background
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				info := streamFromEntry(entry)
				if info == nil {
					continue
				}
				m.log.Info("Discovered marker stream",
					zap.String("name", info.Name),
					zap.String("url", info.URL()))

				select {
				case m.streams <- info:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service:             ServiceType,
			Domain:              "local",
			Timeout:             browseTimeout,
			Entries:             entries,
			WantUnicastResponse: false,
		}

		if err := mdns.Query(params); err != nil {
			m.log.Debug("mDNS query failed", zap.Error(err))
		}
		close(entries)
		<-done
	}
}

// streamFromEntry converts a browse result. Entries without an IPv4 address
// are skipped.
func streamFromEntry(entry *mdns.ServiceEntry) *StreamInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	info := &StreamInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: "/",
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			info.Path = value
		case "session":
			info.SessionID = value
		}
	}
	return info
}

// Streams returns the channel of discovered streams
func (m *Manager) Streams() <-chan *StreamInfo {
	return m.streams
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
