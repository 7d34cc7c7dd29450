// ABOUTME: Tests for marker stream discovery
// ABOUTME: Tests TXT records and browse result conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "rig-1", Port: 8930, Path: "/markers"}, nil)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestTXTRecords(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{"path only", Config{Path: "/markers"}, []string{"path=/markers"}},
		{"with session", Config{Path: "/markers", SessionID: "abc"}, []string{"path=/markers", "session=abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewManager(tt.config, nil).txt()
			if len(got) != len(tt.want) {
				t.Fatalf("txt() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("txt()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStreamFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "rig-1." + ServiceType + ".local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8930,
		InfoFields: []string{"path=/markers", "session=s-1", "junk"},
	}

	info := streamFromEntry(entry)
	if info == nil {
		t.Fatal("expected stream info")
	}
	if info.Name != "rig-1" || info.Host != "192.168.1.20" || info.Port != 8930 {
		t.Errorf("info = %+v", info)
	}
	if info.Path != "/markers" || info.SessionID != "s-1" {
		t.Errorf("TXT fields = %+v", info)
	}
	if got := info.URL(); got != "ws://192.168.1.20:8930/markers" {
		t.Errorf("URL() = %q", got)
	}
}

func TestStreamFromEntrySkipsIPv6Only(t *testing.T) {
	if info := streamFromEntry(&mdns.ServiceEntry{Name: "x", Port: 1}); info != nil {
		t.Errorf("expected nil for entry without IPv4, got %+v", info)
	}
	if info := streamFromEntry(nil); info != nil {
		t.Error("expected nil for nil entry")
	}
}
