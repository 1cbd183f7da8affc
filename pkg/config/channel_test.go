package config

import (
	"strings"
	"testing"
	"time"
)

func TestChannelSection_Defaults(t *testing.T) {
	s := NewChannelSection().Settings()

	if s.ServerURL != "ws://localhost:8080/ws" {
		t.Errorf("Unexpected default server_url %q", s.ServerURL)
	}
	if !s.AutoConnect {
		t.Error("Expected auto-connect on by default")
	}
	if s.KeepaliveInterval != 20*time.Second || s.AutoConnectInterval != 10*time.Second {
		t.Errorf("Unexpected keepalive/monitor intervals: %v %v", s.KeepaliveInterval, s.AutoConnectInterval)
	}
	if s.ReconnectBaseDelay != time.Second || s.ReconnectMaxDelay != 10*time.Second || s.MaxReconnectAttempts != 10 {
		t.Errorf("Unexpected reconnect policy: %v %v %d", s.ReconnectBaseDelay, s.ReconnectMaxDelay, s.MaxReconnectAttempts)
	}
	if s.AgentTimeout != 300*time.Second || s.StopTimeout != 5*time.Second || s.ScriptTimeout != 30*time.Second || s.RequestTimeout != 10*time.Second {
		t.Errorf("Unexpected call timeouts: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestChannelSection_SetData(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		check   func(t *testing.T, s ChannelSettings)
		wantErr string
	}{
		{
			name: "duration strings and numbers",
			data: map[string]any{
				"keepalive_interval":     "5s",
				"agent_timeout":          float64(2 * time.Minute),
				"max_reconnect_attempts": float64(3),
			},
			check: func(t *testing.T, s ChannelSettings) {
				if s.KeepaliveInterval != 5*time.Second || s.AgentTimeout != 2*time.Minute || s.MaxReconnectAttempts != 3 {
					t.Errorf("Values not applied: %+v", s)
				}
			},
		},
		{
			name: "unknown keys are ignored",
			data: map[string]any{"future_option": true, "auto_connect": false},
			check: func(t *testing.T, s ChannelSettings) {
				if s.AutoConnect {
					t.Error("auto_connect not applied")
				}
			},
		},
		{
			name:    "bad bool",
			data:    map[string]any{"auto_connect": "yes"},
			wantErr: "expected bool",
		},
		{
			name:    "fractional attempts",
			data:    map[string]any{"max_reconnect_attempts": 2.5},
			wantErr: "expected integer",
		},
		{
			name:    "bad duration",
			data:    map[string]any{"dial_timeout": "forever"},
			wantErr: "dial_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := NewChannelSection()
			err := section.SetData(tt.data)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				if section.Settings() != DefaultChannelSettings() {
					t.Error("Section should be unchanged after a rejected update")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetData failed: %v", err)
			}
			tt.check(t, section.Settings())
		})
	}
}

func TestChannelSection_DataRoundTrip(t *testing.T) {
	src := NewChannelSection()
	_ = src.SetData(map[string]any{"server_url": "wss://a.test/ws", "stop_timeout": "2s"})

	dst := NewChannelSection()
	if err := dst.SetData(src.Data()); err != nil {
		t.Fatalf("SetData(Data()) failed: %v", err)
	}
	if dst.Settings() != src.Settings() {
		t.Errorf("Round trip mismatch: %+v vs %+v", dst.Settings(), src.Settings())
	}
}

func TestChannelSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ChannelSettings)
		want   string
	}{
		{"http scheme", func(c *ChannelSettings) { c.ServerURL = "http://localhost/ws" }, "ws or wss"},
		{"no host", func(c *ChannelSettings) { c.ServerURL = "ws:///ws" }, "no host"},
		{"zero keepalive", func(c *ChannelSettings) { c.KeepaliveInterval = 0 }, "keepalive_interval"},
		{"base above cap", func(c *ChannelSettings) { c.ReconnectBaseDelay = time.Minute }, "exceeds"},
		{"no attempts", func(c *ChannelSettings) { c.MaxReconnectAttempts = 0 }, "max_reconnect_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultChannelSettings()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestChannelSection_Reset(t *testing.T) {
	s := NewChannelSection()
	s.SetAutoConnect(false)
	s.SetServerURL("wss://elsewhere.test")
	s.Reset()
	if s.Settings() != DefaultChannelSettings() {
		t.Error("Reset should restore defaults")
	}
}
