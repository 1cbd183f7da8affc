package config

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

const (
	// SectionIDChannel is the identifier for the channel settings section
	SectionIDChannel = "channel"

	defaultServerURL            = "ws://localhost:8080/ws"
	defaultAutoConnect          = true
	defaultKeepaliveInterval    = 20 * time.Second
	defaultAutoConnectInterval  = 10 * time.Second
	defaultReconnectBaseDelay   = 1 * time.Second
	defaultReconnectMaxDelay    = 10 * time.Second
	defaultMaxReconnectAttempts = 10
	defaultDialTimeout          = 10 * time.Second
	defaultAgentTimeout         = 300 * time.Second
	defaultRequestTimeout       = 10 * time.Second
	defaultStopTimeout          = 5 * time.Second
	defaultScriptTimeout        = 30 * time.Second
)

// ChannelSettings is an immutable snapshot of the channel section.
type ChannelSettings struct {
	ServerURL            string
	AutoConnect          bool
	KeepaliveInterval    time.Duration
	AutoConnectInterval  time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
	AgentTimeout         time.Duration
	RequestTimeout       time.Duration
	StopTimeout          time.Duration
	ScriptTimeout        time.Duration
}

// DefaultChannelSettings returns the built-in channel defaults.
func DefaultChannelSettings() ChannelSettings {
	return ChannelSettings{
		ServerURL:            defaultServerURL,
		AutoConnect:          defaultAutoConnect,
		KeepaliveInterval:    defaultKeepaliveInterval,
		AutoConnectInterval:  defaultAutoConnectInterval,
		ReconnectBaseDelay:   defaultReconnectBaseDelay,
		ReconnectMaxDelay:    defaultReconnectMaxDelay,
		MaxReconnectAttempts: defaultMaxReconnectAttempts,
		DialTimeout:          defaultDialTimeout,
		AgentTimeout:         defaultAgentTimeout,
		RequestTimeout:       defaultRequestTimeout,
		StopTimeout:          defaultStopTimeout,
		ScriptTimeout:        defaultScriptTimeout,
	}
}

// Validate checks the settings for values the channel cannot run with.
func (c ChannelSettings) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url must use ws or wss, got %q", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server_url has no host: %q", c.ServerURL)
	}

	var errs []error
	positive := map[string]time.Duration{
		"keepalive_interval":    c.KeepaliveInterval,
		"auto_connect_interval": c.AutoConnectInterval,
		"reconnect_base_delay":  c.ReconnectBaseDelay,
		"reconnect_max_delay":   c.ReconnectMaxDelay,
		"dial_timeout":          c.DialTimeout,
		"agent_timeout":         c.AgentTimeout,
		"request_timeout":       c.RequestTimeout,
		"stop_timeout":          c.StopTimeout,
		"script_timeout":        c.ScriptTimeout,
	}
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", key, d))
		}
	}
	if c.ReconnectBaseDelay > c.ReconnectMaxDelay {
		errs = append(errs, fmt.Errorf("reconnect_base_delay (%v) exceeds reconnect_max_delay (%v)", c.ReconnectBaseDelay, c.ReconnectMaxDelay))
	}
	if c.MaxReconnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_reconnect_attempts must be at least 1, got %d", c.MaxReconnectAttempts))
	}
	return errors.Join(errs...)
}

// ChannelSection manages the connection settings for the server channel.
type ChannelSection struct {
	settings ChannelSettings
	mu       sync.RWMutex
}

// NewChannelSection creates a channel section with default settings.
func NewChannelSection() *ChannelSection {
	return &ChannelSection{settings: DefaultChannelSettings()}
}

// ID returns the section identifier.
func (s *ChannelSection) ID() string {
	return SectionIDChannel
}

// Title returns the section title.
func (s *ChannelSection) Title() string {
	return "Channel"
}

// Description returns the section description.
func (s *ChannelSection) Description() string {
	return "Server address, reconnection policy, keepalive and call timeouts for the websocket channel."
}

// Data returns the current configuration data.
func (s *ChannelSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.settings
	return map[string]any{
		"server_url":             c.ServerURL,
		"auto_connect":           c.AutoConnect,
		"keepalive_interval":     c.KeepaliveInterval.String(),
		"auto_connect_interval":  c.AutoConnectInterval.String(),
		"reconnect_base_delay":   c.ReconnectBaseDelay.String(),
		"reconnect_max_delay":    c.ReconnectMaxDelay.String(),
		"max_reconnect_attempts": c.MaxReconnectAttempts,
		"dial_timeout":           c.DialTimeout.String(),
		"agent_timeout":          c.AgentTimeout.String(),
		"request_timeout":        c.RequestTimeout.String(),
		"stop_timeout":           c.StopTimeout.String(),
		"script_timeout":         c.ScriptTimeout.String(),
	}
}

// SetData updates the configuration from the provided data.
// The section is left unchanged when any value is invalid.
func (s *ChannelSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	durations := map[string]*time.Duration{
		"keepalive_interval":    &next.KeepaliveInterval,
		"auto_connect_interval": &next.AutoConnectInterval,
		"reconnect_base_delay":  &next.ReconnectBaseDelay,
		"reconnect_max_delay":   &next.ReconnectMaxDelay,
		"dial_timeout":          &next.DialTimeout,
		"agent_timeout":         &next.AgentTimeout,
		"request_timeout":       &next.RequestTimeout,
		"stop_timeout":          &next.StopTimeout,
		"script_timeout":        &next.ScriptTimeout,
	}

	for key, value := range data {
		var err error
		switch key {
		case "server_url":
			next.ServerURL, err = asString(key, value)
		case "auto_connect":
			next.AutoConnect, err = asBool(key, value)
		case "max_reconnect_attempts":
			next.MaxReconnectAttempts, err = asInt(key, value)
		default:
			target, ok := durations[key]
			if !ok {
				// Ignore unknown keys for forward compatibility
				continue
			}
			*target, err = asDuration(key, value)
		}
		if err != nil {
			return err
		}
	}

	s.settings = next
	return nil
}

// Validate validates the current configuration.
func (s *ChannelSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Validate()
}

// Reset resets the section to default configuration.
func (s *ChannelSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultChannelSettings()
}

// Settings returns a snapshot of the current settings.
func (s *ChannelSection) Settings() ChannelSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetServerURL overrides the server address.
func (s *ChannelSection) SetServerURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.ServerURL = u
}

// AutoConnect reports whether the auto-connect monitor should run.
func (s *ChannelSection) AutoConnect() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.AutoConnect
}

// SetAutoConnect changes the auto-connect preference in memory.
func (s *ChannelSection) SetAutoConnect(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.AutoConnect = enabled
}

// ChannelPreferences persists the auto-connect preference through a Manager.
type ChannelPreferences struct {
	manager *Manager
	section *ChannelSection
}

// NewChannelPreferences binds the channel section registered in m.
func NewChannelPreferences(m *Manager) (*ChannelPreferences, error) {
	section, ok := m.GetSection(SectionIDChannel)
	if !ok {
		return nil, fmt.Errorf("section %q not registered", SectionIDChannel)
	}
	channel, ok := section.(*ChannelSection)
	if !ok {
		return nil, fmt.Errorf("section %q has unexpected type %T", SectionIDChannel, section)
	}
	return &ChannelPreferences{manager: m, section: channel}, nil
}

// AutoConnect returns the stored preference.
func (p *ChannelPreferences) AutoConnect() bool {
	return p.section.AutoConnect()
}

// SetAutoConnect updates the preference and saves it to the store.
func (p *ChannelPreferences) SetAutoConnect(enabled bool) error {
	p.section.SetAutoConnect(enabled)
	return p.manager.SaveSection(SectionIDChannel)
}
