package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// SectionIDTelemetry is the identifier for the tracing section
	SectionIDTelemetry = "telemetry"

	defaultTelemetryEnabled = false
	defaultOTLPEndpoint     = "localhost:4317"
	defaultServiceName      = "tabwire"
	defaultSampleRate       = 1.0
)

// TelemetrySettings controls the OTLP trace exporter.
type TelemetrySettings struct {
	Enabled      bool
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
	SampleRate   float64
}

// DefaultTelemetrySettings returns tracing disabled with local collector defaults.
func DefaultTelemetrySettings() TelemetrySettings {
	return TelemetrySettings{
		Enabled:      defaultTelemetryEnabled,
		OTLPEndpoint: defaultOTLPEndpoint,
		Insecure:     true,
		ServiceName:  defaultServiceName,
		SampleRate:   defaultSampleRate,
	}
}

// Validate checks the settings. Disabled settings are always valid.
func (t TelemetrySettings) Validate() error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.OTLPEndpoint) == "" {
		return fmt.Errorf("otlp_endpoint is required when telemetry is enabled")
	}
	if strings.TrimSpace(t.ServiceName) == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %v", t.SampleRate)
	}
	return nil
}

// TelemetrySection manages trace export settings.
type TelemetrySection struct {
	settings TelemetrySettings
	mu       sync.RWMutex
}

// NewTelemetrySection creates a telemetry section with default settings.
func NewTelemetrySection() *TelemetrySection {
	return &TelemetrySection{settings: DefaultTelemetrySettings()}
}

// ID returns the section identifier.
func (s *TelemetrySection) ID() string {
	return SectionIDTelemetry
}

// Title returns the section title.
func (s *TelemetrySection) Title() string {
	return "Telemetry"
}

// Description returns the section description.
func (s *TelemetrySection) Description() string {
	return "OpenTelemetry trace export for tool dispatches."
}

// Data returns the current configuration data.
func (s *TelemetrySection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.settings
	return map[string]any{
		"enabled":       t.Enabled,
		"otlp_endpoint": t.OTLPEndpoint,
		"insecure":      t.Insecure,
		"service_name":  t.ServiceName,
		"sample_rate":   t.SampleRate,
	}
}

// SetData updates the configuration from the provided data.
// The section is left unchanged when any value is invalid.
func (s *TelemetrySection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	for key, value := range data {
		var err error
		switch key {
		case "enabled":
			next.Enabled, err = asBool(key, value)
		case "otlp_endpoint":
			next.OTLPEndpoint, err = asString(key, value)
		case "insecure":
			next.Insecure, err = asBool(key, value)
		case "service_name":
			next.ServiceName, err = asString(key, value)
		case "sample_rate":
			next.SampleRate, err = asFloat(key, value)
		}
		if err != nil {
			return err
		}
	}

	s.settings = next
	return nil
}

// Validate validates the current configuration.
func (s *TelemetrySection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Validate()
}

// Reset resets the section to default configuration.
func (s *TelemetrySection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultTelemetrySettings()
}

// Settings returns a snapshot of the current settings.
func (s *TelemetrySection) Settings() TelemetrySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}
