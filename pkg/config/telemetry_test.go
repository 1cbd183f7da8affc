package config

import (
	"strings"
	"testing"
)

func TestTelemetrySection_Defaults(t *testing.T) {
	s := NewTelemetrySection().Settings()

	if s.Enabled {
		t.Error("Expected telemetry off by default")
	}
	if s.OTLPEndpoint != "localhost:4317" || s.ServiceName != "tabwire" || s.SampleRate != 1 {
		t.Errorf("Unexpected defaults: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestTelemetrySection_SetData(t *testing.T) {
	s := NewTelemetrySection()
	err := s.SetData(map[string]any{
		"enabled":       true,
		"otlp_endpoint": "collector:4317",
		"sample_rate":   float64(0.25),
		"insecure":      false,
	})
	if err != nil {
		t.Fatalf("SetData failed: %v", err)
	}

	got := s.Settings()
	if !got.Enabled || got.OTLPEndpoint != "collector:4317" || got.SampleRate != 0.25 || got.Insecure {
		t.Errorf("Values not applied: %+v", got)
	}

	if err := s.SetData(map[string]any{"enabled": false, "sample_rate": "lots"}); err == nil {
		t.Fatal("Expected type error for sample_rate")
	}
	if !s.Settings().Enabled {
		t.Error("Section changed despite invalid data")
	}

	s.Reset()
	if s.Settings().Enabled {
		t.Error("Reset did not restore defaults")
	}
}

func TestTelemetrySettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TelemetrySettings)
		wantErr string
	}{
		{name: "disabled ignores bad values", mutate: func(s *TelemetrySettings) { s.SampleRate = 7 }},
		{name: "missing endpoint", mutate: func(s *TelemetrySettings) { s.Enabled = true; s.OTLPEndpoint = " " }, wantErr: "otlp_endpoint"},
		{name: "missing service", mutate: func(s *TelemetrySettings) { s.Enabled = true; s.ServiceName = "" }, wantErr: "service_name"},
		{name: "sample rate range", mutate: func(s *TelemetrySettings) { s.Enabled = true; s.SampleRate = 1.5 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultTelemetrySettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
