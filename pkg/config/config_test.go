package config

import (
	"path/filepath"
	"testing"
)

func resetGlobal() {
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
}

func TestInitialize(t *testing.T) {
	t.Run("registers channel, browser and telemetry sections", func(t *testing.T) {
		resetGlobal()
		defer resetGlobal()

		if err := Initialize(filepath.Join(t.TempDir(), "config.json")); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		if !IsInitialized() {
			t.Fatal("Global manager should be initialized")
		}

		sections := Global().GetSections()
		if len(sections) != 3 || sections[0].ID() != SectionIDChannel || sections[1].ID() != SectionIDBrowser || sections[2].ID() != SectionIDTelemetry {
			t.Errorf("Unexpected sections: %v", sections)
		}
		if GetChannel() == nil || GetBrowser() == nil || TelemetryOf(Global()) == nil {
			t.Error("Typed getters should return the registered sections")
		}
	})

	t.Run("loads saved configuration", func(t *testing.T) {
		resetGlobal()
		defer resetGlobal()
		configPath := filepath.Join(t.TempDir(), "config.json")

		if err := Initialize(configPath); err != nil {
			t.Fatalf("First initialize failed: %v", err)
		}
		GetChannel().SetServerURL("wss://relay.example.test/ws")
		GetBrowser().SetHeadless(true)
		if err := Global().SaveAll(); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}

		resetGlobal()
		if err := Initialize(configPath); err != nil {
			t.Fatalf("Re-initialize failed: %v", err)
		}
		if got := GetChannel().Settings().ServerURL; got != "wss://relay.example.test/ws" {
			t.Errorf("Expected saved server_url, got %q", got)
		}
		if !GetBrowser().Settings().Headless {
			t.Error("Expected saved headless flag")
		}
	})

	t.Run("rejects invalid stored values", func(t *testing.T) {
		resetGlobal()
		defer resetGlobal()
		configPath := filepath.Join(t.TempDir(), "config.json")
		writeConfigFile(t, configPath, map[string]map[string]any{
			"channel": {"keepalive_interval": "soon"},
		})

		if err := Initialize(configPath); err == nil {
			t.Error("Expected error for malformed duration")
		}
		if IsInitialized() {
			t.Error("Failed initialization should not install a manager")
		}
	})
}

func TestGlobal(t *testing.T) {
	t.Run("panics if not initialized", func(t *testing.T) {
		resetGlobal()

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when Global() called before Initialize")
			}
		}()
		Global()
	})

	t.Run("getters return nil before initialization", func(t *testing.T) {
		resetGlobal()
		if GetChannel() != nil || GetBrowser() != nil {
			t.Error("Expected nil sections when uninitialized")
		}
	})
}

func TestChannelPreferences(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	manager, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	prefs, err := NewChannelPreferences(manager)
	if err != nil {
		t.Fatalf("NewChannelPreferences failed: %v", err)
	}
	if !prefs.AutoConnect() {
		t.Error("Auto-connect should default to enabled")
	}
	if err := prefs.SetAutoConnect(false); err != nil {
		t.Fatalf("SetAutoConnect failed: %v", err)
	}

	reloaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if ChannelOf(reloaded).AutoConnect() {
		t.Error("Auto-connect preference was not persisted")
	}

	if _, err := NewChannelPreferences(NewManager(newMemStore())); err == nil {
		t.Error("Expected error when the channel section is missing")
	}
}
