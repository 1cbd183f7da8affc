package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Load creates a manager on the file at configPath with the default sections registered
// and loaded. An empty path uses ~/.tabwire/config.json.
func Load(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewChannelSection()); err != nil {
		return nil, err
	}
	if err := manager.RegisterSection(NewBrowserSection()); err != nil {
		return nil, err
	}
	if err := manager.RegisterSection(NewTelemetrySection()); err != nil {
		return nil, err
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	manager, err := Load(configPath)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetChannel returns the channel section from global config.
// Returns nil if config is not initialized.
func GetChannel() *ChannelSection {
	if !IsInitialized() {
		return nil
	}
	return ChannelOf(Global())
}

// GetBrowser returns the browser section from global config.
// Returns nil if config is not initialized.
func GetBrowser() *BrowserSection {
	if !IsInitialized() {
		return nil
	}
	return BrowserOf(Global())
}

// ChannelOf returns the channel section registered in m, or nil.
func ChannelOf(m *Manager) *ChannelSection {
	section, ok := m.GetSection(SectionIDChannel)
	if !ok {
		return nil
	}
	channel, _ := section.(*ChannelSection)
	return channel
}

// BrowserOf returns the browser section registered in m, or nil.
func BrowserOf(m *Manager) *BrowserSection {
	section, ok := m.GetSection(SectionIDBrowser)
	if !ok {
		return nil
	}
	browser, _ := section.(*BrowserSection)
	return browser
}

// TelemetryOf returns the telemetry section registered in m, or nil.
func TelemetryOf(m *Manager) *TelemetrySection {
	section, ok := m.GetSection(SectionIDTelemetry)
	if !ok {
		return nil
	}
	telemetry, _ := section.(*TelemetrySection)
	return telemetry
}
