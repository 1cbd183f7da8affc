package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	defaultHeadless           = false
	defaultViewportWidth      = 1280
	defaultViewportHeight     = 720
	defaultNavigationTimeout  = 10 * time.Second
	defaultReloadTimeout      = 5 * time.Second
	defaultElementWaitTimeout = 10 * time.Second
	defaultAllowCustomScripts = true
)

// BrowserSettings is an immutable snapshot of the browser section.
type BrowserSettings struct {
	Headless           bool
	ViewportWidth      int
	ViewportHeight     int
	NavigationTimeout  time.Duration
	ReloadTimeout      time.Duration
	ElementWaitTimeout time.Duration
	AllowedURLs        []string
	DeniedURLs         []string
	AllowCustomScripts bool
}

// DefaultBrowserSettings returns the built-in browser defaults.
func DefaultBrowserSettings() BrowserSettings {
	return BrowserSettings{
		Headless:           defaultHeadless,
		ViewportWidth:      defaultViewportWidth,
		ViewportHeight:     defaultViewportHeight,
		NavigationTimeout:  defaultNavigationTimeout,
		ReloadTimeout:      defaultReloadTimeout,
		ElementWaitTimeout: defaultElementWaitTimeout,
		AllowCustomScripts: defaultAllowCustomScripts,
	}
}

// Validate checks the settings for values the browser host cannot run with.
func (b BrowserSettings) Validate() error {
	var errs []error
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("viewport must be positive, got %dx%d", b.ViewportWidth, b.ViewportHeight))
	}
	if b.NavigationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("navigation_timeout must be positive, got %v", b.NavigationTimeout))
	}
	if b.ReloadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reload_timeout must be positive, got %v", b.ReloadTimeout))
	}
	if b.ElementWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("element_wait_timeout must be positive, got %v", b.ElementWaitTimeout))
	}
	for _, p := range append(append([]string(nil), b.AllowedURLs...), b.DeniedURLs...) {
		if _, err := glob.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid url pattern %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// BrowserSection manages how the local browser is launched and what it may do.
type BrowserSection struct {
	settings BrowserSettings
	mu       sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{settings: DefaultBrowserSettings()}
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Browser launch options, navigation timeouts and URL restrictions for remote tool calls."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.settings
	return map[string]any{
		"headless":             b.Headless,
		"viewport_width":       b.ViewportWidth,
		"viewport_height":      b.ViewportHeight,
		"navigation_timeout":   b.NavigationTimeout.String(),
		"reload_timeout":       b.ReloadTimeout.String(),
		"element_wait_timeout": b.ElementWaitTimeout.String(),
		"allowed_urls":         stringsToAny(b.AllowedURLs),
		"denied_urls":          stringsToAny(b.DeniedURLs),
		"allow_custom_scripts": b.AllowCustomScripts,
	}
}

// SetData updates the configuration from the provided data.
// The section is left unchanged when any value is invalid.
func (s *BrowserSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	for key, value := range data {
		var err error
		switch key {
		case "headless":
			next.Headless, err = asBool(key, value)
		case "viewport_width":
			next.ViewportWidth, err = asInt(key, value)
		case "viewport_height":
			next.ViewportHeight, err = asInt(key, value)
		case "navigation_timeout":
			next.NavigationTimeout, err = asDuration(key, value)
		case "reload_timeout":
			next.ReloadTimeout, err = asDuration(key, value)
		case "element_wait_timeout":
			next.ElementWaitTimeout, err = asDuration(key, value)
		case "allowed_urls":
			next.AllowedURLs, err = asStringSlice(key, value)
		case "denied_urls":
			next.DeniedURLs, err = asStringSlice(key, value)
		case "allow_custom_scripts":
			next.AllowCustomScripts, err = asBool(key, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}

	s.settings = next
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Validate()
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultBrowserSettings()
}

// Settings returns a snapshot of the current settings.
func (s *BrowserSection) Settings() BrowserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.settings
	b.AllowedURLs = append([]string(nil), b.AllowedURLs...)
	b.DeniedURLs = append([]string(nil), b.DeniedURLs...)
	return b
}

// SetHeadless overrides the headless flag.
func (s *BrowserSection) SetHeadless(headless bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Headless = headless
}
