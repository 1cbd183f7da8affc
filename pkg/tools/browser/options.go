package browser

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/config"
	"github.com/entrhq/tabwire/pkg/tools"
)

const (
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultNavigationTimeout  = 10 * time.Second
	DefaultReloadTimeout      = 5 * time.Second
	DefaultElementWaitTimeout = 10 * time.Second
	DefaultWaitTime           = time.Second
	DefaultScrollAmount       = 500
	DefaultFindLimit          = 50
	DefaultDOMDepth           = 3
	MaxDOMDepth               = 10
	DefaultContentLength      = 10000
	MaxContentLength          = 100000
)

// Options tunes the browser tools.
type Options struct {
	NavigationTimeout  time.Duration
	ReloadTimeout      time.Duration
	ElementWaitTimeout time.Duration
	PollInterval       time.Duration
	Policy             *browser.URLPolicy
	AllowCustomScripts bool
	Logger             *zap.Logger
}

// DefaultOptions returns options with the built-in timeouts, no URL restrictions and
// custom scripts allowed.
func DefaultOptions() Options {
	return Options{
		NavigationTimeout:  DefaultNavigationTimeout,
		ReloadTimeout:      DefaultReloadTimeout,
		ElementWaitTimeout: DefaultElementWaitTimeout,
		PollInterval:       DefaultPollInterval,
		AllowCustomScripts: true,
	}
}

// OptionsFromSettings builds options from the browser config section.
func OptionsFromSettings(s config.BrowserSettings, logger *zap.Logger) (Options, error) {
	policy, err := browser.NewURLPolicy(s.AllowedURLs, s.DeniedURLs)
	if err != nil {
		return Options{}, fmt.Errorf("failed to build url policy: %w", err)
	}
	opts := DefaultOptions()
	opts.NavigationTimeout = s.NavigationTimeout
	opts.ReloadTimeout = s.ReloadTimeout
	opts.ElementWaitTimeout = s.ElementWaitTimeout
	opts.Policy = policy
	opts.AllowCustomScripts = s.AllowCustomScripts
	opts.Logger = logger
	return opts, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.ReloadTimeout <= 0 {
		o.ReloadTimeout = d.ReloadTimeout
	}
	if o.ElementWaitTimeout <= 0 {
		o.ElementWaitTimeout = d.ElementWaitTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Logger = o.Logger.With(zap.String("component", "tools"))
	return o
}

// NewTools returns one tool per action type, all bound to host.
func NewTools(host browser.Host, opts Options) []tools.Tool {
	opts = opts.withDefaults()
	return []tools.Tool{
		// Tabs
		&OpenTabTool{host: host, opts: opts},
		&CloseTabTool{host: host},
		&SwitchTabTool{host: host},
		&DuplicateTabTool{host: host},
		&GetAllTabsTool{host: host},

		// Navigation
		&NavigateTool{host: host, opts: opts},
		&ReloadTabTool{host: host, opts: opts},
		&GoBackTool{host: host},
		&GoForwardTool{host: host},

		// Browser state
		&ScreenshotTool{host: host},
		&GetCookiesTool{host: host},
		&SetCookieTool{host: host},
		&WaitTool{},

		// Page reading
		&GetPageInfoTool{host: host},
		&ExtractDOMTool{host: host},
		&GetPageContentTool{host: host},
		&FindElementsTool{host: host},
		&GetElementTextTool{host: host},
		&GetElementAttributesTool{host: host},
		&GetLocalStorageTool{host: host},

		// Page interaction
		&ClickTool{host: host},
		&HoverTool{host: host},
		&TypeTool{host: host},
		&FillFormTool{host: host},
		&SelectDropdownTool{host: host},
		&ScrollTool{host: host},
		&SetLocalStorageTool{host: host},
		&WaitForElementTool{host: host, opts: opts},
		&ExecuteScriptTool{host: host, opts: opts},
	}
}

// Register adds every browser tool to reg.
func Register(reg *tools.Registry, host browser.Host, opts Options) error {
	return reg.Register(NewTools(host, opts)...)
}
