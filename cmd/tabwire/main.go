// Package main runs tabwire: it opens a browser, connects to the automation
// server over a websocket channel and executes the tool requests the server
// sends, with an operator console on stdin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/channel"
	appconfig "github.com/entrhq/tabwire/pkg/config"
	"github.com/entrhq/tabwire/pkg/dispatch"
	"github.com/entrhq/tabwire/pkg/logging"
	"github.com/entrhq/tabwire/pkg/metrics"
	"github.com/entrhq/tabwire/pkg/plan"
	"github.com/entrhq/tabwire/pkg/telemetry"
	"github.com/entrhq/tabwire/pkg/tools"
	browsertools "github.com/entrhq/tabwire/pkg/tools/browser"
)

const (
	version = "0.1.0"

	envServerURL    = "TABWIRE_SERVER_URL"
	shutdownTimeout = 5 * time.Second
)

// Config holds the command line configuration
type Config struct {
	ConfigPath  string
	ServerURL   string
	Headless    bool
	MetricsAddr string
	LogLevel    string
	PlanFile    string
	NoConsole   bool
	ShowVersion bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("tabwire v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		stop()
		log.Fatalf("tabwire: %v", err)
	}
}

// parseFlags parses command line flags and environment variables
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.ConfigPath, "config", "", "Path to the config file (default ~/.tabwire/config.json)")
	flag.StringVar(&config.ServerURL, "server-url", os.Getenv(envServerURL), "Server websocket URL (or set "+envServerURL+")")
	flag.BoolVar(&config.Headless, "headless", false, "Run the browser without a window")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.StringVar(&config.PlanFile, "plan", "", "Run an action plan file against the browser and exit")
	flag.BoolVar(&config.NoConsole, "no-console", false, "Do not read operator commands from stdin")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tabwire - browser automation over a websocket channel\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tabwire [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tabwire -server-url ws://automation.internal:8080/ws\n")
		fmt.Fprintf(os.Stderr, "  tabwire -headless -no-console -metrics-addr :9090\n")
		fmt.Fprintf(os.Stderr, "  tabwire -plan login.yaml\n")
	}

	flag.Parse()
	return config
}

// loadSettings loads the config file and applies environment and flag overrides.
func loadSettings(config *Config) (*appconfig.Manager, error) {
	if err := appconfig.Initialize(config.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}
	m := appconfig.Global()

	if config.ServerURL != "" {
		appconfig.ChannelOf(m).SetServerURL(config.ServerURL)
	}
	if config.Headless {
		appconfig.BrowserOf(m).SetHeadless(true)
	}

	for _, section := range m.GetSections() {
		if err := section.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s settings: %w", section.ID(), err)
		}
	}
	return m, nil
}

func run(ctx context.Context, config *Config) error {
	logs, logErr := logging.NewLogger(config.LogLevel)
	defer logs.Close()
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: logging to stderr: %v\n", logErr)
	}
	logger := logs.Zap()

	m, err := loadSettings(config)
	if err != nil {
		return err
	}
	channelSettings := appconfig.ChannelOf(m).Settings()
	browserSettings := appconfig.BrowserOf(m).Settings()

	providers, err := telemetry.Init(ctx, appconfig.TelemetryOf(m).Settings(), logs.Component("telemetry"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry, channel.StateNames())

	host, err := browser.LaunchPlaywright(browser.LaunchOptions{
		Headless:       browserSettings.Headless,
		ViewportWidth:  browserSettings.ViewportWidth,
		ViewportHeight: browserSettings.ViewportHeight,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.Warn("browser close failed", zap.Error(err))
		}
	}()

	toolOpts, err := browsertools.OptionsFromSettings(browserSettings, logs.Component("tools"))
	if err != nil {
		return err
	}
	toolRegistry := tools.NewRegistry()
	if err := browsertools.Register(toolRegistry, host, toolOpts); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	dispatcher := dispatch.New(toolRegistry, browser.NewResolver(host),
		dispatch.WithLogger(logs.Component("dispatch")),
		dispatch.WithMetrics(collector),
	)

	if config.PlanFile != "" {
		return runPlan(ctx, dispatcher, config.PlanFile, logger)
	}

	prefs, err := appconfig.NewChannelPreferences(m)
	if err != nil {
		return err
	}
	manager := channel.NewManager(channelSettings, &channel.WebSocketTransport{}, prefs, logs.Component("channel"), collector)

	logger.Info("starting tabwire",
		zap.String("version", version),
		zap.String("server_url", channelSettings.ServerURL),
		zap.Bool("headless", browserSettings.Headless),
		zap.String("log_path", logs.LogPath()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if config.MetricsAddr != "" {
		server := &http.Server{
			Addr:              config.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	manager.Start(gctx)
	dispatcher.Attach(gctx, manager)

	if config.NoConsole {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	} else {
		printBanner(channelSettings.ServerURL, logs.LogPath())
		con := newConsole(manager, dispatcher, newCatalog(toolRegistry), os.Stdout, logs.Component("console"))
		g.Go(func() error {
			defer cancel()
			return con.Run(gctx, os.Stdin)
		})
	}

	err = g.Wait()

	dispatcher.Detach()
	dispatcher.Wait()
	manager.Shutdown()
	logger.Info("tabwire stopped")
	return err
}

func runPlan(ctx context.Context, d *dispatch.Dispatcher, path string, logger *zap.Logger) error {
	p, err := plan.Load(path)
	if err != nil {
		return err
	}
	summary := plan.NewRunner(d, logger).Run(ctx, p, nil)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !summary.Success {
		return errors.New(summary.Message)
	}
	return nil
}

func printBanner(serverURL, logPath string) {
	infoColor.Printf("tabwire v%s\n", version)
	okColor.Print("  ▶ ")
	fmt.Printf("Server: %s\n", serverURL)
	if logPath != "" {
		okColor.Print("  ▶ ")
		fmt.Printf("Logs:   %s\n", logPath)
	}
	dimColor.Println("  Type /help for commands.")
	fmt.Println()
}
