package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/fetcher"
	"github.com/IshaanNene/eventscope/internal/observability"
	"github.com/IshaanNene/eventscope/internal/parser"
)

var (
	cfgFile     string
	verbose     bool
	concurrent  int
	taskTimeout string
	browser     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eventscope",
		Short: "eventscope collects social signals about events",
		Long: `eventscope searches social platforms, news and blogs for an event,
scrapes the event's own profiles, and merges everything into one report
with engagement totals and comment sentiment.

Sources: reddit, twitter, news, blogs, instagram, linkedin, generic pages.
Reports can be exported as CSV, JSON, JSONL or stored in MongoDB.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVarP(&concurrent, "concurrency", "n", 0, "concurrent source tasks (0 = config default)")
	rootCmd.PersistentFlags().StringVar(&taskTimeout, "task-timeout", "", "per-source timeout, e.g. 45s")
	rootCmd.PersistentFlags().BoolVar(&browser, "browser", false, "enable the headless browser for script-heavy pages")

	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(platformsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the collaborators shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	fetch   fetcher.Fetcher
	orch    *engine.Orchestrator
	metrics *observability.Metrics
}

// newApp loads config and wires the fetch stack, adapters and orchestrator.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	f, err := fetcher.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	registry, err := adapter.NewDefaultRegistry(cfg, adapter.Deps{
		Fetcher:     f,
		Parser:      parser.New(logger),
		Pagination:  cfg.Pagination,
		MaxComments: cfg.Pipeline.MaxComments,
		MaxDepth:    cfg.Pipeline.MaxCommentDepth,
		Logger:      logger,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("register adapters: %w", err)
	}

	metrics := observability.NewMetrics(logger)
	orch, err := engine.New(cfg, registry, logger, engine.WithRecorder(metrics))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	logger.Debug("eventscope ready",
		"platforms", registry.Names(),
		"concurrency", cfg.Engine.Concurrency,
		"task_timeout", cfg.Engine.TaskTimeout,
		"fetcher", f.Type(),
	)
	return &app{cfg: cfg, logger: logger, fetch: f, orch: orch, metrics: metrics}, nil
}

func (a *app) Close() {
	if err := a.fetch.Close(); err != nil {
		a.logger.Warn("fetcher close failed", "error", err)
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies persistent flag values to the config.
func applyCLIOverrides(cfg *config.Config) error {
	if concurrent > 0 {
		cfg.Engine.Concurrency = concurrent
	}
	if taskTimeout != "" {
		d, err := time.ParseDuration(taskTimeout)
		if err != nil {
			return fmt.Errorf("--task-timeout: %w", err)
		}
		cfg.Engine.TaskTimeout = d
	}
	if browser {
		cfg.Fetcher.Browser.Enabled = true
	}
	return nil
}
