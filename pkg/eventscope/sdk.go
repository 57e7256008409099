// Package eventscope provides a public SDK for embedding eventscope as a
// library.
//
// Example usage:
//
//	client, err := eventscope.New(
//	    eventscope.WithPlatforms("reddit", "news"),
//	    eventscope.WithPlatformToken("news", os.Getenv("NEWS_API_KEY")),
//	    eventscope.WithConcurrency(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.ScrapeEvent(ctx, "Summer Fest", date, []string{"reddit", "news"}, nil)
//	receipt, err := client.Export(ctx, report, "csv", "./output")
package eventscope

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/export"
	"github.com/IshaanNene/eventscope/internal/fetcher"
	"github.com/IshaanNene/eventscope/internal/parser"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Re-exported result types.
type (
	EventReport   = types.EventReport
	ProfileReport = types.ProfileReport
	Post          = types.Post
	URLOutcome    = types.URLOutcome
	Receipt       = export.Receipt
	PlatformInfo  = adapter.Info
)

// Client is the high-level API for using eventscope as a library.
type Client struct {
	cfg    *config.Config
	fetch  fetcher.Fetcher
	orch   *engine.Orchestrator
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*config.Config)

// WithConcurrency sets how many source tasks run at once.
func WithConcurrency(n int) Option {
	return func(c *config.Config) { c.Engine.Concurrency = n }
}

// WithTaskTimeout bounds each source task.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *config.Config) { c.Engine.TaskTimeout = d }
}

// WithWindowMonths sets how far past the event date searches reach.
func WithWindowMonths(n int) Option {
	return func(c *config.Config) { c.Engine.WindowMonths = n }
}

// WithPlatforms enables only the named built-in platforms.
func WithPlatforms(names ...string) Option {
	return func(c *config.Config) {
		keep := make(map[string]bool, len(names))
		for _, n := range names {
			keep[n] = true
		}
		for name, pc := range c.Platforms {
			pc.Enabled = keep[name]
			c.Platforms[name] = pc
		}
	}
}

// WithPlatformToken sets the API credential of one platform.
func WithPlatformToken(platform, token string) Option {
	return func(c *config.Config) {
		pc := c.Platforms[platform]
		pc.Token = token
		c.Platforms[platform] = pc
	}
}

// WithBaseURL points one platform at a different endpoint.
func WithBaseURL(platform, baseURL string) Option {
	return func(c *config.Config) {
		pc := c.Platforms[platform]
		pc.BaseURL = baseURL
		c.Platforms[platform] = pc
	}
}

// WithPagination bounds cursor-following searches.
func WithPagination(pageSize, maxResults int, delay time.Duration) Option {
	return func(c *config.Config) {
		c.Pagination = config.PaginationConfig{PageSize: pageSize, MaxResults: maxResults, Delay: delay}
	}
}

// WithProxy enables proxy rotation with the given proxy URLs.
func WithProxy(urls ...string) Option {
	return func(c *config.Config) {
		c.Proxy.Enabled = true
		c.Proxy.URLs = urls
	}
}

// WithBrowser enables the headless browser for script-heavy pages.
func WithBrowser() Option {
	return func(c *config.Config) { c.Fetcher.Browser.Enabled = true }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	level := slog.LevelWarn
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

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
		return nil, err
	}
	orch, err := engine.New(cfg, registry, logger)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Client{cfg: cfg, fetch: f, orch: orch, logger: logger}, nil
}

// ScrapeEvent searches platforms for the event and scrapes its profiles.
// socialLinks maps a platform to the event's profile URL on it.
func (c *Client) ScrapeEvent(ctx context.Context, name string, date time.Time, platforms []string, socialLinks map[string]string) (*EventReport, error) {
	return c.orch.ScrapeEvent(ctx, engine.EventRequest{
		EventName:   name,
		EventDate:   date,
		Platforms:   platforms,
		SocialLinks: socialLinks,
	})
}

// ScrapeURL scrapes the post behind one URL.
func (c *Client) ScrapeURL(ctx context.Context, rawURL, eventName string) (*Post, error) {
	return c.orch.ScrapeURL(ctx, rawURL, eventName)
}

// ScrapeURLs scrapes several post URLs concurrently.
func (c *Client) ScrapeURLs(ctx context.Context, urls []string, eventName string) ([]URLOutcome, error) {
	return c.orch.ScrapeURLs(ctx, urls, eventName)
}

// ScrapeProfile scrapes one profile. An empty platform is detected from
// the URL.
func (c *Client) ScrapeProfile(ctx context.Context, platform, profileURL, eventName string) (*ProfileReport, error) {
	return c.orch.ScrapeProfile(ctx, platform, profileURL, eventName)
}

// Platforms lists the enabled platforms and their capabilities.
func (c *Client) Platforms() []PlatformInfo {
	return c.orch.Registry().List()
}

// Export writes report to dir as csv, excel, json or jsonl.
func (c *Client) Export(ctx context.Context, report *EventReport, format, dir string) (*Receipt, error) {
	exp, err := export.NewFileExporter(format, dir, c.logger)
	if err != nil {
		return nil, err
	}
	defer exp.Close()
	return exp.Export(ctx, report)
}

// Stats returns run statistics.
func (c *Client) Stats() map[string]any {
	return c.orch.Stats().Snapshot()
}

// Close releases the fetch stack.
func (c *Client) Close() error {
	return c.fetch.Close()
}
