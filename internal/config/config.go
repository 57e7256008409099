package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for eventscope.
type Config struct {
	Engine     EngineConfig              `mapstructure:"engine"     yaml:"engine"`
	Fetcher    FetcherConfig             `mapstructure:"fetcher"    yaml:"fetcher"`
	Proxy      ProxyConfig               `mapstructure:"proxy"      yaml:"proxy"`
	Pagination PaginationConfig          `mapstructure:"pagination" yaml:"pagination"`
	Pipeline   PipelineConfig            `mapstructure:"pipeline"   yaml:"pipeline"`
	Scoring    ScoringConfig             `mapstructure:"scoring"    yaml:"scoring"`
	Platforms  map[string]PlatformConfig `mapstructure:"platforms"  yaml:"platforms"`
	Export     ExportConfig              `mapstructure:"export"     yaml:"export"`
	Logging    LoggingConfig             `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig             `mapstructure:"metrics"    yaml:"metrics"`
	API        APIConfig                 `mapstructure:"api"        yaml:"api"`
	Schedule   ScheduleConfig            `mapstructure:"schedule"   yaml:"schedule"`
}

// EngineConfig controls the event orchestrator.
type EngineConfig struct {
	Concurrency  int           `mapstructure:"concurrency"   yaml:"concurrency"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"  yaml:"task_timeout"`
	WindowMonths int           `mapstructure:"window_months" yaml:"window_months"`
	MaxURLs      int           `mapstructure:"max_urls"      yaml:"max_urls"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	Browser         BrowserConfig `mapstructure:"browser"           yaml:"browser"`
}

// BrowserConfig controls the headless browser used for script-heavy pages.
type BrowserConfig struct {
	Enabled  bool          `mapstructure:"enabled"   yaml:"enabled"`
	Headless bool          `mapstructure:"headless"  yaml:"headless"`
	PoolSize int           `mapstructure:"pool_size" yaml:"pool_size"`
	WaitIdle time.Duration `mapstructure:"wait_idle" yaml:"wait_idle"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled      bool     `mapstructure:"enabled"        yaml:"enabled"`
	Rotation     string   `mapstructure:"rotation"       yaml:"rotation"`
	URLs         []string `mapstructure:"urls"           yaml:"urls"`
	RotateOnFail bool     `mapstructure:"rotate_on_fail" yaml:"rotate_on_fail"`

	// Cooldown is how long a failing proxy is kept out of rotation.
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// PaginationConfig bounds cursor-following fetches.
type PaginationConfig struct {
	PageSize   int           `mapstructure:"page_size"   yaml:"page_size"`
	MaxResults int           `mapstructure:"max_results" yaml:"max_results"`
	Delay      time.Duration `mapstructure:"delay"       yaml:"delay"`
}

// PipelineConfig controls normalization.
type PipelineConfig struct {
	MaxComments     int                `mapstructure:"max_comments"      yaml:"max_comments"`
	MaxCommentDepth int                `mapstructure:"max_comment_depth" yaml:"max_comment_depth"`
	Middlewares     []MiddlewareConfig `mapstructure:"middlewares"       yaml:"middlewares"`
}

// MiddlewareConfig defines a single pipeline middleware.
type MiddlewareConfig struct {
	Name    string         `mapstructure:"name"    yaml:"name"`
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// ScoringConfig overrides the sentiment lexicon.
type ScoringConfig struct {
	Positive []string `mapstructure:"positive" yaml:"positive"`
	Negative []string `mapstructure:"negative" yaml:"negative"`
}

// PlatformConfig configures one source adapter.
type PlatformConfig struct {
	Enabled     bool        `mapstructure:"enabled"      yaml:"enabled"`
	BaseURL     string      `mapstructure:"base_url"     yaml:"base_url"`
	Token       string      `mapstructure:"token"        yaml:"token"`
	FetcherType string      `mapstructure:"fetcher_type" yaml:"fetcher_type"`
	Rules       []ParseRule `mapstructure:"rules"        yaml:"rules"`

	// WaitSelector is the element a browser fetch waits for before it
	// reads the page.
	WaitSelector string `mapstructure:"wait_selector" yaml:"wait_selector"`
}

// ParseRule defines a single extraction rule.
type ParseRule struct {
	Name      string `mapstructure:"name"      yaml:"name"`
	Selector  string `mapstructure:"selector"  yaml:"selector"`
	Type      string `mapstructure:"type"      yaml:"type"` // css, xpath, regex
	Attribute string `mapstructure:"attribute" yaml:"attribute"`
	Pattern   string `mapstructure:"pattern"   yaml:"pattern"`
}

// ExportConfig controls where finished reports are written.
type ExportConfig struct {
	Type       string      `mapstructure:"type"        yaml:"type"`
	OutputPath string      `mapstructure:"output_path" yaml:"output_path"`
	Mongo      MongoConfig `mapstructure:"mongo"       yaml:"mongo"`
}

// MongoConfig configures the MongoDB export sink.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host         string        `mapstructure:"host"          yaml:"host"`
	Port         int           `mapstructure:"port"          yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// ScheduleConfig lists recurring event scrapes.
type ScheduleConfig struct {
	Jobs []ScheduledEvent `mapstructure:"jobs" yaml:"jobs"`
}

// ScheduledEvent is one recurring event scrape.
type ScheduledEvent struct {
	Spec        string            `mapstructure:"spec"         yaml:"spec"`
	EventName   string            `mapstructure:"event_name"   yaml:"event_name"`
	EventDate   string            `mapstructure:"event_date"   yaml:"event_date"`
	Platforms   []string          `mapstructure:"platforms"    yaml:"platforms"`
	SocialLinks map[string]string `mapstructure:"social_links" yaml:"social_links"`
}

// DefaultPlatforms returns the built-in source endpoints.
func DefaultPlatforms() map[string]PlatformConfig {
	return map[string]PlatformConfig{
		"reddit":    {Enabled: true, BaseURL: "https://www.reddit.com"},
		"twitter":   {Enabled: true, BaseURL: "https://api.twitter.com"},
		"news":      {Enabled: true, BaseURL: "https://newsapi.org"},
		"blogs":     {Enabled: true, BaseURL: "https://api.blogsearch.dev"},
		"instagram": {Enabled: true, BaseURL: "https://www.instagram.com", FetcherType: "browser", WaitSelector: "article"},
		"linkedin":  {Enabled: true, BaseURL: "https://www.linkedin.com", FetcherType: "browser", WaitSelector: "main"},
		"generic":   {Enabled: true},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Concurrency:  8,
			TaskTimeout:  60 * time.Second,
			WindowMonths: 3,
			MaxURLs:      50,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			Timeout:         30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			Browser: BrowserConfig{
				Enabled:  false,
				Headless: true,
				PoolSize: 2,
				WaitIdle: 2 * time.Second,
			},
		},
		Proxy: ProxyConfig{
			Enabled:      false,
			Rotation:     "round_robin",
			RotateOnFail: true,
			Cooldown:     time.Minute,
		},
		Pagination: PaginationConfig{
			PageSize:   100,
			MaxResults: 1000,
			Delay:      1 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxComments:     500,
			MaxCommentDepth: 10,
		},
		Platforms: DefaultPlatforms(),
		Export: ExportConfig{
			Type:       "json",
			OutputPath: "./output",
			Mongo: MongoConfig{
				Database:   "eventscope",
				Collection: "reports",
				Timeout:    10 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
	}
}
