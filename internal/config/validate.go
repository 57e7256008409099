package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be >= 1, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.Concurrency > 256 {
		return fmt.Errorf("engine.concurrency must be <= 256, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.TaskTimeout <= 0 {
		return fmt.Errorf("engine.task_timeout must be > 0")
	}
	if cfg.Engine.WindowMonths < 1 {
		return fmt.Errorf("engine.window_months must be >= 1, got %d", cfg.Engine.WindowMonths)
	}
	if cfg.Engine.MaxURLs < 1 {
		return fmt.Errorf("engine.max_urls must be >= 1, got %d", cfg.Engine.MaxURLs)
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.RetryDelay < 0 {
		return fmt.Errorf("fetcher.retry_delay must be >= 0")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.Browser.Enabled && cfg.Fetcher.Browser.PoolSize < 1 {
		return fmt.Errorf("fetcher.browser.pool_size must be >= 1, got %d", cfg.Fetcher.Browser.PoolSize)
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Pagination.PageSize < 1 {
		return fmt.Errorf("pagination.page_size must be >= 1, got %d", cfg.Pagination.PageSize)
	}
	if cfg.Pagination.MaxResults < 1 {
		return fmt.Errorf("pagination.max_results must be >= 1, got %d", cfg.Pagination.MaxResults)
	}
	if cfg.Pagination.Delay < 0 || cfg.Pagination.Delay > time.Minute {
		return fmt.Errorf("pagination.delay must be between 0 and 1m, got %s", cfg.Pagination.Delay)
	}

	if cfg.Pipeline.MaxComments < 0 {
		return fmt.Errorf("pipeline.max_comments must be >= 0, got %d", cfg.Pipeline.MaxComments)
	}
	if cfg.Pipeline.MaxCommentDepth < 1 {
		return fmt.Errorf("pipeline.max_comment_depth must be >= 1, got %d", cfg.Pipeline.MaxCommentDepth)
	}

	for name, p := range cfg.Platforms {
		if p.BaseURL != "" {
			if err := ValidateURL(p.BaseURL); err != nil {
				return fmt.Errorf("platforms.%s.base_url: %w", name, err)
			}
		}
		if p.FetcherType != "" && p.FetcherType != "http" && p.FetcherType != "browser" {
			return fmt.Errorf("platforms.%s.fetcher_type must be 'http' or 'browser', got %q", name, p.FetcherType)
		}
		for _, rule := range p.Rules {
			if rule.Name == "" {
				return fmt.Errorf("platforms.%s.rules: rule name is required", name)
			}
		}
	}

	validExportTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "excel": true, "mongo": true, "mongodb": true,
	}
	if !validExportTypes[cfg.Export.Type] {
		return fmt.Errorf("export.type %q is not supported (valid: json, jsonl, csv, excel, mongo)", cfg.Export.Type)
	}
	if (cfg.Export.Type == "mongo" || cfg.Export.Type == "mongodb") && cfg.Export.Mongo.URI == "" {
		return fmt.Errorf("export.mongo.uri is required when export.type is mongo")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
