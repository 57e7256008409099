package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }},
		{"zero task timeout", func(c *Config) { c.Engine.TaskTimeout = 0 }},
		{"zero window", func(c *Config) { c.Engine.WindowMonths = 0 }},
		{"bad fetcher type", func(c *Config) { c.Fetcher.Type = "carrier-pigeon" }},
		{"zero page size", func(c *Config) { c.Pagination.PageSize = 0 }},
		{"zero max results", func(c *Config) { c.Pagination.MaxResults = 0 }},
		{"negative delay", func(c *Config) { c.Pagination.Delay = -time.Second }},
		{"bad export", func(c *Config) { c.Export.Type = "xlsx" }},
		{"mongo without uri", func(c *Config) { c.Export.Type = "mongo" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad base url", func(c *Config) {
			c.Platforms["reddit"] = PlatformConfig{Enabled: true, BaseURL: "ftp://reddit"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eventscope.yaml")
	content := `
engine:
  concurrency: 3
pagination:
  max_results: 250
  delay: 250ms
platforms:
  twitter:
    token: abc
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Pagination.MaxResults != 250 {
		t.Errorf("expected max_results 250, got %d", cfg.Pagination.MaxResults)
	}
	if cfg.Pagination.Delay != 250*time.Millisecond {
		t.Errorf("expected delay 250ms, got %s", cfg.Pagination.Delay)
	}
	if cfg.Platforms["twitter"].Token != "abc" {
		t.Errorf("expected twitter token from file, got %q", cfg.Platforms["twitter"].Token)
	}
	if cfg.Platforms["reddit"].BaseURL != "https://www.reddit.com" {
		t.Errorf("expected reddit default to survive, got %q", cfg.Platforms["reddit"].BaseURL)
	}
	if cfg.Pagination.PageSize != 100 {
		t.Errorf("expected default page size, got %d", cfg.Pagination.PageSize)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EVENTSCOPE_ENGINE_CONCURRENCY", "5")
	t.Setenv("EVENTSCOPE_PLATFORMS_TWITTER_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "eventscope.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Concurrency != 5 {
		t.Errorf("expected env concurrency 5, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Platforms["twitter"].Token != "from-env" {
		t.Errorf("expected env token, got %q", cfg.Platforms["twitter"].Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected file log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadKeepsNestedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventscope.yaml")
	body := "platforms:\n  instagram:\n    token: abc\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ig := cfg.Platforms["instagram"]
	if ig.Token != "abc" || ig.FetcherType != "browser" || ig.WaitSelector != "article" {
		t.Errorf("instagram = %+v, want file token over built-in defaults", ig)
	}
	if cfg.Fetcher.Timeout != 30*time.Second || cfg.Proxy.Cooldown != time.Minute {
		t.Errorf("durations lost: timeout=%s cooldown=%s", cfg.Fetcher.Timeout, cfg.Proxy.Cooldown)
	}
	if len(cfg.Fetcher.UserAgents) != 2 {
		t.Errorf("user agents = %v", cfg.Fetcher.UserAgents)
	}
}
