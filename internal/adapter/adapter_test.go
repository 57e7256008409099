package adapter

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/fetcher"
	"github.com/IshaanNene/eventscope/internal/parser"
	"github.com/IshaanNene/eventscope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var (
	windowStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	testNow     = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetcher.Timeout = 5 * time.Second
	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	return Deps{
		Fetcher:     f,
		Parser:      parser.New(testLogger),
		Pagination:  config.PaginationConfig{PageSize: 2, MaxResults: 100, Delay: 0},
		MaxComments: 500,
		MaxDepth:    10,
		Logger:      testLogger,
		Now:         func() time.Time { return testNow },
	}
}

func platformConfig(baseURL string) config.PlatformConfig {
	return config.PlatformConfig{Enabled: true, BaseURL: baseURL}
}

func serveJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func serveHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.instagram.com/p/abc123/", "instagram"},
		{"https://instagr.am/p/abc123", "instagram"},
		{"https://twitter.com/user/status/1", "twitter"},
		{"https://x.com/user/status/1", "twitter"},
		{"https://www.netflix.com/title/1", "generic"},
		{"https://www.reddit.com/r/events/comments/abc/launch/", "reddit"},
		{"https://www.linkedin.com/posts/someone_activity", "linkedin"},
		{"https://blog.example.com/2024/launch", "generic"},
		{"HTTPS://WWW.REDDIT.COM/r/Events", "reddit"},
	}

	for _, tt := range tests {
		if got := DetectPlatform(tt.url); got != tt.want {
			t.Errorf("DetectPlatform(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDetectPostType(t *testing.T) {
	tests := []struct {
		url  string
		want types.PostType
	}{
		{"https://www.instagram.com/reel/xyz/", types.PostTypeReel},
		{"https://www.youtube.com/watch?v=1", types.PostTypeVideo},
		{"https://www.instagram.com/stories/someone/1/", types.PostTypeStory},
		{"https://www.instagram.com/p/abc/", types.PostTypePost},
		{"https://x.com/user/status/123", types.PostTypePost},
		{"https://www.reddit.com/r/events/comments/abc/launch/", types.PostTypePost},
		{"https://www.reddit.com/user/someone", types.PostTypeProfile},
		{"https://www.instagram.com/eventhost/", types.PostTypeProfile},
		{"https://example.com", types.PostTypePost},
	}

	for _, tt := range tests {
		if got := DetectPostType(tt.url); got != tt.want {
			t.Errorf("DetectPostType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := NewDefaultRegistry(config.DefaultConfig(), testDeps(t))
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	want := []string{"blogs", "generic", "instagram", "linkedin", "news", "reddit", "twitter"}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", got, want)
	}

	caps := map[string]Capabilities{
		"reddit":    {Search: true, Profile: true, Single: true},
		"twitter":   {Search: true, Profile: true, Single: true},
		"news":      {Search: true, Single: true},
		"blogs":     {Search: true, Single: true},
		"instagram": {Profile: true, Single: true},
		"linkedin":  {Profile: true, Single: true},
		"generic":   {Single: true},
	}
	for _, info := range reg.List() {
		if info.Capabilities != caps[info.Name] {
			t.Errorf("%s capabilities = %+v, want %+v", info.Name, info.Capabilities, caps[info.Name])
		}
	}

	if _, ok := reg.Get("Reddit"); ok {
		t.Error("lookup should be exact")
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := NewRegistry(testLogger)
	deps := testDeps(t)
	if err := reg.Register(NewReddit(platformConfig(""), deps)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(NewReddit(platformConfig(""), deps)); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestDefaultRegistrySkipsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	pc := cfg.Platforms["linkedin"]
	pc.Enabled = false
	cfg.Platforms["linkedin"] = pc

	reg, err := NewDefaultRegistry(cfg, testDeps(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get("linkedin"); ok {
		t.Error("disabled platform should not be registered")
	}
}

func TestUnsupportedCapability(t *testing.T) {
	deps := testDeps(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"instagram search", func() error {
			_, err := SearchEvent(ctx, NewInstagram(platformConfig(""), deps), "launch", windowStart, windowEnd)
			return err
		}, "instagram"},
		{"news profile", func() error {
			_, err := ScrapeProfile(ctx, NewNews(platformConfig(""), deps), "https://newsapi.org/x", windowStart, windowEnd)
			return err
		}, "news"},
		{"generic profile", func() error {
			_, err := ScrapeProfile(ctx, NewGeneric(platformConfig(""), deps), "https://example.com/x", windowStart, windowEnd)
			return err
		}, "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if types.Classify(err) != types.KindUnsupported {
				t.Fatalf("kind = %q, want unsupported (err=%v)", types.Classify(err), err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should name %q", err, tt.want)
			}
		})
	}
}

func TestFilterWindow(t *testing.T) {
	in := types.NewRecord("x", "a")
	in.Set("created_utc", float64(windowStart.Add(time.Hour).Unix()))
	before := types.NewRecord("x", "b")
	before.Set("created_at", "2024-01-01T00:00:00Z")
	atEnd := types.NewRecord("x", "c")
	atEnd.Set("timestamp", windowEnd.Format(time.RFC3339))
	undated := types.NewRecord("x", "d")

	got := filterWindow([]*types.Record{in, before, atEnd, undated}, windowStart, windowEnd)
	if len(got) != 2 || got[0] != in || got[1] != undated {
		t.Fatalf("filterWindow kept %d records", len(got))
	}
}

func TestRedditTimeRange(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{time.Hour, "day"},
		{3 * 24 * time.Hour, "week"},
		{20 * 24 * time.Hour, "month"},
		{200 * 24 * time.Hour, "year"},
		{800 * 24 * time.Hour, "all"},
	}
	for _, tt := range tests {
		if got := redditTimeRange(testNow.Add(-tt.age), testNow); got != tt.want {
			t.Errorf("age %s: got %q, want %q", tt.age, got, tt.want)
		}
	}
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}
