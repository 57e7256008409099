package eventscope

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

func TestOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, opt := range []Option{
		WithConcurrency(3),
		WithTaskTimeout(5 * time.Second),
		WithWindowMonths(1),
		WithPlatforms("reddit", "news"),
		WithPlatformToken("news", "key"),
		WithBaseURL("reddit", "http://127.0.0.1:9"),
		WithPagination(10, 50, 0),
		WithVerbose(),
	} {
		opt(cfg)
	}

	if cfg.Engine.Concurrency != 3 || cfg.Engine.TaskTimeout != 5*time.Second || cfg.Engine.WindowMonths != 1 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if !cfg.Platforms["reddit"].Enabled || !cfg.Platforms["news"].Enabled || cfg.Platforms["twitter"].Enabled {
		t.Errorf("platform selection not applied: %+v", cfg.Platforms)
	}
	if cfg.Platforms["news"].Token != "key" || cfg.Platforms["reddit"].BaseURL != "http://127.0.0.1:9" {
		t.Errorf("platform overrides not applied")
	}
	if cfg.Pagination.PageSize != 10 || cfg.Logging.Level != "debug" {
		t.Errorf("pagination = %+v level = %s", cfg.Pagination, cfg.Logging.Level)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(WithConcurrency(0)); err == nil {
		t.Error("expected error for zero concurrency")
	}
}

func TestClientScrapeEventAndExport(t *testing.T) {
	eventDate := time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	created := eventDate.Add(48 * time.Hour).Unix()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"kind":"Listing","data":{"after":null,"children":[
			{"kind":"t3","data":{"id":"a","title":"Amazing launch","score":12,"num_comments":3,"created_utc":%d,"permalink":"/r/events/comments/a/launch/","author":"u1","subreddit":"events"}}
		]}}`, created)
	}))
	defer srv.Close()

	client, err := New(
		WithPlatforms("reddit"),
		WithBaseURL("reddit", srv.URL),
		WithPagination(25, 100, 0),
		WithTaskTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if ps := client.Platforms(); len(ps) != 1 || ps[0].Name != "reddit" {
		t.Fatalf("platforms = %+v", ps)
	}

	ctx := context.Background()
	report, err := client.ScrapeEvent(ctx, "Launch", eventDate, []string{"reddit"}, nil)
	if err != nil {
		t.Fatalf("ScrapeEvent: %v", err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if report.PostCount() != 1 || report.TotalEngagement != 12+2*3 {
		t.Errorf("posts = %d engagement = %d", report.PostCount(), report.TotalEngagement)
	}

	dir := t.TempDir()
	receipt, err := client.Export(ctx, report, "csv", dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, receipt.FileName)); err != nil {
		t.Errorf("export file missing: %v", err)
	}

	if client.Stats()["runs"] == nil {
		t.Errorf("stats = %v", client.Stats())
	}

	_, err = client.ScrapeEvent(ctx, "Launch", eventDate, []string{"twitter"}, nil)
	var ce *types.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("disabled platform should be a ConfigError, got %v", err)
	}
}
