package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/types"
)

func singleReturning(platform string) func(ctx context.Context, rawURL string) (*types.Record, error) {
	return func(ctx context.Context, rawURL string) (*types.Record, error) {
		rec := record(platform, "one", 3, 1, 0)
		rec.URL = rawURL
		c := types.NewRecord(platform, rawURL)
		c.Set("user", "fan")
		c.Set("text", "great show")
		rec.AddComment(c)
		return rec, nil
	}
}

func TestScrapeURLDetectsPlatform(t *testing.T) {
	reddit := &fakeSource{name: "reddit", single: singleReturning("reddit")}
	generic := &fakeSource{name: "generic", single: singleReturning("generic")}
	o := newOrchestrator(t, testConfig(), reddit, generic)

	post, err := o.ScrapeURL(context.Background(), "https://www.reddit.com/r/events/comments/abc/launch/", "Launch")
	if err != nil {
		t.Fatalf("ScrapeURL: %v", err)
	}
	if post.Platform != "reddit" || reddit.calls.Load() != 1 {
		t.Errorf("platform = %q calls = %d", post.Platform, reddit.calls.Load())
	}
	if post.Score != 5 {
		t.Errorf("score = %d, want 5", post.Score)
	}
	if post.Sentiment == nil || post.Sentiment.Positive != 1 {
		t.Errorf("sentiment = %+v", post.Sentiment)
	}
	if post.Metadata["event_name"] != "Launch" {
		t.Errorf("metadata = %v", post.Metadata)
	}

	// instagram is not registered, so the generic adapter takes it.
	post, err = o.ScrapeURL(context.Background(), "https://www.instagram.com/p/abc/", "")
	if err != nil {
		t.Fatal(err)
	}
	if post.Platform != "generic" || generic.calls.Load() != 1 {
		t.Errorf("fallback platform = %q", post.Platform)
	}
}

func TestScrapeURLErrors(t *testing.T) {
	reddit := &fakeSource{name: "reddit", single: func(ctx context.Context, rawURL string) (*types.Record, error) {
		return nil, &types.FetchError{URL: rawURL, StatusCode: 404, Err: types.ErrNotFound}
	}}
	o := newOrchestrator(t, testConfig(), reddit)

	_, err := o.ScrapeURL(context.Background(), "ftp://example.com/file", "")
	var ce *types.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("bad scheme err = %v, want ConfigError", err)
	}

	_, err = o.ScrapeURL(context.Background(), "https://www.reddit.com/r/x/comments/1/gone", "")
	var se *types.SourceError
	if !errors.As(err, &se) || se.Kind != types.KindNotFound || se.Platform != "reddit" {
		t.Errorf("err = %v, want reddit not_found", err)
	}

	// no generic adapter registered
	_, err = o.ScrapeURL(context.Background(), "https://blog.example.com/post", "")
	if !errors.As(err, &ce) {
		t.Errorf("unroutable err = %v, want ConfigError", err)
	}
}

func TestScrapeURLs(t *testing.T) {
	generic := &fakeSource{name: "generic", single: func(ctx context.Context, rawURL string) (*types.Record, error) {
		if rawURL == "https://example.com/broken" {
			return nil, &types.FetchError{URL: rawURL, StatusCode: 403, Err: types.ErrBlocked}
		}
		return singleReturning("generic")(ctx, rawURL)
	}}
	o := newOrchestrator(t, testConfig(), generic)

	urls := []string{"https://example.com/a", "https://example.com/broken", "https://example.com/c"}
	out, err := o.ScrapeURLs(context.Background(), urls, "Launch")
	if err != nil {
		t.Fatalf("ScrapeURLs: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("outcomes = %d", len(out))
	}
	for i, u := range urls {
		if out[i].URL != u {
			t.Errorf("outcome %d url = %q, want input order", i, out[i].URL)
		}
	}
	if out[0].Post == nil || out[2].Post == nil {
		t.Error("successful URLs should carry a post")
	}
	if out[1].Post != nil || out[1].Kind != types.KindBlocked || out[1].Error == "" {
		t.Errorf("failed outcome = %+v", out[1])
	}
}

func TestScrapeURLsLimits(t *testing.T) {
	generic := &fakeSource{name: "generic", single: singleReturning("generic")}
	cfg := testConfig()
	cfg.Engine.MaxURLs = 3
	o := newOrchestrator(t, cfg, generic)

	tooMany := make([]string, 4)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("https://example.com/%d", i)
	}

	tests := []struct {
		name string
		urls []string
	}{
		{"empty", nil},
		{"over limit", tooMany},
		{"one invalid", []string{"https://example.com/a", "example.com/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.ScrapeURLs(context.Background(), tt.urls, "")
			var ce *types.ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("err = %v, want ConfigError", err)
			}
		})
	}
	if generic.calls.Load() != 0 {
		t.Errorf("adapter called %d times for rejected input", generic.calls.Load())
	}
}

func TestScrapeProfileReport(t *testing.T) {
	var gotStart, gotEnd time.Time
	twitter := &fakeSource{name: "twitter", profile: func(ctx context.Context, profileURL string, start, end time.Time) (*adapter.Result, error) {
		gotStart, gotEnd = start, end
		p1 := record("twitter", "1", 40, 5, 10)
		c1 := types.NewRecord("twitter", "")
		c1.Set("text", "amazing night")
		p1.AddComment(c1)
		c2 := types.NewRecord("twitter", "")
		c2.Set("text", "awesome lineup")
		p1.AddComment(c2)
		c3 := types.NewRecord("twitter", "")
		c3.Set("text", "too crowded")
		p1.AddComment(c3)
		return &adapter.Result{Query: profileURL, Username: "eventhost", Audience: 1000, Records: []*types.Record{
			p1, record("twitter", "2", 20, 0, 0),
		}}, nil
	}}
	o := newOrchestrator(t, testConfig(), twitter)

	report, err := o.ScrapeProfile(context.Background(), "", "https://x.com/eventhost", "Launch")
	if err != nil {
		t.Fatalf("ScrapeProfile: %v", err)
	}
	if report.Platform != "twitter" || report.Username != "eventhost" || report.EventName != "Launch" {
		t.Errorf("report = %+v", report)
	}
	if !gotEnd.Equal(fixedNow) || !gotStart.Equal(fixedNow.AddDate(0, -3, 0)) {
		t.Errorf("window = %v .. %v", gotStart, gotEnd)
	}
	if report.Metrics.TotalPosts != 2 || report.Metrics.Followers != 1000 {
		t.Errorf("metrics = %+v", report.Metrics)
	}
	if report.Metrics.EngagementRate == nil || *report.Metrics.EngagementRate != 7.5 {
		t.Errorf("engagement rate = %v", report.Metrics.EngagementRate)
	}
	if report.Sentiment.Positive != 2 || report.Sentiment.Negative != 1 || report.Overall != types.SentimentPositive {
		t.Errorf("sentiment = %+v overall = %q", report.Sentiment, report.Overall)
	}
}

func TestScrapeProfileFailures(t *testing.T) {
	o := newOrchestrator(t, testConfig(),
		&fakeSource{name: "instagram", profile: func(ctx context.Context, profileURL string, start, end time.Time) (*adapter.Result, error) {
			return nil, types.ErrBlocked
		}},
		searchOnly{name: "news"},
	)

	_, err := o.ScrapeProfile(context.Background(), "instagram", "https://www.instagram.com/host/", "")
	if types.Classify(err) != types.KindBlocked {
		t.Errorf("kind = %q, want blocked", types.Classify(err))
	}

	_, err = o.ScrapeProfile(context.Background(), "news", "https://news.example/host", "")
	if types.Classify(err) != types.KindUnsupported {
		t.Errorf("kind = %q, want unsupported", types.Classify(err))
	}

	_, err = o.ScrapeProfile(context.Background(), "myspace", "https://myspace.com/host", "")
	if types.Classify(err) != types.KindConfig {
		t.Errorf("kind = %q, want config", types.Classify(err))
	}
}
