package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/export"
	"github.com/IshaanNene/eventscope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

// source is a fake reddit-like adapter supporting search and single pages.
type source struct {
	name   string
	single func(rawURL string) (*types.Record, error)
	calls  atomic.Int32
}

func (s *source) Name() string { return s.name }

func (s *source) SearchEvent(ctx context.Context, query string, start, end time.Time) (*adapter.Result, error) {
	s.calls.Add(1)
	return &adapter.Result{
		Query:   query,
		Records: []*types.Record{post(s.name, "a", 10, 2, 1), post(s.name, "b", 5, 0, 0)},
		Total:   2,
	}, nil
}

func (s *source) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	s.calls.Add(1)
	if s.single != nil {
		return s.single(rawURL)
	}
	rec := post(s.name, "single", 3, 1, 0)
	rec.URL = rawURL
	return rec, nil
}

// profileOnly has no search capability.
type profileOnly struct {
	calls atomic.Int32
}

func (p *profileOnly) Name() string { return "instagram" }

func (p *profileOnly) ScrapeProfile(ctx context.Context, profileURL string, start, end time.Time) (*adapter.Result, error) {
	p.calls.Add(1)
	return &adapter.Result{Records: []*types.Record{post("instagram", "p1", 100, 10, 0)}, Audience: 1000}, nil
}

func post(platform, id string, likes, comments, shares int64) *types.Record {
	rec := types.NewRecord(platform, "https://"+platform+".example/"+id)
	rec.Set("id", id)
	rec.Set("text", "Launch party was great "+id)
	rec.Set("author", "fan_"+id)
	rec.Set("likes", likes)
	rec.Set("num_comments", comments)
	rec.Set("shares", shares)
	rec.Set("created_at", "2024-06-12T10:00:00Z")
	return rec
}

func newTestServer(t *testing.T, sources ...adapter.Adapter) *Server {
	t.Helper()
	reg := adapter.NewRegistry(testLogger)
	for _, s := range sources {
		if err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.DefaultConfig()
	cfg.Engine.TaskTimeout = 2 * time.Second
	cfg.Engine.MaxURLs = 3
	o, err := engine.New(cfg, reg, testLogger,
		engine.WithClock(func() time.Time { return fixedNow }),
		engine.WithIDs(func() string { return "run-1" }),
	)
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(cfg.API, o, testLogger)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestPlatforms(t *testing.T) {
	s := newTestServer(t, &source{name: "reddit"}, &profileOnly{})
	for _, path := range []string{"/api/platforms", "/api/supported-platforms"} {
		rec := do(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		var body struct {
			Platforms []adapter.Info `json:"platforms"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if len(body.Platforms) != 2 || body.Platforms[0].Name != "instagram" || !body.Platforms[1].Search {
			t.Errorf("%s platforms = %+v", path, body.Platforms)
		}
	}
}

func TestScrapeEventJSON(t *testing.T) {
	reddit := &source{name: "reddit"}
	s := newTestServer(t, reddit, &profileOnly{})

	rec := do(t, s, http.MethodPost, "/api/scrape-event",
		`{"eventName":"Launch Party","eventDate":"2024-06-10","platforms":["Reddit"],"socialLinks":{"instagram":"https://www.instagram.com/launch/"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}

	var body struct {
		Success bool              `json:"success"`
		Data    types.EventReport `json:"data"`
		Summary export.Summary    `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data.ID != "run-1" {
		t.Errorf("unexpected envelope: %+v", body)
	}
	if len(body.Data.Results) != 2 || body.Data.Results[0].Tag != "instagram:profile" || body.Data.Results[1].Tag != "reddit" {
		t.Errorf("results = %+v", body.Data.Results)
	}
	if body.Summary.TotalPosts != 3 {
		t.Errorf("summary posts = %d, want 3", body.Summary.TotalPosts)
	}
	if body.Summary.PeriodCovered.Start.Format(time.DateOnly) != "2024-06-10" {
		t.Errorf("period = %+v", body.Summary.PeriodCovered)
	}
}

func TestScrapeEventDefaultsToSearchablePlatforms(t *testing.T) {
	reddit := &source{name: "reddit"}
	insta := &profileOnly{}
	s := newTestServer(t, reddit, insta)

	rec := do(t, s, http.MethodPost, "/api/scrape-event", `{"eventName":"Launch","eventDate":"2024-06-10"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if reddit.calls.Load() != 1 {
		t.Errorf("reddit calls = %d, want 1", reddit.calls.Load())
	}
	if insta.calls.Load() != 0 {
		t.Error("profile-only adapter should not be searched")
	}
}

func TestScrapeEventCSV(t *testing.T) {
	for _, output := range []string{"csv", "excel"} {
		t.Run(output, func(t *testing.T) {
			s := newTestServer(t, &source{name: "reddit"})
			rec := do(t, s, http.MethodPost, "/api/scrape-event",
				`{"eventName":"Launch Party","eventDate":"2024-06-10","platforms":["reddit"],"output":"`+output+`"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
				t.Errorf("content type = %q", ct)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "event_analysis_launch_party_2024-07-01.csv") {
				t.Errorf("content disposition = %q", cd)
			}
			rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 3 || rows[0][0] != "eventName" || rows[1][0] != "Launch Party" {
				t.Errorf("rows = %v", rows)
			}
		})
	}
}

func TestScrapeEventJSONL(t *testing.T) {
	s := newTestServer(t, &source{name: "reddit"})
	rec := do(t, s, http.MethodPost, "/api/scrape-event",
		`{"eventName":"Launch","eventDate":"2024-06-10","platforms":["reddit"],"output":"jsonl"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var total int64
	for _, line := range lines {
		var row export.Row
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			t.Fatal(err)
		}
		if row.Platform != "reddit" {
			t.Errorf("row = %+v", row)
		}
		total += row.Engagement
	}
	if total != (10+2*2+3*1)+5 {
		t.Errorf("weighted engagement = %d, want 22", total)
	}
}

func TestScrapeEventValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"eventName":`, "invalid JSON"},
		{"missing name", `{"eventDate":"2024-06-10"}`, "Event name is required"},
		{"missing date", `{"eventName":"Launch"}`, "Event date is required"},
		{"bad date", `{"eventName":"Launch","eventDate":"10/06/2024"}`, "Invalid event date format"},
		{"impossible date", `{"eventName":"Launch","eventDate":"2024-02-31"}`, "Invalid event date format"},
		{"bad output", `{"eventName":"Launch","eventDate":"2024-06-10","output":"xml"}`, "Output format"},
		{"unknown platform", `{"eventName":"Launch","eventDate":"2024-06-10","platforms":["myspace"]}`, "Unsupported platforms: myspace"},
		{"bad social link", `{"eventName":"Launch","eventDate":"2024-06-10","socialLinks":{"reddit":"ftp://x"}}`, "invalid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reddit := &source{name: "reddit"}
			s := newTestServer(t, reddit)
			rec := do(t, s, http.MethodPost, "/api/scrape-event", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decodeBody(t, rec)
			if body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
			if msg, _ := body["error"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.want)
			}
			if reddit.calls.Load() != 0 {
				t.Error("no source should be contacted on invalid input")
			}
		})
	}
}

type stubExporter struct {
	got *types.EventReport
}

func (e *stubExporter) Name() string { return "stub" }
func (e *stubExporter) Close() error { return nil }

func (e *stubExporter) Export(_ context.Context, r *types.EventReport) (*export.Receipt, error) {
	e.got = r
	return &export.Receipt{Backend: "stub", Location: "memory", Rows: r.PostCount()}, nil
}

func TestScrapeEventExports(t *testing.T) {
	s := newTestServer(t, &source{name: "reddit"})
	exp := &stubExporter{}
	s.SetExporter(exp)

	rec := do(t, s, http.MethodPost, "/api/scrape-event", `{"eventName":"Launch","eventDate":"2024-06-10","platforms":["reddit"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if exp.got == nil || exp.got.ID != "run-1" {
		t.Fatalf("exporter got %+v", exp.got)
	}
	body := decodeBody(t, rec)
	receipt, _ := body["export"].(map[string]any)
	if receipt["backend"] != "stub" || receipt["rows"] != float64(2) {
		t.Errorf("export receipt = %v", body["export"])
	}
}

func TestScrape(t *testing.T) {
	reddit := &source{name: "reddit"}
	s := newTestServer(t, reddit)

	rec := do(t, s, http.MethodPost, "/api/scrape", `{"url":"https://www.reddit.com/r/events/comments/abc/launch/","eventName":"Launch"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var body struct {
		Data types.Post `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Platform != "reddit" || body.Data.Metadata["event_name"] != "Launch" {
		t.Errorf("post = %+v", body.Data)
	}
}

func TestScrapeErrors(t *testing.T) {
	missing := &source{name: "reddit", single: func(rawURL string) (*types.Record, error) {
		return nil, &types.FetchError{URL: rawURL, StatusCode: http.StatusNotFound, Err: types.ErrNotFound}
	}}

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"missing url", `{"eventName":"Launch"}`, http.StatusBadRequest, ""},
		{"missing event", `{"url":"https://www.reddit.com/r/x/comments/1/"}`, http.StatusBadRequest, ""},
		{"invalid url", `{"url":"not a url","eventName":"Launch"}`, http.StatusBadRequest, ""},
		{"not found", `{"url":"https://www.reddit.com/r/x/comments/1/","eventName":"Launch"}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, missing, &source{name: "generic"})
			rec := do(t, s, http.MethodPost, "/api/scrape", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.kind != "" {
				if body := decodeBody(t, rec); body["kind"] != tt.kind {
					t.Errorf("kind = %v, want %s", body["kind"], tt.kind)
				}
			}
		})
	}
}

func TestScrapeMultiple(t *testing.T) {
	s := newTestServer(t, &source{name: "reddit"}, &source{name: "generic"})

	rec := do(t, s, http.MethodPost, "/api/scrape-multiple",
		`{"urls":["https://www.reddit.com/r/x/comments/1/","https://blog.example.com/post"],"eventName":"Launch"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var body struct {
		Data   []types.URLOutcome `json:"data"`
		Count  int                `json:"count"`
		Failed int                `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || body.Failed != 0 {
		t.Errorf("count = %d failed = %d", body.Count, body.Failed)
	}
	if body.Data[0].Platform != "reddit" || body.Data[1].Platform != "generic" {
		t.Errorf("outcomes = %+v", body.Data)
	}

	tests := []struct {
		name string
		body string
	}{
		{"missing urls", `{"eventName":"Launch"}`},
		{"empty urls", `{"urls":[]}`},
		{"too many", `{"urls":["https://a.example/1","https://a.example/2","https://a.example/3","https://a.example/4"]}`},
		{"invalid url", `{"urls":["https://a.example/1","mailto:x@y"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/scrape-multiple", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestScrapeProfile(t *testing.T) {
	insta := &profileOnly{}
	s := newTestServer(t, insta, &source{name: "reddit"})

	rec := do(t, s, http.MethodPost, "/api/scrape-profile",
		`{"profileUrl":"https://www.instagram.com/launch/","platform":"instagram","eventName":"Launch"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var body struct {
		Data types.ProfileReport `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Metrics.Followers != 1000 || body.Data.Metrics.EngagementRate == nil {
		t.Errorf("metrics = %+v", body.Data.Metrics)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing url", `{"platform":"instagram"}`, http.StatusBadRequest},
		{"missing platform", `{"profileUrl":"https://www.instagram.com/launch/"}`, http.StatusBadRequest},
		{"unknown platform", `{"profileUrl":"https://myspace.com/launch","platform":"myspace"}`, http.StatusBadRequest},
		{"unsupported", `{"profileUrl":"https://www.reddit.com/r/launch/","platform":"reddit"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/scrape-profile", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind types.ErrorKind
		want int
	}{
		{types.KindNotFound, http.StatusNotFound},
		{types.KindBlocked, http.StatusBadGateway},
		{types.KindTimeout, http.StatusGatewayTimeout},
		{types.KindUnsupported, http.StatusBadRequest},
		{types.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForKind(tt.kind); got != tt.want {
			t.Errorf("statusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
