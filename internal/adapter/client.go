package adapter

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/fetcher"
	"github.com/IshaanNene/eventscope/internal/pipeline"
	"github.com/IshaanNene/eventscope/internal/types"
)

// client issues requests to one platform through the shared fetcher.
type client struct {
	platform string
	cfg      config.PlatformConfig
	fetcher  fetcher.Fetcher
	logger   *slog.Logger

	// authHeader carries cfg.Token. Empty means "Authorization: Bearer".
	authHeader string
}

func newClient(platform string, cfg config.PlatformConfig, deps Deps) client {
	return client{
		platform: platform,
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		logger:   deps.logger().With("component", "adapter", "platform", platform),
	}
}

// baseURL returns the configured API root without a trailing slash.
func (c client) baseURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

func (c client) newRequest(rawURL string) (*types.Request, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Platform = c.platform
	if c.cfg.FetcherType != "" {
		req.FetcherType = c.cfg.FetcherType
	}
	if c.cfg.Token != "" {
		if c.authHeader == "" {
			req.Headers.Set("Authorization", "Bearer "+c.cfg.Token)
		} else {
			req.Headers.Set(c.authHeader, c.cfg.Token)
		}
	}
	return req, nil
}

// getJSON fetches rawURL over plain HTTP and decodes the body into v.
func (c client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := c.newRequest(rawURL)
	if err != nil {
		return err
	}
	req.FetcherType = types.FetcherHTTP
	req.Headers.Set("Accept", "application/json")

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(v)
}

// getPage fetches an HTML page with the platform's fetcher type.
func (c client) getPage(ctx context.Context, rawURL string) (*types.Response, error) {
	req, err := c.newRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.WaitFor = c.cfg.WaitSelector
	return c.fetcher.Fetch(ctx, req)
}

// createdKeys are the raw keys checked when filtering records by time.
var createdKeys = pipeline.DefaultFieldMap().Created

// filterWindow keeps records created inside [start, end). Records without a
// parseable timestamp are kept; the normalizer flags them.
func filterWindow(recs []*types.Record, start, end time.Time) []*types.Record {
	window := types.TimeWindow{Start: start, End: end}
	out := make([]*types.Record, 0, len(recs))
	for _, rec := range recs {
		created, ok := recordTime(rec)
		if ok && !window.Contains(created) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recordTime(rec *types.Record) (time.Time, bool) {
	for _, k := range createdKeys {
		if v, ok := rec.Get(k); ok && v != nil {
			return pipeline.ParseTimestamp(v, time.Time{})
		}
	}
	return time.Time{}, false
}

// absoluteURL resolves href against base.
func absoluteURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// stringAt walks nested JSON objects along keys.
func stringAt(m map[string]any, keys ...string) string {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[k]
	}
	s, _ := cur.(string)
	return s
}
