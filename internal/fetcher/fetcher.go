package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Router dispatches each request to the fetcher named by its FetcherType.
// Requests for a browser when none is configured fall back to HTTP.
type Router struct {
	http    Fetcher
	browser Fetcher
}

// NewRouter creates a Router. browser may be nil.
func NewRouter(http, browser Fetcher) *Router {
	return &Router{http: http, browser: browser}
}

// Fetch routes the request.
func (r *Router) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.FetcherType == types.FetcherBrowser && r.browser != nil {
		return r.browser.Fetch(ctx, req)
	}
	if r.http == nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("no fetcher available for request")}
	}
	return r.http.Fetch(ctx, req)
}

// Close closes both fetchers.
func (r *Router) Close() error {
	var firstErr error
	for _, f := range []Fetcher{r.http, r.browser} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Type returns the fetcher type identifier.
func (r *Router) Type() string {
	if r.browser != nil {
		return "router(http,browser)"
	}
	return "router(http)"
}

// NewFromConfig builds the shared fetch stack: an HTTP fetcher, a browser
// fetcher when enabled, both behind the retry policy.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	httpFetcher, err := NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	var browser Fetcher
	if cfg.Fetcher.Type == types.FetcherBrowser || cfg.Fetcher.Browser.Enabled {
		var opts []BrowserOption
		if pool := httpFetcher.Proxies(); pool != nil {
			opts = append(opts, WithBrowserProxy(pool))
		}
		bf, err := NewBrowserFetcher(cfg, logger, opts...)
		if err != nil {
			logger.Warn("browser fetcher unavailable, falling back to http", "error", err)
		} else {
			browser = bf
		}
	}

	return NewRetrying(NewRouter(httpFetcher, browser), cfg.Fetcher, logger), nil
}
