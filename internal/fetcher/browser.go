package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

// waitForTimeout bounds the wait on a request's WaitFor selector.
const waitForTimeout = 10 * time.Second

// BrowserFetcher renders script-heavy pages (instagram, linkedin) in a
// headless Chromium with stealth patches applied. Pages are pooled.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	timeout time.Duration
	proxies *ProxyPool
	pages   chan *rod.Page
	logger  *slog.Logger
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithBrowserProxy routes the browser through the next proxy of pool at
// launch time.
func WithBrowserProxy(pool *ProxyPool) BrowserOption {
	return func(bf *BrowserFetcher) { bf.proxies = pool }
}

// NewBrowserFetcher launches Chromium and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger, opts ...BrowserOption) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:     cfg.Fetcher.Browser,
		timeout: cfg.Fetcher.Timeout,
		logger:  logger.With("component", "browser_fetcher"),
	}
	for _, opt := range opts {
		opt(bf)
	}
	size := max(bf.cfg.PoolSize, 1)

	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if bf.proxies != nil {
		if u := bf.proxies.Next(); u != nil {
			l = l.Proxy(u.String())
		}
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bf.browser = rod.New().ControlURL(controlURL)
	if err := bf.browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.pages = make(chan *rod.Page, size)

	bf.logger.Info("browser ready", "pool_size", size, "headless", bf.cfg.Headless)
	return bf, nil
}

// Fetch loads req in a pooled page and returns the rendered HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()
	start := time.Now()

	page, err := bf.acquire()
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err, Retryable: true}
	}
	defer bf.release(page)

	timeout := bf.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	html, finalURL, err := bf.render(page.Context(ctx).Timeout(timeout), req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &types.FetchError{URL: target, Err: ctx.Err()}
		}
		return nil, &types.FetchError{URL: target, Err: err, Retryable: true}
	}

	if reason := DetectBlock(html); reason != "" {
		return nil, &types.FetchError{URL: target, Err: fmt.Errorf("%w: %s", types.ErrBlocked, reason)}
	}

	elapsed := time.Since(start)
	bf.logger.Debug("rendered", "platform", req.Platform, "url", target, "final_url", finalURL, "bytes", len(html), "elapsed", elapsed)
	return types.NewBrowserResponse(req, html, finalURL, elapsed), nil
}

// render navigates, waits for the page to settle and for req.WaitFor, and
// returns the page HTML with the URL the browser ended on.
func (bf *BrowserFetcher) render(p *rod.Page, req *types.Request) (string, string, error) {
	if ua := req.Headers.Get("User-Agent"); ua != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("user agent override failed", "error", err)
		}
	}
	if err := p.Navigate(req.URLString()); err != nil {
		return "", "", err
	}
	if err := p.WaitStable(bf.cfg.WaitIdle); err != nil {
		bf.logger.Debug("page never settled", "url", req.URLString(), "error", err)
	}
	if req.WaitFor != "" {
		el, err := p.Timeout(waitForTimeout).Element(req.WaitFor)
		if err != nil {
			bf.logger.Debug("wait selector not found", "selector", req.WaitFor, "error", err)
		} else {
			_ = el.WaitVisible()
		}
	}

	html, err := p.HTML()
	if err != nil {
		return "", "", err
	}
	finalURL := req.URLString()
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}
	return html, finalURL, nil
}

// acquire takes a pooled page or opens a new stealth page.
func (bf *BrowserFetcher) acquire() (*rod.Page, error) {
	select {
	case page := <-bf.pages:
		return page, nil
	default:
		return stealth.Page(bf.browser)
	}
}

// release blanks the page and pools it, closing it when the pool is full.
func (bf *BrowserFetcher) release(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case bf.pages <- page:
	default:
		_ = page.Close()
	}
}

// Close closes pooled pages and the browser.
func (bf *BrowserFetcher) Close() error {
	close(bf.pages)
	for page := range bf.pages {
		_ = page.Close()
	}
	return bf.browser.Close()
}

// Type returns types.FetcherBrowser.
func (bf *BrowserFetcher) Type() string { return types.FetcherBrowser }
