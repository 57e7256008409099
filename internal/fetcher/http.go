package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

const (
	defaultAccept = "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8"

	// maxRetryAfter caps how long a 429 can push the next attempt out.
	maxRetryAfter = 2 * time.Minute
)

type proxyKey struct{}

// HTTPFetcher talks to platform APIs and plain HTML pages. One instance is
// shared by every adapter.
type HTTPFetcher struct {
	client       *http.Client
	maxBody      int64
	proxies      *ProxyPool
	rotateOnFail bool
	agents       []string
	agent        atomic.Uint64
	logger       *slog.Logger
}

// NewHTTPFetcher builds the shared client from the fetcher and proxy
// sections of cfg.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	f := &HTTPFetcher{
		maxBody:      cfg.Fetcher.MaxBodySize,
		rotateOnFail: cfg.Proxy.RotateOnFail,
		agents:       cfg.Fetcher.UserAgents,
		logger:       logger.With("component", "http_fetcher"),
	}
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		f.proxies = NewProxyPool(cfg.Proxy, logger)
	}

	fc := cfg.Fetcher
	f.client = &http.Client{
		Transport: newTransport(fc, f.proxies),
		Jar:       jar,
		Timeout:   fc.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if !fc.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= fc.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", fc.MaxRedirects)
			}
			return nil
		},
	}
	return f, nil
}

func newTransport(cfg config.FetcherConfig, proxies *ProxyPool) *http.Transport {
	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: max(cfg.MaxIdleConns/2, 1),
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.TLSInsecure},
		// Bodies are decoded in readBody so brotli is covered too.
		DisableCompression: true,
	}
	if proxies != nil {
		t.Proxy = func(r *http.Request) (*url.URL, error) {
			u, _ := r.Context().Value(proxyKey{}).(*url.URL)
			return u, nil
		}
	}
	return t
}

// Proxies returns the proxy pool, nil when proxying is off.
func (f *HTTPFetcher) Proxies() *ProxyPool { return f.proxies }

// Fetch performs req. Statuses of 400 and above come back as
// *types.FetchError carrying the matching sentinel.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	target := req.URLString()

	var proxy *url.URL
	if f.proxies != nil {
		if proxy = f.proxies.Next(); proxy == nil {
			return nil, &types.FetchError{URL: target, Err: types.ErrProxyExhausted, Retryable: true}
		}
		ctx = context.WithValue(ctx, proxyKey{}, proxy)
	}

	httpReq, err := f.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		retry := transient(err)
		if proxy != nil && retry && f.rotateOnFail {
			f.proxies.Bench(proxy, err)
		}
		return nil, &types.FetchError{URL: target, Err: err, Retryable: retry}
	}
	defer httpResp.Body.Close()

	if err := statusError(target, httpResp); err != nil {
		return nil, err
	}

	data, err := f.readBody(httpResp)
	if err != nil {
		return nil, &types.FetchError{URL: target, StatusCode: httpResp.StatusCode, Err: err, Retryable: true}
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "html") {
		if reason := DetectBlock(string(data)); reason != "" {
			return nil, &types.FetchError{
				URL:        target,
				StatusCode: httpResp.StatusCode,
				Err:        fmt.Errorf("%w: %s", types.ErrBlocked, reason),
			}
		}
	}

	f.logger.Debug("fetched", "platform", req.Platform, "url", target, "status", httpResp.StatusCode, "bytes", len(data), "elapsed", elapsed)
	return types.NewResponse(req, httpResp, data, elapsed), nil
}

// newHTTPRequest applies the default browser-like headers, then the
// adapter's own headers on top.
func (f *HTTPFetcher) newHTTPRequest(ctx context.Context, req *types.Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URLString(), body)
	if err != nil {
		return nil, err
	}

	h := httpReq.Header
	h.Set("User-Agent", f.userAgent())
	h.Set("Accept", defaultAccept)
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range req.Headers {
		h.Del(key)
		for _, v := range values {
			h.Add(key, v)
		}
	}
	return httpReq, nil
}

// readBody reads at most maxBody bytes and undoes the content encoding.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if f.maxBody > 0 {
		r = io.LimitReader(r, f.maxBody)
	}

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fl := flate.NewReader(r)
		defer fl.Close()
		r = fl
	case "br":
		r = brotli.NewReader(r)
	}
	return io.ReadAll(r)
}

func (f *HTTPFetcher) userAgent() string {
	if len(f.agents) == 0 {
		return "eventscope/" + config.Version
	}
	n := f.agent.Add(1) - 1
	return f.agents[n%uint64(len(f.agents))]
}

// Close drops idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns types.FetcherHTTP.
func (f *HTTPFetcher) Type() string { return types.FetcherHTTP }

// statusError classifies a response of 400 or above.
func statusError(rawURL string, resp *http.Response) error {
	code := resp.StatusCode
	if code < http.StatusBadRequest {
		return nil
	}
	fe := &types.FetchError{URL: rawURL, StatusCode: code}

	switch {
	case code == http.StatusTooManyRequests:
		fe.RetryAfter = retryAfter(resp.Header.Get("Retry-After"), time.Now())
		fe.Retryable = true
		fe.Err = fmt.Errorf("%w: rate limited, retry after %s", types.ErrBlocked, fe.RetryAfter)
	case code == http.StatusNotFound, code == http.StatusGone:
		fe.Err = fmt.Errorf("%w: HTTP %d", types.ErrNotFound, code)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		fe.Err = fmt.Errorf("%w: HTTP %d", types.ErrBlocked, code)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fe.Err = fmt.Errorf("HTTP %d: %s", code, strings.TrimSpace(string(snippet)))
		fe.Retryable = code >= http.StatusInternalServerError
	}
	return fe
}

// transient reports whether a transport error is worth another attempt.
// Cancellation and deadlines never are.
func transient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP
// date, capped at maxRetryAfter. A missing or unreadable header means 5s.
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	d := 5 * time.Second
	if secs, err := strconv.Atoi(header); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(header); err == nil {
		d = max(t.Sub(now), time.Second)
	}
	return min(d, maxRetryAfter)
}
