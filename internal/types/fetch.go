package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher kinds a request can be routed to.
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

// Request is one outbound call an adapter makes to its platform.
type Request struct {
	URL     *url.URL
	Method  string
	Headers http.Header
	Body    []byte

	// Timeout overrides the fetcher timeout when set.
	Timeout time.Duration

	// Platform is the adapter that issued the request.
	Platform string

	// FetcherType routes the request: FetcherHTTP or FetcherBrowser.
	FetcherType string

	// WaitFor is a CSS selector the browser fetcher waits on before it
	// reads the rendered page. Ignored over plain HTTP.
	WaitFor string
}

// NewRequest creates a GET request for an absolute URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w %q: missing scheme or host", ErrInvalidURL, rawURL)
	}
	return &Request{
		URL:         u,
		Method:      http.MethodGet,
		Headers:     make(http.Header),
		FetcherType: FetcherHTTP,
	}, nil
}

func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Response is a fetched page or API payload. Body is already decompressed.
type Response struct {
	Request     *Request
	StatusCode  int
	Headers     http.Header
	ContentType string
	Body        []byte

	// FinalURL is the URL after redirects, or the browser's location.
	FinalURL string
	Elapsed  time.Duration

	// Doc caches the parsed HTML; see Document.
	Doc *goquery.Document
}

// NewResponse wraps an HTTP response whose body has been read.
func NewResponse(req *Request, httpResp *http.Response, body []byte, elapsed time.Duration) *Response {
	return &Response{
		Request:     req,
		StatusCode:  httpResp.StatusCode,
		Headers:     httpResp.Header,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
		FinalURL:    httpResp.Request.URL.String(),
		Elapsed:     elapsed,
	}
}

// NewBrowserResponse wraps the HTML of a rendered page.
func NewBrowserResponse(req *Request, html string, finalURL string, elapsed time.Duration) *Response {
	return &Response{
		Request:     req,
		StatusCode:  http.StatusOK,
		Headers:     make(http.Header),
		ContentType: "text/html",
		Body:        []byte(html),
		FinalURL:    finalURL,
		Elapsed:     elapsed,
	}
}

// Document parses the body as HTML once and caches the result. An empty or
// undecodable body is a malformed response.
func (r *Response) Document() (*goquery.Document, error) {
	if r.Doc != nil {
		return r.Doc, nil
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, r.malformed(ErrEmptyResponse)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, r.malformed(err)
	}
	r.Doc = doc
	return doc, nil
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return r.malformed(ErrEmptyResponse)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return r.malformed(err)
	}
	return nil
}

func (r *Response) malformed(err error) error {
	return &ParseError{URL: r.FinalURL, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
}
