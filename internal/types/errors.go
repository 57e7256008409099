package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBlocked        = errors.New("blocked by source")
	ErrMalformed      = errors.New("malformed source response")
	ErrUnsupported    = errors.New("operation not supported")
	ErrCancelled      = errors.New("task cancelled")
	ErrTimeout        = errors.New("task timed out")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrUnknownSource  = errors.New("unknown source")
	ErrProxyExhausted = errors.New("all proxies exhausted")
)

// ErrorKind is the stable classification attached to every source failure.
type ErrorKind string

const (
	KindConfig      ErrorKind = "config"
	KindTransport   ErrorKind = "transport"
	KindTimeout     ErrorKind = "timeout"
	KindCancelled   ErrorKind = "cancelled"
	KindNotFound    ErrorKind = "not_found"
	KindBlocked     ErrorKind = "blocked"
	KindMalformed   ErrorKind = "malformed"
	KindUnsupported ErrorKind = "unsupported"
	KindInternal    ErrorKind = "internal"
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while decoding a source payload.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the normalization pipeline.
type PipelineError struct {
	Stage  string
	Record *Record
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ConfigError reports an invalid request or configuration. It aborts a run
// before any source is contacted.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError from a format string.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// SourceError is a classified failure from one platform adapter.
type SourceError struct {
	Platform string
	Kind     ErrorKind
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Platform, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError classifies err and tags it with the platform name.
func NewSourceError(platform string, err error) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		if se.Platform == platform {
			return se
		}
		return &SourceError{Platform: platform, Kind: se.Kind, Err: se.Err}
	}
	return &SourceError{Platform: platform, Kind: Classify(err), Err: err}
}

// Unsupported returns the error adapters report for a missing capability.
func Unsupported(platform, operation string) *SourceError {
	return &SourceError{
		Platform: platform,
		Kind:     KindUnsupported,
		Err:      fmt.Errorf("%w: %s does not support %s", ErrUnsupported, platform, operation),
	}
}

// Classify maps an arbitrary error onto the failure taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return KindConfig
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrUnknownSource):
		return KindConfig
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return kindForStatus(fe.StatusCode)
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return KindMalformed
	}

	return KindInternal
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return KindBlocked
	default:
		return KindTransport
	}
}
