package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Retrying wraps a Fetcher with a fixed-delay retry policy for idempotent
// reads. Only errors the fetcher flagged retryable are retried.
type Retrying struct {
	next   Fetcher
	policy retrypolicy.RetryPolicy[*types.Response]
	delay  time.Duration
	logger *slog.Logger
}

// NewRetrying wraps next with cfg.MaxRetries retries spaced cfg.RetryDelay
// apart. A 429 Retry-After longer than the delay is honoured.
func NewRetrying(next Fetcher, cfg config.FetcherConfig, logger *slog.Logger) *Retrying {
	r := &Retrying{
		next:   next,
		delay:  cfg.RetryDelay,
		logger: logger.With("component", "retry"),
	}
	r.policy = newRetryPolicy(cfg.MaxRetries, cfg.RetryDelay, r.logger)
	return r
}

func newRetryPolicy(maxRetries int, delay time.Duration, logger *slog.Logger) retrypolicy.RetryPolicy[*types.Response] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retrypolicy.NewBuilder[*types.Response]().
		WithMaxRetries(maxRetries).
		WithDelay(delay).
		HandleIf(func(_ *types.Response, err error) bool {
			return isRetryable(err)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[*types.Response]) {
			logger.Debug("retrying fetch", "attempt", e.Attempts(), "error", e.LastError())
		}).
		ReturnLastFailure().
		Build()
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *types.FetchError
	if errors.As(err, &fe) {
		return fe.IsRetryable()
	}
	return false
}

// Fetch runs the wrapped fetch under the retry policy.
func (r *Retrying) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	var last error
	return failsafe.With(r.policy).WithContext(ctx).Get(func() (*types.Response, error) {
		if extra := r.extraBackoff(last); extra > 0 {
			if err := sleepCtx(ctx, extra); err != nil {
				return nil, err
			}
		}
		resp, err := r.next.Fetch(ctx, req)
		last = err
		return resp, err
	})
}

// extraBackoff is how much longer than the fixed delay a 429 asked us to wait.
func (r *Retrying) extraBackoff(last error) time.Duration {
	var fe *types.FetchError
	if errors.As(last, &fe) && fe.RetryAfter > r.delay {
		return fe.RetryAfter - r.delay
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close closes the wrapped fetcher.
func (r *Retrying) Close() error { return r.next.Close() }

// Type returns the wrapped fetcher's type.
func (r *Retrying) Type() string { return r.next.Type() }
