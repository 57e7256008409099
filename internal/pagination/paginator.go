// Package pagination follows opaque forward cursors across a paged source
// with a hard result cap and a fixed delay between pages.
package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
)

const (
	// DefaultPageSize is the per-request item count asked of a source.
	DefaultPageSize = 100
	// DefaultMaxResults is the hard cap on items collected per fetch.
	DefaultMaxResults = 1000
	// DefaultDelay is the pause between consecutive page requests.
	DefaultDelay = time.Second
)

// StopReason explains why a fetch loop ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopCap       StopReason = "cap"
	StopStalled   StopReason = "stalled"
	StopEmpty     StopReason = "empty"
	StopError     StopReason = "error"
)

// Page is one response from a paged source. An empty NextCursor means the
// source has no further pages.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// PageFunc requests the page at cursor. The first call receives "".
type PageFunc[T any] func(ctx context.Context, cursor string, limit int) (Page[T], error)

// Stats describes a completed fetch.
type Stats struct {
	Pages  int
	Items  int
	Reason StopReason
}

// Paginator drives a PageFunc until the cursor runs out or the cap is hit.
type Paginator[T any] struct {
	PageSize   int
	MaxResults int
	Delay      time.Duration

	// OnPage, when set, is called after every successful page.
	OnPage func(page int, items int)

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Paginator with the default limits.
func New[T any]() *Paginator[T] {
	return &Paginator[T]{
		PageSize:   DefaultPageSize,
		MaxResults: DefaultMaxResults,
		Delay:      DefaultDelay,
	}
}

// FromConfig creates a Paginator from the pagination settings.
func FromConfig[T any](cfg config.PaginationConfig) *Paginator[T] {
	p := New[T]()
	if cfg.PageSize > 0 {
		p.PageSize = cfg.PageSize
	}
	if cfg.MaxResults > 0 {
		p.MaxResults = cfg.MaxResults
	}
	if cfg.Delay >= 0 {
		p.Delay = cfg.Delay
	}
	return p
}

// Fetch collects items page by page. It stops when the cursor runs out,
// a page comes back empty, the cursor repeats or the cap is reached. Any
// page error aborts the loop and the partial result is discarded. Reaching the cap is not an error; the
// result is truncated to exactly MaxResults.
func (p *Paginator[T]) Fetch(ctx context.Context, fn PageFunc[T]) ([]T, Stats, error) {
	var (
		all    []T
		stats  Stats
		cursor string
	)

	for {
		limit := p.PageSize
		if remaining := p.MaxResults - len(all); p.MaxResults > 0 && remaining < limit {
			limit = remaining
		}

		page, err := fn(ctx, cursor, limit)
		stats.Pages++
		if err != nil {
			stats.Reason = StopError
			stats.Items = 0
			return nil, stats, fmt.Errorf("page %d: %w", stats.Pages, err)
		}

		all = append(all, page.Items...)
		if p.MaxResults > 0 && len(all) > p.MaxResults {
			all = all[:p.MaxResults]
		}
		stats.Items = len(all)
		if p.OnPage != nil {
			p.OnPage(stats.Pages, len(page.Items))
		}

		if page.NextCursor == "" {
			stats.Reason = StopExhausted
			break
		}
		// A page without items must not keep the walk alive on a fresh cursor.
		if len(page.Items) == 0 {
			stats.Reason = StopEmpty
			break
		}
		if p.MaxResults > 0 && len(all) >= p.MaxResults {
			stats.Reason = StopCap
			break
		}
		if page.NextCursor == cursor {
			stats.Reason = StopStalled
			break
		}
		cursor = page.NextCursor

		if err := p.wait(ctx); err != nil {
			stats.Reason = StopError
			stats.Items = 0
			return nil, stats, err
		}
	}

	return all, stats, nil
}

func (p *Paginator[T]) wait(ctx context.Context) error {
	if p.sleep != nil {
		return p.sleep(ctx, p.Delay)
	}
	return Sleep(ctx, p.Delay)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
