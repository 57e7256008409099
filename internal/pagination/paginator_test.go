package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
)

func noSleep(p *Paginator[int]) *Paginator[int] {
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

// pagedSource serves `pages` full pages, then one final page with no cursor.
func pagedSource(pages, size int, calls *int) PageFunc[int] {
	return func(ctx context.Context, cursor string, limit int) (Page[int], error) {
		*calls++
		n := *calls
		items := make([]int, size)
		for i := range items {
			items[i] = n*1000 + i
		}
		if n > pages {
			return Page[int]{Items: items}, nil
		}
		return Page[int]{Items: items, NextCursor: fmt.Sprintf("c%d", n)}, nil
	}
}

func TestFetchFollowsCursorUntilEmpty(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("pages=%d", n), func(t *testing.T) {
			calls := 0
			p := noSleep(New[int]())
			items, stats, err := p.Fetch(context.Background(), pagedSource(n, 10, &calls))
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if calls != n+1 {
				t.Errorf("expected %d requests, got %d", n+1, calls)
			}
			if len(items) != (n+1)*10 {
				t.Errorf("expected %d items, got %d", (n+1)*10, len(items))
			}
			if stats.Reason != StopExhausted || stats.Pages != n+1 {
				t.Errorf("stats = %+v", stats)
			}
		})
	}
}

func TestFetchStopsAtCap(t *testing.T) {
	calls := 0
	p := noSleep(New[int]())
	p.PageSize = 100
	p.MaxResults = 250

	var limits []int
	src := pagedSource(100, 100, &calls)
	items, stats, err := p.Fetch(context.Background(), func(ctx context.Context, cursor string, limit int) (Page[int], error) {
		limits = append(limits, limit)
		return src(ctx, cursor, limit)
	})
	if err != nil {
		t.Fatalf("reaching the cap is not an error: %v", err)
	}
	if len(items) != 250 {
		t.Errorf("expected exactly 250 items, got %d", len(items))
	}
	if calls != 3 {
		t.Errorf("expected 3 requests, got %d", calls)
	}
	if stats.Reason != StopCap {
		t.Errorf("expected cap stop, got %s", stats.Reason)
	}
	if limits[2] != 50 {
		t.Errorf("expected last request limited to remaining 50, got %v", limits)
	}
}

func TestFetchErrorDiscardsPartial(t *testing.T) {
	boom := errors.New("rate limited")
	calls := 0
	p := noSleep(New[int]())
	items, stats, err := p.Fetch(context.Background(), func(ctx context.Context, cursor string, limit int) (Page[int], error) {
		calls++
		if calls == 3 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: []int{calls}, NextCursor: fmt.Sprint(calls)}, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped page error, got %v", err)
	}
	if items != nil {
		t.Errorf("partial results must be discarded, got %v", items)
	}
	if stats.Reason != StopError {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFetchStalledCursor(t *testing.T) {
	calls := 0
	p := noSleep(New[int]())
	items, stats, err := p.Fetch(context.Background(), func(ctx context.Context, cursor string, limit int) (Page[int], error) {
		calls++
		return Page[int]{Items: []int{calls}, NextCursor: "same"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || len(items) != 2 || stats.Reason != StopStalled {
		t.Errorf("calls=%d items=%v stats=%+v", calls, items, stats)
	}
}

func TestFetchEmptyPageWithFreshCursorTerminates(t *testing.T) {
	calls := 0
	p := noSleep(New[int]())
	items, stats, err := p.Fetch(context.Background(), func(ctx context.Context, cursor string, limit int) (Page[int], error) {
		calls++
		if calls > 10 {
			return Page[int]{}, errors.New("fetch kept going after an empty page")
		}
		if calls == 1 {
			return Page[int]{Items: []int{1, 2}, NextCursor: "c1"}, nil
		}
		return Page[int]{NextCursor: fmt.Sprintf("c%d", calls)}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
	if len(items) != 2 || stats.Reason != StopEmpty || stats.Items != 2 {
		t.Errorf("items=%v stats=%+v", items, stats)
	}
}

func TestFetchDelayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New[int]()
	p.Delay = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, _, err := p.Fetch(ctx, func(ctx context.Context, cursor string, limit int) (Page[int], error) {
			calls++
			return Page[int]{Items: []int{1}, NextCursor: "next"}, nil
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not stop on cancellation")
	}
	if calls != 1 {
		t.Errorf("expected a single request before cancel, got %d", calls)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig[string](config.PaginationConfig{PageSize: 25, MaxResults: 75, Delay: 0})
	if p.PageSize != 25 || p.MaxResults != 75 || p.Delay != 0 {
		t.Errorf("unexpected paginator %+v", p)
	}
}
