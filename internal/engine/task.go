package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/types"
)

// task is one adapter call launched by ScrapeEvent.
type task struct {
	tag      string
	platform string
	source   types.TaskSource
	query    string
	window   types.TimeWindow
	adapter  adapter.Adapter
}

// Outcome is the settled result of one task: exactly one of Result and
// Failure is set.
type Outcome struct {
	Result  *types.SourceResult
	Failure *types.SourceFailure

	// Username and Audience describe the account behind a profile task
	// when the source exposes them.
	Username string
	Audience int64
}

func failureError(f *types.SourceFailure) error {
	return errors.New(f.Message)
}

// panicError carries a recovered adapter panic.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("adapter panic: %v", e.value)
}

// run executes t under the task timeout and always returns an outcome.
func (o *Orchestrator) run(ctx context.Context, t task) Outcome {
	o.stats.ActiveTasks.Add(1)
	defer o.stats.ActiveTasks.Add(-1)

	start := time.Now()
	logger := o.logger.With("tag", t.tag, "platform", t.platform)

	if err := ctx.Err(); err != nil {
		return o.fail(t, types.KindCancelled, err, start)
	}

	tctx := ctx
	if o.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, o.cfg.TaskTimeout)
		defer cancel()
	}

	res, err := invoke(tctx, func(ctx context.Context) (*adapter.Result, error) {
		switch t.source {
		case types.SourceProfile:
			return adapter.ScrapeProfile(ctx, t.adapter, t.query, t.window.Start, t.window.End)
		default:
			return adapter.SearchEvent(ctx, t.adapter, t.query, t.window.Start, t.window.End)
		}
	})
	if err != nil {
		var pe *panicError
		if errors.As(err, &pe) {
			logger.Error("adapter panicked", "panic", pe.value, "stack", string(pe.stack))
		}
		kind := classify(ctx, tctx, err)
		logger.Warn("task failed", "kind", kind, "error", err, "duration", time.Since(start))
		return o.fail(t, kind, err, start)
	}
	if res == nil {
		res = &adapter.Result{Query: t.query}
	}

	posts := o.process(t.platform, res.Records)
	o.recorder.PagesFetched(t.platform, res.Stats.Pages)
	o.recorder.PostsNormalized(t.platform, len(posts))
	o.recorder.TaskSettled(t.platform, t.source, "", time.Since(start))
	o.stats.TasksSucceeded.Add(1)
	o.stats.PostsCollected.Add(int64(len(posts)))

	logger.Debug("task settled", "posts", len(posts), "pages", res.Stats.Pages, "duration", time.Since(start))

	query := res.Query
	if query == "" {
		query = t.query
	}
	return Outcome{Result: &types.SourceResult{
		Tag:          t.tag,
		Platform:     t.platform,
		Source:       t.source,
		Query:        query,
		Window:       t.window,
		Posts:        posts,
		TotalResults: max(res.Total, len(posts)),
	}, Username: res.Username, Audience: res.Audience}
}

func (o *Orchestrator) fail(t task, kind types.ErrorKind, err error, start time.Time) Outcome {
	o.recorder.TaskSettled(t.platform, t.source, kind, time.Since(start))
	o.stats.TasksFailed.Add(1)
	return Outcome{Failure: &types.SourceFailure{
		Tag:      t.tag,
		Platform: t.platform,
		Source:   t.source,
		Kind:     kind,
		Message:  err.Error(),
	}}
}

// invoke calls fn in its own goroutine so a panic is recovered and an
// adapter that ignores ctx cannot hold the task past its deadline.
func invoke[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type reply struct {
		v   T
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: &panicError{value: r, stack: debug.Stack()}}
			}
		}()
		v, err := fn(ctx)
		ch <- reply{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// classify maps a task error to its kind. Context errors are attributed to
// the caller when the parent context ended, to the task timeout otherwise.
func classify(parent, task context.Context, err error) types.ErrorKind {
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		return types.KindInternal
	case parent.Err() != nil:
		return types.KindCancelled
	case errors.Is(task.Err(), context.DeadlineExceeded):
		return types.KindTimeout
	}
	return types.Classify(err)
}

// process runs raw records through the middleware chain, the normalizer
// and the scorer, keeping source order. Records that fail are dropped.
func (o *Orchestrator) process(platform string, recs []*types.Record) []types.Post {
	posts := make([]types.Post, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if rec.Platform == "" {
			rec.Platform = platform
		}
		clean, err := o.pipeline.Process(rec)
		if err != nil {
			o.stats.RecordsDropped.Add(1)
			o.logger.Warn("record rejected", "platform", platform, "url", rec.URL, "error", err)
			continue
		}
		if clean == nil {
			o.stats.RecordsDropped.Add(1)
			continue
		}
		post, err := o.normalizer.Normalize(clean)
		if err != nil {
			o.stats.RecordsDropped.Add(1)
			o.logger.Warn("record not normalized", "platform", platform, "url", rec.URL, "error", err)
			continue
		}
		posts = append(posts, o.scorer.Annotate(post))
	}
	return posts
}
