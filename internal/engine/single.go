package engine

import (
	"context"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/types"
)

// ScrapeURL scrapes one post page. The platform is detected from the URL
// and unknown hosts go to the generic adapter.
func (o *Orchestrator) ScrapeURL(ctx context.Context, rawURL, eventName string) (*types.Post, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := checkURL(rawURL); err != nil {
		return nil, &types.ConfigError{Field: "url", Err: err}
	}
	platform, a, err := o.adapterFor(rawURL)
	if err != nil {
		return nil, err
	}
	return o.scrapeURL(ctx, platform, a, rawURL, eventName)
}

func (o *Orchestrator) scrapeURL(ctx context.Context, platform string, a adapter.Adapter, rawURL, eventName string) (*types.Post, error) {
	start := time.Now()
	tctx := ctx
	if o.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, o.cfg.TaskTimeout)
		defer cancel()
	}

	rec, err := invoke(tctx, func(ctx context.Context) (*types.Record, error) {
		return adapter.ScrapeSingle(ctx, a, rawURL)
	})
	if err != nil {
		kind := classify(ctx, tctx, err)
		o.recorder.TaskSettled(platform, types.SourceSingle, kind, time.Since(start))
		o.logger.Warn("url scrape failed", "url", rawURL, "platform", platform, "kind", kind, "error", err)
		return nil, &types.SourceError{Platform: platform, Kind: kind, Err: err}
	}

	posts := o.process(platform, []*types.Record{rec})
	if len(posts) == 0 {
		o.recorder.TaskSettled(platform, types.SourceSingle, types.KindMalformed, time.Since(start))
		return nil, types.NewSourceError(platform, &types.ParseError{URL: rawURL, Err: types.ErrMalformed})
	}
	o.recorder.TaskSettled(platform, types.SourceSingle, "", time.Since(start))
	o.recorder.PostsNormalized(platform, 1)

	post := posts[0]
	if eventName != "" {
		meta := maps.Clone(post.Metadata)
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta["event_name"] = eventName
		post.Metadata = meta
	}
	return &post, nil
}

// ScrapeURLs scrapes up to MaxURLs pages concurrently. Every URL is
// validated before any is fetched; per-URL failures are reported in the
// matching outcome, in input order.
func (o *Orchestrator) ScrapeURLs(ctx context.Context, urls []string, eventName string) ([]types.URLOutcome, error) {
	if len(urls) == 0 {
		return nil, types.NewConfigError("urls", "at least one URL is required")
	}
	if len(urls) > o.cfg.MaxURLs {
		return nil, types.NewConfigError("urls", "%d URLs requested, the limit is %d", len(urls), o.cfg.MaxURLs)
	}

	type target struct {
		url      string
		platform string
		adapter  adapter.Adapter
	}
	targets := make([]target, len(urls))
	for i, raw := range urls {
		raw = strings.TrimSpace(raw)
		if err := checkURL(raw); err != nil {
			return nil, &types.ConfigError{Field: "urls", Err: err}
		}
		platform, a, err := o.adapterFor(raw)
		if err != nil {
			return nil, err
		}
		targets[i] = target{url: raw, platform: platform, adapter: a}
	}

	out := make([]types.URLOutcome, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			res := types.URLOutcome{URL: t.url, Platform: t.platform}
			if err := ctx.Err(); err != nil {
				res.Kind, res.Error = types.KindCancelled, err.Error()
				out[i] = res
				return nil
			}
			post, err := o.scrapeURL(ctx, t.platform, t.adapter, t.url, eventName)
			if err != nil {
				res.Kind, res.Error = types.Classify(err), err.Error()
			} else {
				res.Post = post
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// ScrapeProfile scrapes one profile over the last WindowMonths and
// reduces its posts to profile metrics. An empty platform is detected
// from the URL.
func (o *Orchestrator) ScrapeProfile(ctx context.Context, platform, profileURL, eventName string) (*types.ProfileReport, error) {
	profileURL = strings.TrimSpace(profileURL)
	if err := checkURL(profileURL); err != nil {
		return nil, &types.ConfigError{Field: "url", Err: err}
	}
	platform = normalizePlatform(platform)
	if platform == "" {
		platform = adapter.DetectPlatform(profileURL)
	}
	a, err := o.lookup("platform", platform)
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	window := types.TimeWindow{Start: now.AddDate(0, -o.cfg.WindowMonths, 0), End: now}
	out := o.run(ctx, task{
		tag:      ProfileTag(platform),
		platform: platform,
		source:   types.SourceProfile,
		query:    profileURL,
		window:   window,
		adapter:  a,
	})
	if out.Failure != nil {
		return nil, &types.SourceError{Platform: platform, Kind: out.Failure.Kind, Err: failureError(out.Failure)}
	}

	posts := out.Result.Posts
	var comments []types.Comment
	for _, p := range posts {
		comments = append(comments, p.Comments...)
	}
	sentiment := o.scorer.Aggregate(comments)

	return &types.ProfileReport{
		EventName:   eventName,
		Platform:    platform,
		ProfileURL:  profileURL,
		Username:    out.Username,
		Posts:       posts,
		Metrics:     ProfileMetrics(posts, out.Audience),
		Sentiment:   sentiment,
		Overall:     sentiment.Overall(),
		GeneratedAt: now,
	}, nil
}

// adapterFor picks the adapter for a URL, falling back to generic.
func (o *Orchestrator) adapterFor(rawURL string) (string, adapter.Adapter, error) {
	platform := adapter.DetectPlatform(rawURL)
	if a, ok := o.registry.Get(platform); ok {
		return platform, a, nil
	}
	a, err := o.lookup("url", "generic")
	if err != nil {
		return "", nil, err
	}
	return "generic", a, nil
}
