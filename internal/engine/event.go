package engine

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/types"
)

const (
	// DefaultWindowMonths is how far past the event date a search reaches.
	DefaultWindowMonths = 3
	// DefaultMaxURLs caps a multi-URL scrape.
	DefaultMaxURLs = 50
)

// EventRequest asks for every signal about one event.
type EventRequest struct {
	EventName string
	EventDate time.Time

	// Platforms are searched for EventName inside the window.
	Platforms []string

	// SocialLinks maps a platform to the event's own profile on it.
	SocialLinks map[string]string
}

// Window returns [date at UTC midnight, +months).
func Window(date time.Time, months int) types.TimeWindow {
	if months <= 0 {
		months = DefaultWindowMonths
	}
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return types.TimeWindow{Start: start, End: start.AddDate(0, months, 0)}
}

// ProfileTag is the result tag of a profile task for platform.
func ProfileTag(platform string) string {
	return platform + ":profile"
}

// ScrapeEvent searches every requested platform and scrapes every social
// link concurrently, then merges the outcomes. Only invalid input is
// returned as an error; source failures are listed in the report.
func (o *Orchestrator) ScrapeEvent(ctx context.Context, req EventRequest) (*types.EventReport, error) {
	window := Window(req.EventDate, o.cfg.WindowMonths)
	tasks, err := o.plan(req, window)
	if err != nil {
		return nil, err
	}

	id := o.newID()
	logger := o.logger.With("run", id, "event", req.EventName)
	o.stats.Runs.Add(1)

	phase := PhaseDispatched
	logger.Info("event scrape dispatched",
		"phase", phase,
		"tasks", len(tasks),
		"window_start", window.Start.Format(time.DateOnly),
		"window_end", window.End.Format(time.DateOnly),
	)

	outcomes := make([]Outcome, len(tasks))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			outcomes[i] = o.run(ctx, t)
			return nil
		})
	}

	phase = PhaseCollecting
	logger.Debug("collecting", "phase", phase)
	_ = g.Wait()

	report := BuildReport(id, req.EventName, req.EventDate, window, outcomes, o.now())
	phase = PhaseMerged
	logger.Info("event scrape merged",
		"phase", phase,
		"results", len(report.Results),
		"failures", len(report.Failures),
		"posts", report.PostCount(),
		"total_engagement", report.TotalEngagement,
	)
	return report, nil
}

// plan validates the request and builds one task per social link and one
// per platform. Nothing is dispatched when any entry is invalid.
func (o *Orchestrator) plan(req EventRequest, window types.TimeWindow) ([]task, error) {
	name := strings.TrimSpace(req.EventName)
	if name == "" {
		return nil, types.NewConfigError("event_name", "event name is required")
	}
	if req.EventDate.IsZero() {
		return nil, types.NewConfigError("event_date", "event date is required")
	}
	if len(req.Platforms) == 0 && len(req.SocialLinks) == 0 {
		return nil, types.NewConfigError("platforms", "at least one platform or social link is required")
	}

	var tasks []task

	links := make([]string, 0, len(req.SocialLinks))
	for platform := range req.SocialLinks {
		links = append(links, platform)
	}
	sort.Strings(links)
	for _, raw := range links {
		platform := normalizePlatform(raw)
		a, err := o.lookup("social_links", platform)
		if err != nil {
			return nil, err
		}
		link := strings.TrimSpace(req.SocialLinks[raw])
		if err := checkURL(link); err != nil {
			return nil, &types.ConfigError{Field: "social_links." + platform, Err: err}
		}
		tasks = append(tasks, task{
			tag:      ProfileTag(platform),
			platform: platform,
			source:   types.SourceProfile,
			query:    link,
			window:   window,
			adapter:  a,
		})
	}

	seen := make(map[string]bool, len(req.Platforms))
	for _, raw := range req.Platforms {
		platform := normalizePlatform(raw)
		if seen[platform] {
			continue
		}
		seen[platform] = true

		a, err := o.lookup("platforms", platform)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task{
			tag:      platform,
			platform: platform,
			source:   types.SourceSearch,
			query:    name,
			window:   window,
			adapter:  a,
		})
	}
	return tasks, nil
}

func (o *Orchestrator) lookup(field, platform string) (adapter.Adapter, error) {
	a, ok := o.registry.Get(platform)
	if !ok {
		return nil, &types.ConfigError{
			Field: field,
			Err:   fmt.Errorf("%w %q (known: %s)", types.ErrUnknownSource, platform, strings.Join(o.registry.Names(), ", ")),
		}
	}
	return a, nil
}

func normalizePlatform(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w %q", types.ErrInvalidURL, raw)
	}
	return nil
}
