// Package engine fans an event request out to the platform adapters,
// settles every task, and reduces the outcomes into one EventReport.
package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/pipeline"
	"github.com/IshaanNene/eventscope/internal/scoring"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Phase is the lifecycle position of one ScrapeEvent invocation.
type Phase int32

const (
	PhaseDispatched Phase = iota
	PhaseCollecting
	PhaseMerged
)

func (p Phase) String() string {
	switch p {
	case PhaseDispatched:
		return "dispatched"
	case PhaseCollecting:
		return "collecting"
	case PhaseMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// Stats counts work done by an Orchestrator over its lifetime.
type Stats struct {
	Runs           atomic.Int64
	TasksSucceeded atomic.Int64
	TasksFailed    atomic.Int64
	PostsCollected atomic.Int64
	RecordsDropped atomic.Int64
	ActiveTasks    atomic.Int32
	StartTime      time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"runs":            s.Runs.Load(),
		"tasks_succeeded": s.TasksSucceeded.Load(),
		"tasks_failed":    s.TasksFailed.Load(),
		"posts_collected": s.PostsCollected.Load(),
		"records_dropped": s.RecordsDropped.Load(),
		"active_tasks":    s.ActiveTasks.Load(),
		"uptime":          time.Since(s.StartTime).String(),
	}
}

// Recorder receives per-task observations. observability.Metrics
// implements it.
type Recorder interface {
	TaskSettled(platform string, source types.TaskSource, kind types.ErrorKind, d time.Duration)
	PagesFetched(platform string, pages int)
	PostsNormalized(platform string, n int)
}

type nopRecorder struct{}

func (nopRecorder) TaskSettled(string, types.TaskSource, types.ErrorKind, time.Duration) {}
func (nopRecorder) PagesFetched(string, int)                                            {}
func (nopRecorder) PostsNormalized(string, int)                                         {}

// Orchestrator runs event, profile and URL scrapes against a registry of
// adapters. It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	cfg        config.EngineConfig
	registry   *adapter.Registry
	pipeline   *pipeline.Pipeline
	normalizer *pipeline.Normalizer
	scorer     *scoring.Scorer
	recorder   Recorder
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
	stats *Stats
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sends task observations to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock replaces the wall clock used for report timestamps and
// normalization fallbacks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.normalizer.Now = now
	}
}

// WithIDs replaces the report ID generator.
func WithIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// New creates an Orchestrator from configuration. The pipeline and scorer
// are built from the pipeline and scoring sections.
func New(cfg *config.Config, registry *adapter.Registry, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	pipe, err := pipeline.FromConfig(cfg.Pipeline.Middlewares, logger)
	if err != nil {
		return nil, err
	}

	engineCfg := cfg.Engine
	if engineCfg.Concurrency <= 0 {
		engineCfg.Concurrency = 1
	}
	if engineCfg.WindowMonths <= 0 {
		engineCfg.WindowMonths = DefaultWindowMonths
	}
	if engineCfg.MaxURLs <= 0 {
		engineCfg.MaxURLs = DefaultMaxURLs
	}

	o := &Orchestrator{
		cfg:        engineCfg,
		registry:   registry,
		pipeline:   pipe,
		normalizer: pipeline.NewNormalizer(cfg.Pipeline.MaxComments),
		scorer:     scoring.New(cfg.Scoring.Positive, cfg.Scoring.Negative),
		recorder:   nopRecorder{},
		logger:     logger.With("component", "engine"),
		now:        time.Now,
		newID:      uuid.NewString,
		stats:      &Stats{StartTime: time.Now()},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Stats returns the lifetime counters.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Registry returns the adapter registry the orchestrator dispatches to.
func (o *Orchestrator) Registry() *adapter.Registry {
	return o.registry
}
