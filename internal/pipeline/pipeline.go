package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Middleware cleans or filters a raw record before normalization.
type Middleware interface {
	Name() string

	// Process returns the record to keep, or nil to drop it.
	Process(rec *types.Record) (*types.Record, error)
}

// Stage adapts a function to Middleware.
type Stage struct {
	name string
	fn   func(*types.Record) (*types.Record, error)
}

// NewStage names fn as a pipeline stage.
func NewStage(name string, fn func(*types.Record) (*types.Record, error)) Stage {
	return Stage{name: name, fn: fn}
}

func (s Stage) Name() string { return s.name }

func (s Stage) Process(rec *types.Record) (*types.Record, error) { return s.fn(rec) }

// Pipeline runs every scraped record, and each of its comments, through an
// ordered chain of stages.
type Pipeline struct {
	stages []Middleware
	logger *slog.Logger
}

func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger.With("component", "pipeline")}
}

// Default strips markup, collapses whitespace and rewrites post creation
// dates as RFC3339. Every record passes through it before normalization.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(StripHTML())
	p.Use(CollapseSpace())
	p.Use(NormalizeDates(nil))
	return p
}

// FromConfig appends the configured stages to the default chain. An unknown
// stage name is a configuration error.
func FromConfig(cfgs []config.MiddlewareConfig, logger *slog.Logger) (*Pipeline, error) {
	p := Default(logger)
	for i, mc := range cfgs {
		build, ok := builders[mc.Name]
		if !ok {
			return nil, types.NewConfigError(fmt.Sprintf("pipeline.middlewares[%d]", i),
				"unknown middleware %q (known: %s)", mc.Name, strings.Join(Known(), ", "))
		}
		p.Use(build(mc.Options, logger))
	}
	return p, nil
}

// Known lists the stage names FromConfig accepts.
func Known() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (p *Pipeline) Use(mw Middleware) {
	p.stages = append(p.stages, mw)
}

// Len is the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Process runs rec and then its comments. A dropped comment is removed
// from the post; a dropped post yields nil, nil.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	out, err := p.run(rec)
	if err != nil || out == nil {
		return nil, err
	}

	comments := out.Comments[:0]
	for _, c := range out.Comments {
		kept, err := p.run(c)
		if err != nil {
			return nil, err
		}
		if kept != nil {
			comments = append(comments, kept)
		}
	}
	out.Comments = comments
	return out, nil
}

// ProcessAll processes recs in order, leaving out dropped ones. The first
// error aborts.
func (p *Pipeline) ProcessAll(recs []*types.Record) ([]*types.Record, error) {
	out := make([]*types.Record, 0, len(recs))
	for _, rec := range recs {
		kept, err := p.Process(rec)
		if err != nil {
			return nil, err
		}
		if kept != nil {
			out = append(out, kept)
		}
	}
	return out, nil
}

func (p *Pipeline) run(rec *types.Record) (*types.Record, error) {
	cur := rec
	for _, st := range p.stages {
		next, err := st.Process(cur)
		if err != nil {
			return nil, &types.PipelineError{Stage: st.Name(), Record: cur, Err: err}
		}
		if next == nil {
			p.logger.Debug("record dropped", "stage", st.Name(), "platform", rec.Platform, "url", rec.URL)
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}
