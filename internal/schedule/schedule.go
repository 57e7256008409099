// Package schedule runs configured event scrapes on cron specs and exports
// every report.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/export"
	"github.com/IshaanNene/eventscope/internal/types"
)

// EventScraper runs one event scrape.
type EventScraper interface {
	ScrapeEvent(ctx context.Context, req engine.EventRequest) (*types.EventReport, error)
}

// ExportRecorder observes export results. observability.Metrics implements it.
type ExportRecorder interface {
	ExportDone(backend string, err error)
}

// Job is a validated scheduled event.
type Job struct {
	Spec     string
	Request  engine.EventRequest
	schedule cron.Schedule

	// rolling jobs use the run date as the event date.
	rolling bool
}

// Scheduler triggers jobs on their cron specs.
type Scheduler struct {
	cron     *cron.Cron
	scraper  EventScraper
	exporter export.Exporter
	recorder ExportRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	jobs    []*Job
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler in UTC. recorder may be nil.
func New(scraper EventScraper, exporter export.Exporter, recorder ExportRecorder, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		scraper:  scraper,
		exporter: exporter,
		recorder: recorder,
		logger:   logger.With("component", "scheduler"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ParseJob validates one configured job. An empty event date makes the job
// rolling: every run scrapes the window starting on the run date.
func ParseJob(idx int, ev config.ScheduledEvent) (*Job, error) {
	field := fmt.Sprintf("schedule.jobs[%d]", idx)

	sched, err := cron.ParseStandard(ev.Spec)
	if err != nil {
		return nil, types.NewConfigError(field+".spec", "invalid cron spec %q: %v", ev.Spec, err)
	}
	name := strings.TrimSpace(ev.EventName)
	if name == "" {
		return nil, types.NewConfigError(field+".event_name", "event name is required")
	}

	job := &Job{
		Spec:     ev.Spec,
		schedule: sched,
		Request: engine.EventRequest{
			EventName:   name,
			Platforms:   ev.Platforms,
			SocialLinks: ev.SocialLinks,
		},
	}
	if ev.EventDate == "" {
		job.rolling = true
	} else {
		date, err := time.Parse(time.DateOnly, ev.EventDate)
		if err != nil {
			return nil, types.NewConfigError(field+".event_date", "expected YYYY-MM-DD, got %q", ev.EventDate)
		}
		job.Request.EventDate = date
	}
	if len(ev.Platforms) == 0 && len(ev.SocialLinks) == 0 {
		return nil, types.NewConfigError(field+".platforms", "at least one platform or social link is required")
	}
	return job, nil
}

// AddAll validates and registers every configured job. Nothing is
// registered when any job is invalid.
func (s *Scheduler) AddAll(cfg config.ScheduleConfig) error {
	jobs := make([]*Job, 0, len(cfg.Jobs))
	for i, ev := range cfg.Jobs {
		job, err := ParseJob(i, ev)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		s.Add(job)
	}
	return nil
}

// Add registers a parsed job.
func (s *Scheduler) Add(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron.Schedule(job.schedule, cron.FuncJob(func() {
		if _, err := s.Run(s.ctx, job); err != nil {
			s.logger.Error("scheduled run failed", "event", job.Request.EventName, "error", err)
		}
	}))
	s.jobs = append(s.jobs, job)
	s.logger.Info("job scheduled",
		"event", job.Request.EventName,
		"spec", job.Spec,
		"next", job.schedule.Next(s.now().UTC()).Format(time.RFC3339),
	)
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// Next returns when job fires after t.
func (j *Job) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

// Run executes job once and exports the report.
func (s *Scheduler) Run(ctx context.Context, job *Job) (*export.Receipt, error) {
	req := job.Request
	if job.rolling {
		req.EventDate = s.now().UTC()
	}

	report, err := s.scraper.ScrapeEvent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scrape %q: %w", req.EventName, err)
	}

	receipt, err := s.exporter.Export(ctx, report)
	if s.recorder != nil {
		s.recorder.ExportDone(s.exporter.Name(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("export %q: %w", req.EventName, err)
	}

	s.logger.Info("scheduled run exported",
		"event", req.EventName,
		"run", report.ID,
		"posts", report.PostCount(),
		"failures", len(report.Failures),
		"location", receipt.Location,
	)
	return receipt, nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cancel()
		<-s.cron.Stop().Done()
		s.started = false
	}
}
