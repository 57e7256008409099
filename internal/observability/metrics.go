// Package observability exposes Prometheus metrics for scrape runs.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IshaanNene/eventscope/internal/types"
)

const namespace = "eventscope"

// Metrics records task outcomes, pagination and export activity. It
// implements engine.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	pages        *prometheus.CounterVec
	posts        *prometheus.CounterVec
	exports      *prometheus.CounterVec

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Settled source tasks by platform, source and outcome.",
		}, []string{"platform", "source", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of source tasks.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"platform", "source"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Result pages fetched from sources.",
		}, []string{"platform"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_normalized_total",
			Help:      "Posts produced by the normalization pipeline.",
		}, []string{"platform"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Report exports by backend and result.",
		}, []string{"backend", "result"}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.tasks, m.taskDuration, m.pages, m.posts, m.exports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TaskSettled records one finished task. An empty kind means success.
func (m *Metrics) TaskSettled(platform string, source types.TaskSource, kind types.ErrorKind, d time.Duration) {
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	m.tasks.WithLabelValues(platform, string(source), outcome).Inc()
	m.taskDuration.WithLabelValues(platform, string(source)).Observe(d.Seconds())
}

func (m *Metrics) PagesFetched(platform string, pages int) {
	if pages > 0 {
		m.pages.WithLabelValues(platform).Add(float64(pages))
	}
}

func (m *Metrics) PostsNormalized(platform string, n int) {
	if n > 0 {
		m.posts.WithLabelValues(platform).Add(float64(n))
	}
}

// ExportDone records the result of one report export.
func (m *Metrics) ExportDone(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exports.WithLabelValues(backend, result).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns a mux serving metrics at path and a liveness probe at /health.
func (m *Metrics) Handler(path string) http.Handler {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux
}

// StartServer starts the metrics HTTP server in the background. The caller
// shuts it down through the returned server.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}
