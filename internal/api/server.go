// Package api serves the scraping operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IshaanNene/eventscope/internal/adapter"
	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/export"
	"github.com/IshaanNene/eventscope/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Scraper is the set of operations the API exposes. *engine.Orchestrator
// implements it.
type Scraper interface {
	ScrapeEvent(ctx context.Context, req engine.EventRequest) (*types.EventReport, error)
	ScrapeURL(ctx context.Context, rawURL, eventName string) (*types.Post, error)
	ScrapeURLs(ctx context.Context, urls []string, eventName string) ([]types.URLOutcome, error)
	ScrapeProfile(ctx context.Context, platform, profileURL, eventName string) (*types.ProfileReport, error)
	Registry() *adapter.Registry
	Stats() *engine.Stats
}

// Server provides the REST API.
type Server struct {
	mux      *http.ServeMux
	cfg      config.APIConfig
	scraper  Scraper
	exporter export.Exporter
	logger   *slog.Logger
	started  time.Time
	now      func() time.Time

	srv *http.Server
}

// NewServer creates an API server around scraper.
func NewServer(cfg config.APIConfig, scraper Scraper, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		scraper: scraper,
		logger:  logger.With("component", "api_server"),
		started: time.Now(),
		now:     time.Now,
	}

	s.registerRoutes()
	return s
}

// SetExporter makes every event report also go to e. The receipt is
// included in JSON responses.
func (s *Server) SetExporter(e export.Exporter) {
	s.exporter = e
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens in the background until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("API server stopping")
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("GET /api/platforms", s.handlePlatforms)
	s.mux.HandleFunc("GET /api/supported-platforms", s.handlePlatforms)

	s.mux.HandleFunc("POST /api/scrape-event", s.handleScrapeEvent)
	s.mux.HandleFunc("POST /api/scrape", s.handleScrape)
	s.mux.HandleFunc("POST /api/scrape-multiple", s.handleScrapeMultiple)
	s.mux.HandleFunc("POST /api/scrape-profile", s.handleScrapeProfile)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   config.Version,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.scraper.Stats().Snapshot())
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"platforms": s.scraper.Registry().List(),
		"timestamp": s.now().UTC(),
	})
}

// errorResponse maps err onto a status code and writes the error envelope.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"success": false, "error": err.Error()}

	var ce *types.ConfigError
	if errors.As(err, &ce) {
		status = http.StatusBadRequest
		if ce.Field != "" {
			body["field"] = ce.Field
		}
	} else {
		kind := types.Classify(err)
		body["kind"] = kind
		status = statusForKind(kind)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.jsonResponse(w, status, body)
}

func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindConfig, types.KindUnsupported:
		return http.StatusBadRequest
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindTimeout:
		return http.StatusGatewayTimeout
	case types.KindCancelled:
		return http.StatusServiceUnavailable
	case types.KindBlocked, types.KindTransport, types.KindMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.jsonResponse(w, http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}
