package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/export"
)

// Output formats accepted by scrape-event.
const (
	OutputJSON  = "json"
	OutputCSV   = "csv"
	OutputExcel = "excel"
	OutputJSONL = "jsonl"
)

type scrapeEventRequest struct {
	EventName   string            `json:"eventName"`
	EventDate   string            `json:"eventDate"`
	Platforms   []string          `json:"platforms"`
	SocialLinks map[string]string `json:"socialLinks"`
	Output      string            `json:"output"`
}

type scrapeRequest struct {
	URL       string `json:"url"`
	EventName string `json:"eventName"`
}

type scrapeMultipleRequest struct {
	URLs      []string `json:"urls"`
	EventName string   `json:"eventName"`
}

type scrapeProfileRequest struct {
	ProfileURL string `json:"profileUrl"`
	Platform   string `json:"platform"`
	EventName  string `json:"eventName"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleScrapeEvent(w http.ResponseWriter, r *http.Request) {
	var body scrapeEventRequest
	if !s.decode(w, r, &body) {
		return
	}

	req, output, msg := s.validateEvent(body)
	if msg != "" {
		s.badRequest(w, msg)
		return
	}

	s.logger.Info("event scrape requested",
		"event", req.EventName,
		"platforms", req.Platforms,
		"social_links", len(req.SocialLinks),
		"output", output,
	)

	report, err := s.scraper.ScrapeEvent(r.Context(), req)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	var (
		receipt   *export.Receipt
		exportErr error
	)
	if s.exporter != nil {
		receipt, exportErr = s.exporter.Export(r.Context(), report)
		if exportErr != nil {
			s.logger.Error("report export failed", "run", report.ID, "backend", s.exporter.Name(), "error", exportErr)
		}
	}

	switch output {
	case OutputCSV, OutputExcel:
		name := export.FileName(report.EventName, report.GeneratedAt, "csv")
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		if err := export.WriteCSV(w, export.Flatten(report)); err != nil {
			s.logger.Error("csv response failed", "error", err)
		}
	case OutputJSONL:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteJSONL(w, export.Flatten(report)); err != nil {
			s.logger.Error("jsonl response failed", "error", err)
		}
	default:
		resp := map[string]any{
			"success":   true,
			"data":      report,
			"summary":   export.Summarize(report),
			"timestamp": s.now().UTC(),
		}
		if receipt != nil {
			resp["export"] = receipt
		}
		if exportErr != nil {
			resp["export_error"] = exportErr.Error()
		}
		s.jsonResponse(w, http.StatusOK, resp)
	}
}

// validateEvent checks the HTTP-level fields. Platform names and links are
// checked again by the orchestrator, which knows the registry.
func (s *Server) validateEvent(body scrapeEventRequest) (engine.EventRequest, string, string) {
	var req engine.EventRequest

	req.EventName = strings.TrimSpace(body.EventName)
	if req.EventName == "" {
		return req, "", "Event name is required"
	}
	if body.EventDate == "" {
		return req, "", "Event date is required (YYYY-MM-DD format)"
	}
	date, err := time.Parse(time.DateOnly, body.EventDate)
	if err != nil {
		return req, "", "Invalid event date format. Use YYYY-MM-DD"
	}
	req.EventDate = date

	output := strings.ToLower(strings.TrimSpace(body.Output))
	switch output {
	case "":
		output = OutputJSON
	case OutputJSON, OutputCSV, OutputExcel, OutputJSONL:
	default:
		return req, "", fmt.Sprintf("Output format must be one of %s, %s, %s, %s", OutputJSON, OutputCSV, OutputExcel, OutputJSONL)
	}

	known := s.scraper.Registry()
	var unknown []string
	for _, p := range body.Platforms {
		if _, ok := known.Get(strings.ToLower(strings.TrimSpace(p))); !ok {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		return req, "", fmt.Sprintf("Unsupported platforms: %s. Supported: %s",
			strings.Join(unknown, ", "), strings.Join(known.Names(), ", "))
	}

	req.Platforms = body.Platforms
	req.SocialLinks = body.SocialLinks
	if len(req.Platforms) == 0 && len(req.SocialLinks) == 0 {
		req.Platforms = s.searchablePlatforms()
		s.logger.Info("no platforms specified, using all searchable platforms", "platforms", req.Platforms)
	}
	return req, output, ""
}

func (s *Server) searchablePlatforms() []string {
	var names []string
	for _, info := range s.scraper.Registry().List() {
		if info.Search {
			names = append(names, info.Name)
		}
	}
	return names
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.URL == "" {
		s.badRequest(w, "URL is required")
		return
	}
	if body.EventName == "" {
		s.badRequest(w, "Event name is required")
		return
	}

	s.logger.Info("url scrape requested", "url", body.URL)
	post, err := s.scraper.ScrapeURL(r.Context(), body.URL, body.EventName)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      post,
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleScrapeMultiple(w http.ResponseWriter, r *http.Request) {
	var body scrapeMultipleRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.URLs == nil {
		s.badRequest(w, "URLs array is required")
		return
	}

	s.logger.Info("multi-url scrape requested", "urls", len(body.URLs))
	outcomes, err := s.scraper.ScrapeURLs(r.Context(), body.URLs, body.EventName)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      outcomes,
		"count":     len(outcomes),
		"failed":    failed,
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleScrapeProfile(w http.ResponseWriter, r *http.Request) {
	var body scrapeProfileRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.ProfileURL == "" {
		s.badRequest(w, "Profile URL is required")
		return
	}
	if body.Platform == "" {
		s.badRequest(w, "Platform is required")
		return
	}

	s.logger.Info("profile scrape requested", "url", body.ProfileURL, "platform", body.Platform)
	report, err := s.scraper.ScrapeProfile(r.Context(), body.Platform, body.ProfileURL, body.EventName)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      report,
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

var _ Scraper = (*engine.Orchestrator)(nil)
