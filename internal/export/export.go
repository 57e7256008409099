// Package export writes finished event reports outward: flat CSV rows,
// JSON documents, or a MongoDB collection. Nothing written here is read
// back by eventscope.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/scoring"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Exporter is the interface for all export backends.
type Exporter interface {
	// Export writes one report and describes where it went.
	Export(ctx context.Context, report *types.EventReport) (*Receipt, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Receipt describes a completed export.
type Receipt struct {
	Backend  string  `json:"backend"`
	Location string  `json:"location"`
	FileName string  `json:"filename,omitempty"`
	Rows     int     `json:"rows"`
	Summary  Summary `json:"summary"`
}

// Columns is the fixed header of the flat row export.
var Columns = []string{
	"eventName", "eventDate", "platform", "postType", "content", "url", "author",
	"likes", "comments", "shares", "sentiment", "postDate", "engagement",
}

// Row is one post flattened for tabular export.
type Row struct {
	EventName  string `json:"eventName"`
	EventDate  string `json:"eventDate"`
	Platform   string `json:"platform"`
	PostType   string `json:"postType"`
	Content    string `json:"content"`
	URL        string `json:"url"`
	Author     string `json:"author"`
	Likes      int64  `json:"likes"`
	Comments   int64  `json:"comments"`
	Shares     int64  `json:"shares"`
	Sentiment  string `json:"sentiment"`
	PostDate   string `json:"postDate"`
	Engagement int64  `json:"engagement"`
}

// Values renders the row in Columns order.
func (r Row) Values() []string {
	return []string{
		r.EventName, r.EventDate, r.Platform, r.PostType, r.Content, r.URL, r.Author,
		strconv.FormatInt(r.Likes, 10),
		strconv.FormatInt(r.Comments, 10),
		strconv.FormatInt(r.Shares, 10),
		r.Sentiment, r.PostDate,
		strconv.FormatInt(r.Engagement, 10),
	}
}

// Flatten produces one row per post, in report order.
func Flatten(report *types.EventReport) []Row {
	var rows []Row
	for _, res := range report.Results {
		for _, p := range res.Posts {
			content := p.Text
			if content == "" {
				content = p.Title
			}
			postType := string(p.Type)
			if postType == "" {
				postType = string(types.PostTypePost)
			}
			sentiment := types.SentimentNeutral
			if p.Sentiment != nil {
				sentiment = p.Sentiment.Overall()
			}
			rows = append(rows, Row{
				EventName:  report.EventName,
				EventDate:  report.EventDate.Format(time.DateOnly),
				Platform:   res.Platform,
				PostType:   postType,
				Content:    content,
				URL:        p.URL,
				Author:     p.Author,
				Likes:      p.Engagement.Likes,
				Comments:   p.Engagement.Comments,
				Shares:     p.Engagement.Shares,
				Sentiment:  string(sentiment),
				PostDate:   p.CreatedAt.UTC().Format(time.RFC3339),
				Engagement: scoring.WeightedEngagement(p.Engagement),
			})
		}
	}
	return rows
}

// Summary is the short description returned alongside an export.
type Summary struct {
	TotalPosts      int                              `json:"totalPosts"`
	Platforms       map[string]types.PlatformSummary `json:"platforms"`
	PeriodCovered   types.TimeWindow                 `json:"periodCovered"`
	TotalEngagement int64                            `json:"totalEngagement"`
}

// Summarize builds the export summary of a report.
func Summarize(report *types.EventReport) Summary {
	return Summary{
		TotalPosts:      report.PostCount(),
		Platforms:       report.Platforms,
		PeriodCovered:   report.Window,
		TotalEngagement: report.TotalEngagement,
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]`)

// FileName returns event_analysis_<slug>_<YYYY-MM-DD>.<ext>, where every
// character of the lower-cased name outside [a-z0-9] becomes "_".
func FileName(eventName string, generated time.Time, ext string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(eventName), "_")
	return fmt.Sprintf("event_analysis_%s_%s.%s", slug, generated.UTC().Format(time.DateOnly), ext)
}

// New creates the exporter selected by cfg.Type.
func New(cfg config.ExportConfig, logger *slog.Logger) (Exporter, error) {
	switch strings.ToLower(cfg.Type) {
	case "csv", "excel", "json", "jsonl":
		return NewFileExporter(cfg.Type, cfg.OutputPath, logger)
	case "mongodb", "mongo":
		return NewMongoExporter(cfg.Mongo, logger)
	default:
		return nil, &types.ConfigError{Field: "export.type", Err: fmt.Errorf("unsupported export type %q", cfg.Type)}
	}
}

func outputDir(path string) string {
	if path == "" {
		return "exports"
	}
	return filepath.Clean(path)
}
