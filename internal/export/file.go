package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IshaanNene/eventscope/internal/types"
)

// WriteCSV writes the header row followed by one row per entry.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row.
func WriteJSONL(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
	}
	return nil
}

// WriteJSON writes the whole report as indented JSON.
func WriteJSON(w io.Writer, report *types.EventReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// FileExporter writes each report to its own file under a directory.
type FileExporter struct {
	format string
	dir    string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewFileExporter creates a file exporter. "excel" is written as CSV.
func NewFileExporter(format, dir string, logger *slog.Logger) (*FileExporter, error) {
	format = strings.ToLower(format)
	switch format {
	case "excel":
		format = "csv"
	case "csv", "json", "jsonl":
	default:
		return nil, &types.ConfigError{Field: "export.type", Err: fmt.Errorf("unsupported file format %q", format)}
	}

	dir = outputDir(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: format, Err: fmt.Errorf("create output dir: %w", err)}
	}

	return &FileExporter{
		format: format,
		dir:    dir,
		logger: logger.With("component", format+"_export"),
	}, nil
}

func (e *FileExporter) Name() string { return e.format }

func (e *FileExporter) Export(ctx context.Context, report *types.EventReport) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	name := FileName(report.EventName, report.GeneratedAt, e.format)
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, &types.StorageError{Backend: e.format, Err: fmt.Errorf("create output file: %w", err)}
	}
	defer f.Close()

	rows := Flatten(report)
	switch e.format {
	case "csv":
		err = WriteCSV(f, rows)
	case "jsonl":
		err = WriteJSONL(f, rows)
	default:
		err = WriteJSON(f, report)
	}
	if err != nil {
		return nil, &types.StorageError{Backend: e.format, Err: err}
	}
	if err := f.Sync(); err != nil {
		return nil, &types.StorageError{Backend: e.format, Err: err}
	}

	e.count++
	e.logger.Info("report written", "path", path, "rows", len(rows))
	return &Receipt{
		Backend:  e.format,
		Location: path,
		FileName: name,
		Rows:     len(rows),
		Summary:  Summarize(report),
	}, nil
}

func (e *FileExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Debug("file export closing", "reports", e.count)
	return nil
}
