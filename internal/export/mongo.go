package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

const (
	defaultMongoDatabase   = "eventscope"
	defaultMongoCollection = "event_reports"
	defaultMongoTimeout    = 10 * time.Second
)

// MongoExporter stores each report as one document keyed by the report ID.
type MongoExporter struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoExporter connects to MongoDB and verifies the connection.
func NewMongoExporter(cfg config.MongoConfig, logger *slog.Logger) (*MongoExporter, error) {
	if cfg.URI == "" {
		return nil, &types.ConfigError{Field: "export.mongo.uri", Err: errors.New("required")}
	}
	database := cfg.Database
	if database == "" {
		database = defaultMongoDatabase
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultMongoCollection
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoExporter{
		client:     client,
		collection: client.Database(database).Collection(collection),
		timeout:    timeout,
		logger:     logger.With("component", "mongo_export"),
	}, nil
}

func (e *MongoExporter) Name() string { return "mongodb" }

func (e *MongoExporter) Export(ctx context.Context, report *types.EventReport) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if _, err := e.collection.InsertOne(ctx, report); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}

	e.count++
	e.logger.Debug("report stored", "id", report.ID, "posts", report.PostCount(), "total", e.count)
	return &Receipt{
		Backend:  "mongodb",
		Location: e.collection.Database().Name() + "." + e.collection.Name() + "/" + report.ID,
		Rows:     report.PostCount(),
		Summary:  Summarize(report),
	}, nil
}

func (e *MongoExporter) Close() error {
	e.logger.Info("mongodb export closing", "reports", e.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.client.Disconnect(ctx)
}

// Multi writes each report to several backends.
type Multi struct {
	backends []Exporter
	logger   *slog.Logger
}

// NewMulti creates an exporter that fans out to backends in order.
func NewMulti(backends []Exporter, logger *slog.Logger) *Multi {
	return &Multi{
		backends: backends,
		logger:   logger.With("component", "multi_export"),
	}
}

func (m *Multi) Name() string { return "multi" }

// Export returns the first backend's receipt. A failing backend does not
// stop the others; the first error is returned.
func (m *Multi) Export(ctx context.Context, report *types.EventReport) (*Receipt, error) {
	var (
		first    *Receipt
		firstErr error
	)
	for _, b := range m.backends {
		rec, err := b.Export(ctx, report)
		if err != nil {
			m.logger.Error("backend export failed", "backend", b.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if first == nil {
			first = rec
		}
	}
	return first, firstErr
}

func (m *Multi) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
