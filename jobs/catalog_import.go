package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cinemaclub/cinemaclub/internal/catalog"
	jobmetrics "github.com/cinemaclub/cinemaclub/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CatalogRunner performs one catalog import.
type CatalogRunner interface {
	Run(ctx context.Context) (catalog.Result, error)
}

// CatalogImportJob handles catalog:import tasks.
type CatalogImportJob struct {
	Importer CatalogRunner
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewCatalogImportJob wires dependencies for the import handler.
func NewCatalogImportJob(importer CatalogRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogImportJob {
	return &CatalogImportJob{Importer: importer, Logger: logger, Metrics: metrics}
}

// Handle processes catalog import tasks.
func (j *CatalogImportJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Importer == nil {
		return errors.New("catalog import: handler not configured")
	}
	var payload CatalogImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	metrics := j.metrics()
	tracker := metrics.Track(TaskCatalogImport)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("requested_by", payload.RequestedBy))
	logger.Info("starting catalog import")
	start := time.Now()

	res, err := j.Importer.Run(ctx)
	metrics.AddImported("movie", "created", res.MoviesCreated)
	metrics.AddImported("movie", "updated", res.MoviesUpdated)
	metrics.AddImported("member", "created", res.MembersCreated)
	metrics.AddImported("member", "updated", res.MembersUpdated)
	metrics.AddImported("any", "skipped", res.Skipped)
	if err != nil {
		logger.Error("catalog import failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed catalog import", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *CatalogImportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CatalogImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
