package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cinemaclub/cinemaclub/internal/app"
	"github.com/cinemaclub/cinemaclub/internal/catalog"
	"github.com/cinemaclub/cinemaclub/internal/members"
	"github.com/cinemaclub/cinemaclub/internal/movies"
	"github.com/cinemaclub/cinemaclub/internal/observability"
	"github.com/cinemaclub/cinemaclub/internal/platform/db"
	"github.com/cinemaclub/cinemaclub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	importer := catalog.NewImporter(
		catalog.NewClient(nil, cfg.CatalogShowsURL, cfg.CatalogMembersURL, cfg.CatalogRPS),
		movies.NewService(movies.NewRepository(pool), logger),
		members.NewService(members.NewRepository(pool), logger),
		logger,
	)
	metrics := observability.NewMetrics()
	importJob := jobs.NewCatalogImportJob(importer, logger, metrics.Jobs())

	importTask, err := jobs.NewCatalogImportTask(jobs.CatalogImportPayload{})
	if err != nil {
		logger.Error("build catalog import task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogImport, Handler: importJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.CatalogImportCron, Task: importTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics listener", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting worker", slog.String("cron", jobs.CatalogImportCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
