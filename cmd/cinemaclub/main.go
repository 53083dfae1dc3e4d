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

	"github.com/cinemaclub/cinemaclub/cmd/cinemaclub/cli"
	"github.com/cinemaclub/cinemaclub/internal/app"
	"github.com/cinemaclub/cinemaclub/internal/audit"
	audithttp "github.com/cinemaclub/cinemaclub/internal/audit/http"
	"github.com/cinemaclub/cinemaclub/internal/auth"
	"github.com/cinemaclub/cinemaclub/internal/members"
	"github.com/cinemaclub/cinemaclub/internal/movies"
	"github.com/cinemaclub/cinemaclub/internal/observability"
	"github.com/cinemaclub/cinemaclub/internal/platform/cache"
	"github.com/cinemaclub/cinemaclub/internal/platform/db"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
	"github.com/cinemaclub/cinemaclub/internal/subscriptions"
	"github.com/cinemaclub/cinemaclub/internal/users"
	"github.com/cinemaclub/cinemaclub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, os.Args[2:]))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditService := audit.NewService(audit.NewRepository(dbpool))
	usersService := users.NewService(users.NewRepository(dbpool), logger, users.WithAuditor(auditService))
	revocations := auth.NewRedisRevocations(redisClient)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, revocations)
	rbacMiddleware := rbac.Middleware{
		Tokens:    tokens,
		Store:     usersService,
		Evaluator: rbac.NewEvaluator(rbac.DefaultHierarchy()),
		Logger:    logger,
		Recorder:  metrics,
	}

	authService := auth.NewService(auth.NewRepository(dbpool), tokens, usersService, revocations, cfg.TokenTTL)
	moviesService := movies.NewService(movies.NewRepository(dbpool), logger)
	membersService := members.NewService(members.NewRepository(dbpool), logger)
	subscriptionsService := subscriptions.NewService(subscriptions.NewRepository(dbpool), logger)

	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthHandler:         auth.NewHandler(logger, authService, rbacMiddleware),
		UsersHandler:        users.NewHandler(logger, usersService, rbacMiddleware),
		PermissionsHandler:  rbac.NewPermissionsHandler(rbacMiddleware.Evaluator, rbacMiddleware),
		MoviesHandler:       movies.NewHandler(logger, moviesService, rbacMiddleware),
		MembersHandler:      members.NewHandler(logger, membersService, rbacMiddleware),
		SubscriptionHandler: subscriptions.NewHandler(logger, subscriptionsService, rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, jobClient, rbacMiddleware, logger),
		AuditHandler:        audithttp.NewHandler(logger, auditService, rbacMiddleware),
		Metrics:             metrics,
		RequestLogging:      !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobs serves the queue subcommands. It needs Redis only.
func runJobs(ctx context.Context, args []string) int {
	redisCfg, err := app.LoadRedisConfig()
	if err != nil {
		slog.Default().Error("load redis config", slog.Any("error", err))
		return 1
	}
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: redisCfg.RedisAddr, Password: redisCfg.RedisPassword, DB: redisCfg.RedisDB})
	defer func() { _ = jobsCLI.Close() }()
	return jobsCLI.Command(ctx, args, cli.JobsOptions{})
}
