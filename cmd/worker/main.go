package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/buysell-kh/backoffice/internal/app"
	"github.com/buysell-kh/backoffice/internal/backend"
	jobmetrics "github.com/buysell-kh/backoffice/internal/jobs"
	"github.com/buysell-kh/backoffice/internal/notify"
	"github.com/buysell-kh/backoffice/internal/platform/cache"
	"github.com/buysell-kh/backoffice/internal/platform/db"
	"github.com/buysell-kh/backoffice/internal/printing"
	"github.com/buysell-kh/backoffice/internal/shared"
	"github.com/buysell-kh/backoffice/internal/view"
	"github.com/buysell-kh/backoffice/jobs"
	"github.com/buysell-kh/backoffice/report"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	api, err := backend.New(cfg.BackendAPIURL, cfg.BackendTimeout, backend.WithLogger(logger))
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	printJob := printing.NewJob(
		api,
		templates,
		report.NewClient(cfg.GotenbergURL, 30*time.Second),
		printing.NewStore(redisClient, cfg.PrintTTL),
		notify.NewStore(redisClient, time.Hour, logger),
		metrics,
		logger,
	)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskTypePrintOrder, Handler: printJob.Handle},
	}
	var cron []jobs.CronRegistration

	if cfg.AuditEnabled() {
		var pool *pgxpool.Pool
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		cleanup := &jobs.CleanupJob{
			Store:   shared.NewIdempotencyStore(pool),
			MaxAge:  24 * time.Hour,
			Logger:  logger,
			Metrics: metrics,
		}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskTypeIdempotencyCleanup, Handler: cleanup.Handle})
		cron = append(cron, jobs.CronRegistration{Spec: "30 3 * * *", Task: jobs.NewIdempotencyCleanupTask()})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("gotenberg", cfg.GotenbergURL))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
