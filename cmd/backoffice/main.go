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
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/buysell-kh/backoffice/internal/app"
	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/clientform"
	"github.com/buysell-kh/backoffice/internal/debounce"
	"github.com/buysell-kh/backoffice/internal/notify"
	"github.com/buysell-kh/backoffice/internal/observability"
	"github.com/buysell-kh/backoffice/internal/orderpage"
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
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	var dbpool *pgxpool.Pool
	if cfg.AuditEnabled() {
		dbpool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
		if err := db.Migrate(dbpool); err != nil {
			logger.Error("migrate audit store", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Info("PG_DSN not set, audit log and submission guard disabled")
	}
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	metrics := observability.NewMetrics()

	api, err := backend.New(cfg.BackendAPIURL, cfg.BackendTimeout,
		backend.WithRecorder(metrics),
		backend.WithLogger(logger),
	)
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "backoffice_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	orderService := orderpage.NewService(api, auditLogger, cfg.PageSize, logger)
	orderHandler := orderpage.NewHandler(orderpage.Deps{
		Logger:    logger,
		Service:   orderService,
		Templates: templates,
		CSRF:      csrfManager,
		Debounce: debounce.NewGroup(cfg.SearchDebounce, debounce.OnSuperseded(func(string) {
			metrics.IncSuperseded("orders.search")
		})),
		Locker: shared.NewLocker(redisClient, 30*time.Second),
		Prints: jobClient,
		PDFs:   printing.NewStore(redisClient, cfg.PrintTTL),
		Inbox:  notify.NewStore(redisClient, time.Hour, logger),
	})

	clientService := clientform.NewService(api, auditLogger, idempotencyStore, logger, orderpage.ResetSearchScreen)
	clientHandler := clientform.NewHandler(logger, clientService, templates, csrfManager, cfg.PageSize)

	reportHandler := report.NewHandler(report.NewClient(cfg.GotenbergURL, 10*time.Second), logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Templates:         templates,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		ClientFormHandler: clientHandler,
		OrderPageHandler:  orderHandler,
		ReportHandler:     reportHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendAPIURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
