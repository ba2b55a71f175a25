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

	"github.com/agrovista-erp/agrovista-erp/internal/app"
	"github.com/agrovista-erp/agrovista-erp/internal/approvals"
	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	"github.com/agrovista-erp/agrovista-erp/internal/farmops"
	"github.com/agrovista-erp/agrovista-erp/internal/observability"
	"github.com/agrovista-erp/agrovista-erp/internal/platform/cache"
	"github.com/agrovista-erp/agrovista-erp/internal/platform/db"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
	"github.com/agrovista-erp/agrovista-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	cat, err := catalog.Load()
	if err != nil {
		logger.Error("load capability catalog", slog.Any("error", err))
		os.Exit(1)
	}

	registry := approvals.NewRegistry()
	farmops.NewExecutors(pool, logger).RegisterAll(registry)
	if err := registry.Validate(cat); err != nil {
		logger.Error("validate executor registry", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()
	approvalsRepo := approvals.NewRepository(pool)
	pendingCache := approvals.NewPendingCache(redisClient, 10*time.Minute)
	approvalsService := approvals.NewService(approvalsRepo, registry, cat, pendingCache, auditLogger, metrics, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskApprovalsExpireSweep, Handler: jobs.NewApprovalsExpireSweepHandler(approvalsService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: jobs.NewApprovalsExpireSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
