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
	"golang.org/x/sync/errgroup"

	"github.com/agrovista-erp/agrovista-erp/internal/app"
	"github.com/agrovista-erp/agrovista-erp/internal/approvals"
	"github.com/agrovista-erp/agrovista-erp/internal/auth"
	"github.com/agrovista-erp/agrovista-erp/internal/authz"
	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	"github.com/agrovista-erp/agrovista-erp/internal/farmops"
	"github.com/agrovista-erp/agrovista-erp/internal/observability"
	"github.com/agrovista-erp/agrovista-erp/internal/platform/cache"
	"github.com/agrovista-erp/agrovista-erp/internal/platform/db"
	"github.com/agrovista-erp/agrovista-erp/internal/roles"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
	"github.com/agrovista-erp/agrovista-erp/internal/users"
	"github.com/agrovista-erp/agrovista-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "agrovista_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	authzRepo := authz.NewRepository(dbpool)
	effectiveCache := authz.NewEffectiveCache(redisClient, 5*time.Minute)
	authzService := authz.NewService(authzRepo, cat, usersService, effectiveCache, auditLogger, metrics, logger)
	authzHandler := authz.NewHandler(logger, authzService)
	authzMiddleware := authz.Middleware{Service: authzService, Actors: usersService, Logger: logger}

	registry := approvals.NewRegistry()
	farmops.NewExecutors(dbpool, logger).RegisterAll(registry)
	if err := registry.Validate(cat); err != nil {
		logger.Error("validate executor registry", slog.Any("error", err))
		os.Exit(1)
	}

	approvalsRepo := approvals.NewRepository(dbpool)
	pendingCache := approvals.NewPendingCache(redisClient, 10*time.Minute)
	approvalsService := approvals.NewService(approvalsRepo, registry, cat, pendingCache, auditLogger, metrics, logger)
	approvalsHandler := approvals.NewHandler(logger, approvalsService, authzService)
	poller := approvals.NewPoller(approvalsService, cfg.ApprovalsPollInterval, logger)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, authzRepo, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, authzService)

	usersHandler := users.NewHandler(logger, usersService, authzService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		AuthzHandler:     authzHandler,
		ApprovalsHandler: approvalsHandler,
		RolesHandler:     rolesHandler,
		UsersHandler:     usersHandler,
		AuthzMiddleware:  authzMiddleware,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return poller.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
