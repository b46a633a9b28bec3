package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stitchline-erp/stitchline-erp/internal/app"
	"github.com/stitchline-erp/stitchline-erp/internal/audit"
	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/migration"
	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/cache"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
	"github.com/stitchline-erp/stitchline-erp/internal/units/resolver"
	"github.com/stitchline-erp/stitchline-erp/jobs"
	"github.com/stitchline-erp/stitchline-erp/jobs/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	catalogPool, err := db.New(ctx, cfg.CatalogPGDSN)
	if err != nil {
		logger.Error("connect catalog partition", slog.Any("error", err))
		os.Exit(1)
	}
	defer catalogPool.Close()

	businessPool, err := db.New(ctx, cfg.BusinessPGDSN)
	if err != nil {
		logger.Error("connect business partition", slog.Any("error", err))
		os.Exit(1)
	}
	defer businessPool.Close()

	auditPool, err := db.New(ctx, cfg.AuditPGDSN)
	if err != nil {
		logger.Error("connect audit partition", slog.Any("error", err))
		os.Exit(1)
	}
	defer auditPool.Close()

	auditStores := []audit.Store{audit.NewStore("primary", auditPool)}
	if cfg.AuditFallbackPGDSN != "" {
		fallbackPool, err := db.New(ctx, cfg.AuditFallbackPGDSN)
		if err != nil {
			logger.Error("connect audit fallback partition", slog.Any("error", err))
			os.Exit(1)
		}
		defer fallbackPool.Close()
		auditStores = append(auditStores, audit.NewStore("fallback", fallbackPool))
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditService := audit.NewService(logger, metrics, auditStores...)

	unitsRepo := units.NewRepository(catalogPool)
	unitResolver := resolver.New(unitsRepo, logger, metrics)

	migrationRepo := migration.NewRepository(businessPool)
	migrationService := migration.NewService(migrationRepo, unitResolver, auditService, migration.DefaultTargets(), logger)
	runStore := migration.NewRunStore(redisClient)

	remapJob := jobs.NewUnitRemapJob(migrationService, runStore, logger, jobmetrics.NewMetrics(nil))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: tasks.TaskUnitRemap, Handler: remapJob.Handle},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
