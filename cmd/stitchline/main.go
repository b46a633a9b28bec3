package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchline-erp/stitchline-erp/internal/app"
	"github.com/stitchline-erp/stitchline-erp/internal/audit"
	"github.com/stitchline-erp/stitchline-erp/internal/materials"
	"github.com/stitchline-erp/stitchline-erp/internal/migration"
	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/cache"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
	"github.com/stitchline-erp/stitchline-erp/internal/units/resolver"
	"github.com/stitchline-erp/stitchline-erp/migrations"
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

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

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

	var fallbackPool *pgxpool.Pool
	if cfg.AuditFallbackPGDSN != "" {
		fallbackPool, err = db.New(ctx, cfg.AuditFallbackPGDSN)
		if err != nil {
			logger.Error("connect audit fallback partition", slog.Any("error", err))
			os.Exit(1)
		}
		defer fallbackPool.Close()
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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	unitsRepo := units.NewRepository(catalogPool)
	unitsService := units.NewService(unitsRepo, logger)
	validation := units.NewValidation(unitsRepo, logger)
	unitResolver := resolver.New(unitsRepo, logger, metrics)
	unitsHandler := units.NewHandler(logger, unitsService, unitResolver)

	auditStores := []audit.Store{audit.NewStore("primary", auditPool)}
	if fallbackPool != nil {
		auditStores = append(auditStores, audit.NewStore("fallback", fallbackPool))
	}
	auditService := audit.NewService(logger, metrics, auditStores...)
	auditHandler := audit.NewHandler(logger, auditService)

	detailCache := materials.NewDetailCache(cfg.UnitCacheTTL, metrics)
	materialsRepo := materials.NewRepository(businessPool)
	materialsService := materials.NewService(materialsRepo, unitsRepo, validation, auditService, detailCache, logger, metrics)
	materialsHandler := materials.NewHandler(logger, materialsService)

	migrationRepo := migration.NewRepository(businessPool)
	migrationService := migration.NewService(migrationRepo, unitResolver, auditService, migration.DefaultTargets(), logger)
	runStore := migration.NewRunStore(redisClient)
	migrationHandler := migration.NewHandler(logger, migrationService, runStore, asynqClient)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		UnitsHandler:     unitsHandler,
		MaterialsHandler: materialsHandler,
		AuditHandler:     auditHandler,
		MigrationHandler: migrationHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// runMigrations applies each migration set to its partition. The audit set
// also runs against the fallback partition when one is configured.
func runMigrations(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	plan := []struct {
		set string
		dsn string
	}{
		{"catalog", cfg.CatalogPGDSN},
		{"business", cfg.BusinessPGDSN},
		{"audit", cfg.AuditPGDSN},
	}
	if cfg.AuditFallbackPGDSN != "" {
		plan = append(plan, struct {
			set string
			dsn string
		}{"audit", cfg.AuditFallbackPGDSN})
	}

	for _, step := range plan {
		set, err := migrations.Lookup(step.set)
		if err != nil {
			return err
		}
		logger.Info("applying migrations", slog.String("set", step.set))
		if err := migrations.Up(ctx, set, step.dsn); err != nil {
			return err
		}
	}
	return nil
}
