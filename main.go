package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/config"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/handlers"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/middleware"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/retry"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services/riskmodels"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("version", cfg.Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dbURL := cfg.Database.ConnectionURL()
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(dbURL)),
		zap.String("redis", cfg.Redis.Host),
		zap.Int("mc_max_samples", cfg.Models.MaxSamples),
		zap.Duration("model_run_timeout", cfg.Models.RunTimeout))

	// Postgres may still be starting when the engine comes up in compose.
	db, err := retry.DoWithResult(ctx, retry.StartupConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            dbURL,
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			logger.Warn("Database not ready", zap.String("error", logging.SanitizeError(err)))
		}
		return db, err
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := migrate(dbURL, cfg.MigrationsPath, logger); err != nil {
		return err
	}

	redisClient, err := retry.DoWithResult(ctx, retry.StartupConfig(), func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		logger.Info("Dataset cache enabled", zap.String("addr", cfg.Redis.Address()), zap.Duration("ttl", cfg.Redis.DatasetTTL))
	} else {
		logger.Info("Dataset cache disabled (redis host not set)")
	}

	// Repositories
	missionRepo := repositories.NewMissionRepository()
	indicatorRepo := repositories.NewIndicatorRepository()
	eventRepo := repositories.NewRiskEventRepository()
	fmeaRepo := repositories.NewFMEARepository()
	ftaRepo := repositories.NewFTARepository()
	fusionRuleRepo := repositories.NewFusionRuleRepository()
	datasetRepo := repositories.NewRiskDatasetRepository()
	modelConfigRepo := repositories.NewModelConfigRepository()
	snapshotRepo := repositories.NewResultSnapshotRepository()
	datasetCache := repositories.NewDatasetCache(redisClient, cfg.Redis.DatasetTTL, logger)

	// Services
	datasetService := services.NewDatasetService(missionRepo, indicatorRepo, fusionRuleRepo, datasetRepo, datasetCache, logger)
	missionService := services.NewMissionService(missionRepo, indicatorRepo, eventRepo, fmeaRepo, logger)

	registry := riskmodels.NewDefaultRegistry(riskmodels.Dependencies{
		Events:     eventRepo,
		FMEA:       fmeaRepo,
		FTA:        ftaRepo,
		Indicators: indicatorRepo,
		Datasets:   datasetService,
		MonteCarlo: riskmodels.MonteCarloConfig{
			MaxSamples: cfg.Models.MaxSamples,
			ChunkSize:  cfg.Models.ChunkSize,
			Workers:    cfg.Models.Workers,
		},
	}, logger)
	modelRunService := services.NewModelRunService(registry, modelConfigRepo, snapshotRepo, cfg.Models.RunTimeout, logger)

	// Handlers
	mux := http.NewServeMux()
	scope := handlers.ScopeMiddleware(database.WithScopeContext(db, logger))

	checks := map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) error { return db.Ping(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewMissionsHandler(missionService, logger).RegisterRoutes(mux, scope)
	handlers.NewDatasetsHandler(datasetService, logger).RegisterRoutes(mux, scope)
	handlers.NewModelsHandler(modelRunService, logger).RegisterRoutes(mux, scope)

	server := &http.Server{
		Addr: net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID(),
			middleware.Recover(logger),
			middleware.RequestLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("Starting ekaya-risk-engine",
			zap.String("addr", server.Addr),
			zap.Int("models", len(registry.IDs())),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// migrate applies schema migrations over a dedicated database/sql handle,
// which golang-migrate closes when done.
func migrate(dbURL, path string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	if err := database.RunMigrations(sqlDB, path, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
