package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OldStager01/heartrisk/api"
	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/metrics"
	"github.com/OldStager01/heartrisk/internal/model"
	"github.com/OldStager01/heartrisk/internal/orchestrator"
	"github.com/OldStager01/heartrisk/internal/resilience"
	"github.com/OldStager01/heartrisk/pkg/config"
	"github.com/OldStager01/heartrisk/pkg/database"
	"github.com/OldStager01/heartrisk/pkg/database/queries"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	rollback := flag.Bool("rollback", false, "roll back every database migration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCloser := logger.Setup(logger.Options{
		Level:      cfg.App.LogLevel,
		Mode:       cfg.App.Mode,
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
	})
	defer logCloser.Close()
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	// Artifacts are loaded before anything else: a service that cannot
	// score must not start.
	registry, err := model.LoadRegistry(cfg.Models.Dir)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	logger.WithField("dir", cfg.Models.Dir).Info("Model artifacts loaded")

	db, err := database.New(cfg.Database.ToDBConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger.WithField("driver", db.Driver).Info("Database connection established")

	migrator := database.NewMigrator(db)
	switch {
	case *rollback:
		logger.Info("Rolling back database migrations")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		logger.Info("Rollback completed successfully")
		return nil
	case *migrate:
		logger.Info("Running database migrations")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Migrations completed successfully")
		return nil
	case db.Driver == database.DriverSQLite:
		// local databases are brought up to date on every start
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	m := metrics.New()
	validator := features.NewValidator(
		features.ClusterSchema(registry.Cluster.ImputationDefaults()),
		features.NeuralSchema(),
	)

	orch, err := orchestrator.New(orchestrator.Config{
		UserCacheSize:   cfg.Cache.UserCacheSize,
		EventBufferSize: cfg.Events.BufferSize,
		Breaker: resilience.CircuitBreakerConfig{
			Name:        "prediction_store",
			MaxFailures: cfg.Resilience.MaxFailures,
			Timeout:     cfg.Resilience.Timeout,
			HalfOpenMax: cfg.Resilience.HalfOpenMax,
		},
	}, orchestrator.Deps{
		Users:     queries.NewUserRepository(db.DB),
		Store:     queries.NewPredictionRepository(db.DB),
		Adapters:  registry,
		Validator: validator,
		Metrics:   m,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	orch.Start()
	defer orch.Stop()

	server := api.NewServer(cfg.API, cfg.WebSocket, db, orch, m)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
