package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/db"
	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/internal/indexer"
	"github.com/amacivic/engagement/pkg/config"
	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting engagement recount")

	if cfg.Database.Driver != "postgres" {
		logger.Fatal("Recount needs the postgres storage driver", zap.String("storage_driver", cfg.Database.Driver))
	}

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database.DB)
	counters := db.NewCounterRepository(repo)
	job := indexer.NewRecount(
		counters,
		db.NewProfileRepository(repo),
		engagement.NewProjector(db.NewVoteRepository(repo), counters),
		cfg.Recount.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := job.Run(ctx, cfg.Recount.Interval); err != nil && ctx.Err() == nil {
		logger.Error("Recount failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Recount exited")
}
