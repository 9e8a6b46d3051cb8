package main

import (
	"os"

	"github.com/hibiken/asynq"

	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/internal/infra/jobs"
	"github.com/bioarchive/api/internal/infra/postgres"
	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("starting worker", "app", cfg.App.Name, "concurrency", cfg.Worker.Concurrency)

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	collections := postgres.NewCollectionRepository(db)
	m := metrics.New(cfg.App.Name)

	srv := jobs.NewServer(&cfg.Redis, &cfg.Worker, log)
	mux := asynq.NewServeMux()
	jobs.NewHandlers(collections, log, m).Register(mux)

	// asynq installs its own SIGINT/SIGTERM handling and drains
	// in-flight tasks before Run returns.
	if err := srv.Run(mux); err != nil {
		log.Error("worker exited with error", "error", err)
		return 1
	}
	log.Info("worker stopped")
	return 0
}
