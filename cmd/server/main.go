package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/bioarchive/api/internal/config"
	bahttp "github.com/bioarchive/api/internal/infra/http"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/internal/infra/jobs"
	"github.com/bioarchive/api/internal/infra/postgres"
	"github.com/bioarchive/api/internal/infra/redis"
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
	log.Info("starting server", "app", cfg.App.Name, "env", cfg.App.Env)

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
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis", "error", err)
		}
	}()
	log.Info("redis connected")

	enqueuer := jobs.NewEnqueuer(&cfg.Redis, &cfg.Worker, log)
	defer func() {
		if err := enqueuer.Close(); err != nil {
			log.Error("failed to close task client", "error", err)
		}
	}()

	m := metrics.New(cfg.App.Name)

	repos := NewRepositories(db)
	services := NewServices(cfg, repos, redisClient, enqueuer, m, log)
	handlers := NewHandlers(&HandlerDeps{Config: cfg, Log: log, Services: services})

	auth := middleware.NewAuth(services.Tokens, repos.User, log)
	router := bahttp.NewRouter(handlers, auth, m, log)
	server := bahttp.NewServer(&cfg.Server, router, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		return 1
	}
	log.Info("server stopped")
	return 0
}
