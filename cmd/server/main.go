package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/config"
	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"
	"github.com/FedeEstrubia/imanager-argentina/internal/router"
	"github.com/FedeEstrubia/imanager-argentina/internal/service"
	"github.com/FedeEstrubia/imanager-argentina/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stock reconciliation saga: queue, workers and retry cron share one
	// breaker so a failing database gets trial calls instead of a flood.
	reconCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	dispatcher := worker.NewDispatcher(rdb)
	reconciliationRepo := repository.NewStockReconciliationRepository(db)
	ledger := service.NewStockLedger(
		repository.NewProductRepository(db),
		repository.NewStockMovementRepository(db),
	)
	reconWorker := worker.NewReconciliationWorker(
		reconciliationRepo,
		service.NewReconciliationService(ledger),
		rdb,
		reconCB,
		cfg.StockRetryMax,
	)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.JobHandler{
		worker.JobStockReconciliation: reconWorker,
	})
	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Repo:   reconciliationRepo,
		Worker: reconWorker,
		CB:     reconCB,
	})

	r := router.New(ctx, cfg, db, rdb, dispatcher, reconCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("iManager backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
