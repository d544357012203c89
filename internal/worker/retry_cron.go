package worker

// retry_cron.go
// Background goroutine that periodically re-attempts stock reconciliations
// still pending with a next_retry_at in the past. Uses the Circuit Breaker
// to stop hammering the database while it is failing.

import (
	"context"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 20
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	Repo   repository.StockReconciliationRepository
	Worker *ReconciliationWorker
	CB     *infra.CircuitBreaker
}

// StartRetryCron launches a background goroutine that ticks every 30s and
// re-runs due reconciliations. It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg, time.Now())
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig, now time.Time) {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	due, err := cfg.Repo.ListDue(ctx, now, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query due reconciliations")
		return
	}
	if len(due) == 0 {
		return
	}

	log.Info().Int("count", len(due)).Msg("retry_cron: processing due reconciliations")

	for i := range due {
		// The breaker may trip mid-batch
		if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}
		if err := cfg.Worker.Run(ctx, due[i].ID); err != nil {
			log.Warn().Err(err).Str("reconciliation_id", due[i].ID.String()).Msg("retry_cron: attempt failed")
		}
	}
}
