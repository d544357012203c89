package worker

// reconciliation_worker.go
// Re-applies stock writes that failed after their settlement committed.
// Fed by the job queue right after the failure and by the retry cron for
// rows whose next_retry_at has passed.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"
	"github.com/FedeEstrubia/imanager-argentina/internal/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var reconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imanager_stock_reconciliations_total",
	Help: "Stock reconciliation attempts, by result",
}, []string{"result"})

const (
	retryBackoffBase = 30 * time.Second
	retryBackoffMax  = 30 * time.Minute
	// claimLease bounds how long a claimed row stays out of the due set when
	// its attempt never records an outcome.
	claimLease = 5 * time.Minute
)

// ReconciliationWorker drives StockReconciliation rows to done, or to failed
// and the DLQ once maxAttempts is spent.
type ReconciliationWorker struct {
	repo        repository.StockReconciliationRepository
	svc         service.ReconciliationService
	rdb         *redis.Client
	cb          *infra.CircuitBreaker
	maxAttempts int
	now         func() time.Time
}

func NewReconciliationWorker(
	repo repository.StockReconciliationRepository,
	svc service.ReconciliationService,
	rdb *redis.Client,
	cb *infra.CircuitBreaker,
	maxAttempts int,
) *ReconciliationWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &ReconciliationWorker{
		repo:        repo,
		svc:         svc,
		rdb:         rdb,
		cb:          cb,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Process handles a job from QueueStockReconciliation.
func (w *ReconciliationWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload StockReconciliationJob
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("reconciliation_worker: invalid payload")
		return
	}
	id, err := uuid.Parse(payload.ReconciliationID)
	if err != nil {
		log.Error().Str("reconciliation_id", payload.ReconciliationID).Msg("reconciliation_worker: invalid id")
		return
	}
	if err := w.Run(ctx, id); err != nil {
		log.Warn().Err(err).Str("reconciliation_id", id.String()).Msg("reconciliation_worker: attempt failed")
	}
}

// Run claims the row and applies it once. Rows that are no longer pending,
// not yet due, or leased by another consumer are skipped without error.
func (w *ReconciliationWorker) Run(ctx context.Context, id uuid.UUID) error {
	rec, err := w.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load reconciliation %s: %w", id, err)
	}
	if rec.Status != model.ReconciliationPending {
		return nil
	}
	claimed, err := w.repo.Claim(ctx, id, w.now(), claimLease)
	if err != nil {
		return fmt.Errorf("claim reconciliation %s: %w", id, err)
	}
	if !claimed {
		return nil
	}

	applyErr := w.apply(ctx, rec)
	now := w.now()
	rec.UpdatedAt = now

	switch {
	case applyErr == nil:
		rec.Attempts++
		rec.Status = model.ReconciliationDone
		rec.NextRetryAt = nil
		rec.LastError = nil
		reconciliationsTotal.WithLabelValues("done").Inc()
		log.Info().
			Str("reconciliation_id", rec.ID.String()).
			Str("transaction_id", rec.TransactionID.String()).
			Str("operation", rec.Operation).
			Int("attempts", rec.Attempts).
			Msg("reconciliation_worker: stock reconciled")

	case errors.Is(applyErr, infra.ErrCircuitOpen):
		// Not an attempt: the store was not even tried.
		next := now.Add(retryBackoffBase)
		rec.NextRetryAt = &next
		reconciliationsTotal.WithLabelValues("deferred").Inc()

	default:
		rec.Attempts++
		msg := applyErr.Error()
		rec.LastError = &msg
		if rec.Attempts >= w.maxAttempts || errors.Is(applyErr, service.ErrNotFound) {
			rec.Status = model.ReconciliationFailed
			rec.NextRetryAt = nil
			reconciliationsTotal.WithLabelValues("failed").Inc()
			log.Error().
				Str("reconciliation_id", rec.ID.String()).
				Str("transaction_id", rec.TransactionID.String()).
				Int("attempts", rec.Attempts).
				Msg("reconciliation_worker: giving up, moving to DLQ")
			payload, _ := json.Marshal(StockReconciliationJob{ReconciliationID: rec.ID.String()})
			SendToDLQ(ctx, w.rdb, QueueStockReconciliation, JobStockReconciliation, payload, msg, rec.Attempts)
		} else {
			next := now.Add(computeRetryBackoff(rec.Attempts))
			rec.NextRetryAt = &next
			reconciliationsTotal.WithLabelValues("retry").Inc()
		}
	}

	if err := w.repo.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("reconciliation_id", rec.ID.String()).Msg("reconciliation_worker: failed to save state")
		return err
	}
	return applyErr
}

func (w *ReconciliationWorker) apply(ctx context.Context, rec *model.StockReconciliation) error {
	if w.cb == nil {
		return w.svc.Apply(ctx, rec)
	}
	return w.cb.Execute(func() error { return w.svc.Apply(ctx, rec) })
}

// computeRetryBackoff doubles from retryBackoffBase per attempt, capped at
// retryBackoffMax.
func computeRetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := retryBackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= retryBackoffMax {
			return retryBackoffMax
		}
	}
	return d
}
