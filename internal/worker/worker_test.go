package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"
	"github.com/FedeEstrubia/imanager-argentina/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workerNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type memReconRepo struct {
	rows        map[uuid.UUID]*model.StockReconciliation
	denyClaims  bool
	claims      int
	updates     int
	failUpdates int
}

var _ repository.StockReconciliationRepository = (*memReconRepo)(nil)

func newMemReconRepo(rows ...*model.StockReconciliation) *memReconRepo {
	r := &memReconRepo{rows: map[uuid.UUID]*model.StockReconciliation{}}
	for _, row := range rows {
		r.rows[row.ID] = row
	}
	return r
}

func (r *memReconRepo) Create(_ context.Context, rec *model.StockReconciliation) error {
	r.rows[rec.ID] = rec
	return nil
}

func (r *memReconRepo) FindByID(_ context.Context, id uuid.UUID) (*model.StockReconciliation, error) {
	rec, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memReconRepo) ListByTransaction(_ context.Context, ownerID, txID uuid.UUID) ([]model.StockReconciliation, error) {
	var out []model.StockReconciliation
	for _, rec := range r.rows {
		if rec.OwnerID == ownerID && rec.TransactionID == txID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memReconRepo) ListDue(_ context.Context, now time.Time, limit int) ([]model.StockReconciliation, error) {
	var out []model.StockReconciliation
	for _, rec := range r.rows {
		if rec.Status == model.ReconciliationPending && rec.NextRetryAt != nil && !rec.NextRetryAt.After(now) {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memReconRepo) Claim(_ context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	r.claims++
	rec, ok := r.rows[id]
	if r.denyClaims || !ok || rec.Status != model.ReconciliationPending ||
		rec.NextRetryAt == nil || rec.NextRetryAt.After(now) {
		return false, nil
	}
	until := now.Add(lease)
	rec.NextRetryAt = &until
	return true, nil
}

func (r *memReconRepo) Update(_ context.Context, rec *model.StockReconciliation) error {
	if r.failUpdates > 0 {
		r.failUpdates--
		return errors.New("db unavailable")
	}
	r.updates++
	cp := *rec
	r.rows[rec.ID] = &cp
	return nil
}

type scriptedApplier struct {
	errs  []error
	calls int
}

var _ service.ReconciliationService = (*scriptedApplier)(nil)

func (s *scriptedApplier) Apply(_ context.Context, _ *model.StockReconciliation) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func pendingRecon() *model.StockReconciliation {
	due := workerNow.Add(-time.Minute)
	return &model.StockReconciliation{
		ID:            uuid.New(),
		OwnerID:       uuid.New(),
		TransactionID: uuid.New(),
		ProductID:     uuid.New(),
		Operation:     model.OpDecrementSold,
		Status:        model.ReconciliationPending,
		NextRetryAt:   &due,
	}
}

func newTestWorker(repo *memReconRepo, svc *scriptedApplier, cb *infra.CircuitBreaker, max int) *ReconciliationWorker {
	w := NewReconciliationWorker(repo, svc, nil, cb, max)
	w.now = func() time.Time { return workerNow }
	return w
}

func TestComputeRetryBackoff(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{6, 16 * time.Minute},
		{7, 30 * time.Minute},
		{50, 30 * time.Minute},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, computeRetryBackoff(tc.attempts), "attempts=%d", tc.attempts)
	}
}

func TestWorkerRun_Success(t *testing.T) {
	rec := pendingRecon()
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{}

	require.NoError(t, newTestWorker(repo, svc, nil, 3).Run(context.Background(), rec.ID))

	got := repo.rows[rec.ID]
	assert.Equal(t, model.ReconciliationDone, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.NextRetryAt)
	assert.Nil(t, got.LastError)
}

func TestWorkerRun_FailureSchedulesRetry(t *testing.T) {
	rec := pendingRecon()
	rec.Attempts = 1
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{errs: []error{errors.New("connection reset")}}

	err := newTestWorker(repo, svc, nil, 5).Run(context.Background(), rec.ID)
	require.Error(t, err)

	got := repo.rows[rec.ID]
	assert.Equal(t, model.ReconciliationPending, got.Status)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "connection reset", *got.LastError)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, workerNow.Add(time.Minute), *got.NextRetryAt)
}

func TestWorkerRun_GivesUpAtMaxAttempts(t *testing.T) {
	rec := pendingRecon()
	rec.Attempts = 2
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{errs: []error{errors.New("still down")}}

	require.Error(t, newTestWorker(repo, svc, nil, 3).Run(context.Background(), rec.ID))

	got := repo.rows[rec.ID]
	assert.Equal(t, model.ReconciliationFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Nil(t, got.NextRetryAt)
}

func TestWorkerRun_MissingProductFailsImmediately(t *testing.T) {
	rec := pendingRecon()
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{errs: []error{service.ErrNotFound}}

	require.Error(t, newTestWorker(repo, svc, nil, 5).Run(context.Background(), rec.ID))
	assert.Equal(t, model.ReconciliationFailed, repo.rows[rec.ID].Status)
	assert.Equal(t, 1, repo.rows[rec.ID].Attempts)
}

func TestWorkerRun_OpenCircuitDefersWithoutCountingAttempt(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(func() error { return errors.New("trip") })
	require.Equal(t, infra.CBOpen, cb.State())

	rec := pendingRecon()
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{}

	err := newTestWorker(repo, svc, cb, 5).Run(context.Background(), rec.ID)
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Zero(t, svc.calls)

	got := repo.rows[rec.ID]
	assert.Equal(t, model.ReconciliationPending, got.Status)
	assert.Zero(t, got.Attempts)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, workerNow.Add(retryBackoffBase), *got.NextRetryAt)
}

func TestWorkerRun_Skips(t *testing.T) {
	t.Run("not pending", func(t *testing.T) {
		rec := pendingRecon()
		rec.Status = model.ReconciliationDone
		repo := newMemReconRepo(rec)
		svc := &scriptedApplier{}

		require.NoError(t, newTestWorker(repo, svc, nil, 5).Run(context.Background(), rec.ID))
		assert.Zero(t, repo.claims)
		assert.Zero(t, svc.calls)
	})

	t.Run("claimed elsewhere", func(t *testing.T) {
		rec := pendingRecon()
		repo := newMemReconRepo(rec)
		repo.denyClaims = true
		svc := &scriptedApplier{}

		require.NoError(t, newTestWorker(repo, svc, nil, 5).Run(context.Background(), rec.ID))
		assert.Zero(t, svc.calls)
		assert.Zero(t, repo.updates)
	})

	t.Run("unknown row", func(t *testing.T) {
		repo := newMemReconRepo()
		err := newTestWorker(repo, &scriptedApplier{}, nil, 5).Run(context.Background(), uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestProcessRetries(t *testing.T) {
	due := pendingRecon()
	future := pendingRecon()
	later := workerNow.Add(time.Hour)
	future.NextRetryAt = &later
	repo := newMemReconRepo(due, future)
	svc := &scriptedApplier{}
	w := newTestWorker(repo, svc, nil, 5)

	processRetries(context.Background(), RetryCronConfig{Repo: repo, Worker: w}, workerNow)

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, model.ReconciliationDone, repo.rows[due.ID].Status)
	assert.Equal(t, model.ReconciliationPending, repo.rows[future.ID].Status)
}

func TestProcessRetries_SkipsWhileCircuitOpen(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(func() error { return errors.New("trip") })

	rec := pendingRecon()
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{}
	w := newTestWorker(repo, svc, cb, 5)

	processRetries(context.Background(), RetryCronConfig{Repo: repo, Worker: w, CB: cb}, workerNow)
	assert.Zero(t, repo.claims)
	assert.Zero(t, svc.calls)
}

type recordingHandler struct{ payloads []json.RawMessage }

func (h *recordingHandler) Process(_ context.Context, payload json.RawMessage) {
	h.payloads = append(h.payloads, payload)
}

func TestProcessJob(t *testing.T) {
	h := &recordingHandler{}
	handlers := map[string]JobHandler{JobStockReconciliation: h}
	id := uuid.New()

	payload, err := json.Marshal(StockReconciliationJob{ReconciliationID: id.String()})
	require.NoError(t, err)
	raw, err := json.Marshal(Job{Type: JobStockReconciliation, Payload: payload})
	require.NoError(t, err)

	processJob(context.Background(), nil, handlers, QueueStockReconciliation, string(raw))
	require.Len(t, h.payloads, 1)
	assert.JSONEq(t, `{"reconciliation_id":"`+id.String()+`"}`, string(h.payloads[0]))

	// Unknown types and garbage go nowhere near the handler.
	processJob(context.Background(), nil, handlers, QueueStockReconciliation, `{"type":"other","payload":{}}`)
	processJob(context.Background(), nil, handlers, QueueStockReconciliation, `not json`)
	assert.Len(t, h.payloads, 1)
}

func TestWorkerProcess_DecodesPayload(t *testing.T) {
	rec := pendingRecon()
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{}
	w := newTestWorker(repo, svc, nil, 5)

	w.Process(context.Background(), json.RawMessage(`{"reconciliation_id":"`+rec.ID.String()+`"}`))
	assert.Equal(t, model.ReconciliationDone, repo.rows[rec.ID].Status)

	w.Process(context.Background(), json.RawMessage(`{"reconciliation_id":"nope"}`))
	w.Process(context.Background(), json.RawMessage(`[]`))
	assert.Equal(t, 1, svc.calls)
}

func TestWorkerRun_LostOutcomeIsRetriedAfterLease(t *testing.T) {
	rec := pendingRecon()
	repo := newMemReconRepo(rec)
	repo.failUpdates = 1
	svc := &scriptedApplier{errs: []error{errors.New("connection reset")}}
	w := newTestWorker(repo, svc, nil, 5)

	require.Error(t, w.Run(context.Background(), rec.ID))

	held := repo.rows[rec.ID]
	assert.Equal(t, model.ReconciliationPending, held.Status)
	require.NotNil(t, held.NextRetryAt)
	assert.Equal(t, workerNow.Add(claimLease), *held.NextRetryAt)

	// Leased: neither the cron nor a second job picks it up yet.
	due, err := repo.ListDue(context.Background(), workerNow.Add(claimLease-time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
	require.NoError(t, w.Run(context.Background(), rec.ID))
	assert.Equal(t, 1, svc.calls)

	// Once the lease runs out the row is due again and the next attempt lands.
	due, err = repo.ListDue(context.Background(), workerNow.Add(claimLease), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, rec.ID, due[0].ID)

	w.now = func() time.Time { return workerNow.Add(claimLease) }
	require.NoError(t, w.Run(context.Background(), rec.ID))
	assert.Equal(t, model.ReconciliationDone, repo.rows[rec.ID].Status)
}

func TestWorkerRun_NotYetDueIsSkipped(t *testing.T) {
	rec := pendingRecon()
	later := workerNow.Add(time.Minute)
	rec.NextRetryAt = &later
	repo := newMemReconRepo(rec)
	svc := &scriptedApplier{}

	require.NoError(t, newTestWorker(repo, svc, nil, 5).Run(context.Background(), rec.ID))
	assert.Zero(t, svc.calls)
	assert.Zero(t, repo.updates)
}
