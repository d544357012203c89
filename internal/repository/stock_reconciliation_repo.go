package repository

import (
	"context"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockReconciliationRepository interface {
	Create(ctx context.Context, r *model.StockReconciliation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockReconciliation, error)
	ListByTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) ([]model.StockReconciliation, error)
	// ListDue returns pending rows whose next_retry_at is at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.StockReconciliation, error)
	// Claim leases a due pending row to a single consumer by pushing its
	// next_retry_at to now+lease. If the consumer never records an outcome the
	// row becomes due again when the lease runs out. It reports false when the
	// row is not due or another consumer holds it.
	Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error)
	Update(ctx context.Context, r *model.StockReconciliation) error
}

type stockReconciliationRepo struct{ db *gorm.DB }

func NewStockReconciliationRepository(db *gorm.DB) StockReconciliationRepository {
	return &stockReconciliationRepo{db: db}
}

func (r *stockReconciliationRepo) Create(ctx context.Context, rec *model.StockReconciliation) error {
	return mapErr(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *stockReconciliationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StockReconciliation, error) {
	var rec model.StockReconciliation
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

func (r *stockReconciliationRepo) ListByTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) ([]model.StockReconciliation, error) {
	var recs []model.StockReconciliation
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND transaction_id = ?", ownerID, transactionID).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, mapErr(err)
}

func (r *stockReconciliationRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]model.StockReconciliation, error) {
	var recs []model.StockReconciliation
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.ReconciliationPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, mapErr(err)
}

func (r *stockReconciliationRepo) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.StockReconciliation{}).
		Where("id = ? AND status = ? AND next_retry_at <= ?", id, model.ReconciliationPending, now).
		Updates(map[string]interface{}{"next_retry_at": now.Add(lease), "updated_at": now})
	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *stockReconciliationRepo) Update(ctx context.Context, rec *model.StockReconciliation) error {
	return mapErr(r.db.WithContext(ctx).Save(rec).Error)
}
