package repository

import (
	"context"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository is append-only: settlements are never updated or
// deleted once inserted.
type TransactionRepository interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Transaction, error)
	ListByCustomer(ctx context.Context, ownerID, customerID uuid.UUID) ([]model.Transaction, error)
	ListWithWarranty(ctx context.Context, ownerID uuid.UUID) ([]model.Transaction, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Transaction, error)
	FindReversalOf(ctx context.Context, ownerID, id uuid.UUID) (*model.Transaction, error)
	CountByProduct(ctx context.Context, ownerID, productID uuid.UUID) (int64, error)
	Insert(ctx context.Context, t *model.Transaction) error
	// UpsertMany imports settlements; rows whose id already exists are left untouched.
	UpsertMany(ctx context.Context, ownerID uuid.UUID, txs []model.Transaction) error
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository { return &transactionRepo{db: db} }

func (r *transactionRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("date DESC").Find(&txs).Error
	return txs, mapErr(err)
}

func (r *transactionRepo) ListByCustomer(ctx context.Context, ownerID, customerID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND customer_id = ?", ownerID, customerID).
		Order("date DESC").
		Find(&txs).Error
	return txs, mapErr(err)
}

func (r *transactionRepo) ListWithWarranty(ctx context.Context, ownerID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND warranty_enabled = true", ownerID).
		Order("warranty_end ASC").
		Find(&txs).Error
	return txs, mapErr(err)
}

func (r *transactionRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&t).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindReversalOf(ctx context.Context, ownerID, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).Where("reverses_id = ? AND owner_id = ?", id, ownerID).First(&t).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *transactionRepo) CountByProduct(ctx context.Context, ownerID, productID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("owner_id = ? AND (product_sold_id = ? OR product_tradein_id = ?)", ownerID, productID, productID).
		Count(&n).Error
	return n, mapErr(err)
}

func (r *transactionRepo) Insert(ctx context.Context, t *model.Transaction) error {
	return mapErr(r.db.WithContext(ctx).Create(t).Error)
}

func (r *transactionRepo) UpsertMany(ctx context.Context, ownerID uuid.UUID, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	for i := range txs {
		txs[i].OwnerID = ownerID
		if txs[i].ID == uuid.Nil {
			txs[i].ID = uuid.New()
		}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&txs).Error
	return mapErr(err)
}
