package repository

import (
	"context"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for products.
// Every method is scoped to the owning account.
type ProductRepository interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Product, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Product, error)
	Insert(ctx context.Context, p *model.Product) error
	// Update writes catalog fields only; stock and version go through
	// CompareAndSetStockTx.
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	UpsertMany(ctx context.Context, ownerID uuid.UUID, products []model.Product) error

	// Used inside transactions; callers must pass the tx instance
	FindByIDTx(tx *gorm.DB, ownerID, id uuid.UUID) (*model.Product, error)
	// CompareAndSetStockTx sets stock to newStock and bumps version only when
	// the stored version still equals expectedVersion.
	CompareAndSetStockTx(tx *gorm.DB, ownerID, id uuid.UUID, expectedVersion, newStock int) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

var productCatalogColumns = []string{
	"sku", "model", "storage", "color", "condition", "battery",
	"price_sell_usd", "price_tradein_usd", "notes", "updated_at",
}

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&products).Error
	return products, mapErr(err)
}

func (r *productRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Product, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), ownerID, id)
}

func (r *productRepo) FindByIDTx(tx *gorm.DB, ownerID, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *productRepo) Insert(ctx context.Context, p *model.Product) error {
	return mapErr(r.db.WithContext(ctx).Create(p).Error)
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND owner_id = ?", p.ID, p.OwnerID).
		Select(productCatalogColumns).
		Updates(p)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Product{})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertMany is the bulk reconciliation path. Rows owned by another account
// are never touched: the DO UPDATE is guarded by owner_id.
func (r *productRepo) UpsertMany(ctx context.Context, ownerID uuid.UUID, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		products[i].OwnerID = ownerID
		if products[i].ID == uuid.Nil {
			products[i].ID = uuid.New()
		}
	}
	set := clause.AssignmentColumns(append([]string{"stock"}, productCatalogColumns...))
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "version"},
		Value:  gorm.Expr("products.version + 1"),
	})
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: set,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "products", Name: "owner_id"}, Value: ownerID},
		}},
	}).Create(&products).Error
	return mapErr(err)
}

func (r *productRepo) CompareAndSetStockTx(tx *gorm.DB, ownerID, id uuid.UUID, expectedVersion, newStock int) error {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND owner_id = ? AND version = ?", id, ownerID, expectedVersion).
		Updates(map[string]interface{}{
			"stock":   newStock,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}
