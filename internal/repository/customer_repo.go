package repository

import (
	"context"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Customer, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error)
	Insert(ctx context.Context, c *model.Customer) error
	Update(ctx context.Context, c *model.Customer) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	UpsertMany(ctx context.Context, ownerID uuid.UUID, customers []model.Customer) error
}

type customerRepo struct{ db *gorm.DB }

func NewCustomerRepository(db *gorm.DB) CustomerRepository { return &customerRepo{db: db} }

var customerColumns = []string{
	"first_name", "last_name", "phone", "email", "dni", "city", "notes", "updated_at",
}

func (r *customerRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("last_name ASC, first_name ASC").
		Find(&customers).Error
	return customers, mapErr(err)
}

func (r *customerRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&c).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *customerRepo) Insert(ctx context.Context, c *model.Customer) error {
	return mapErr(r.db.WithContext(ctx).Create(c).Error)
}

func (r *customerRepo) Update(ctx context.Context, c *model.Customer) error {
	res := r.db.WithContext(ctx).Model(&model.Customer{}).
		Where("id = ? AND owner_id = ?", c.ID, c.OwnerID).
		Select(customerColumns).
		Updates(c)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Customer{})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepo) UpsertMany(ctx context.Context, ownerID uuid.UUID, customers []model.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	for i := range customers {
		customers[i].OwnerID = ownerID
		if customers[i].ID == uuid.Nil {
			customers[i].ID = uuid.New()
		}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(customerColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "customers", Name: "owner_id"}, Value: ownerID},
		}},
	}).Create(&customers).Error
	return mapErr(err)
}
