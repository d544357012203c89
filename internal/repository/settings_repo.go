package repository

import (
	"context"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository stores the single settings row per account.
type SettingsRepository interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error)
	// Save inserts or replaces the owner's row (unique on owner_id).
	Save(ctx context.Context, s *model.Settings) error
}

type settingsRepo struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) SettingsRepository { return &settingsRepo{db: db} }

func (r *settingsRepo) Get(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error) {
	var s model.Settings
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&s).Error; err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *settingsRepo) Save(ctx context.Context, s *model.Settings) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"usd_rate", "default_warranty_days", "updated_at"}),
	}).Create(s).Error
	return mapErr(err)
}
