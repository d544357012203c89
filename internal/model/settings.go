package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settings is the single live configuration row of an account.
type Settings struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	USDRate             decimal.Decimal `gorm:"column:usd_rate;type:decimal(14,4);not null"`
	DefaultWarrantyDays int             `gorm:"not null;default:30"`
	UpdatedAt           time.Time
}

// TableName pins the singleton table name.
func (Settings) TableName() string { return "settings" }
