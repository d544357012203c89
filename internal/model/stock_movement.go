package model

import (
	"time"

	"github.com/google/uuid"
)

// Movement kinds.
const (
	MovementSale          = "sale"
	MovementTradeInIntake = "tradein_intake"
	MovementReversal      = "reversal"
	MovementManual        = "manual"
)

// StockMovement records every change to a product's stock count.
type StockMovement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind        string    `gorm:"type:varchar(20);not null"`
	Delta       int       `gorm:"not null"` // applied change, after clamping
	StockBefore int       `gorm:"not null"`
	StockAfter  int       `gorm:"not null"`
	Reason      string
	ReferenceID *uuid.UUID `gorm:"type:uuid;index"` // transaction id
	CreatedAt   time.Time
}

// TableName overrides GORM's default pluralization.
func (StockMovement) TableName() string { return "stock_movements" }
