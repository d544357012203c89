package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Condition is the cosmetic/functional grade of a handset.
type Condition string

const (
	ConditionNew      Condition = "Nuevo"
	ConditionLikeNew  Condition = "Como Nuevo"
	ConditionVeryGood Condition = "Muy Bueno"
	ConditionGood     Condition = "Bueno"
	ConditionFair     Condition = "Regular"
)

// Valid reports whether c is one of the known grades.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionVeryGood, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// Product is a single physical unit or unit-class in inventory.
// Stock is never negative: writes clamp at zero and the table carries a
// CHECK constraint as a last line.
type Product struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID         uuid.UUID `gorm:"type:uuid;not null;index"`
	SKU             string    `gorm:"column:sku;not null;index"`
	Model           string    `gorm:"not null"`
	Storage         string    `gorm:"not null"`
	Color           string
	Condition       Condition       `gorm:"type:varchar(20);not null"`
	Battery         int             `gorm:"not null;default:100"`
	Stock           int             `gorm:"not null;default:0"`
	PriceSellUSD    decimal.Decimal `gorm:"column:price_sell_usd;type:decimal(12,2);not null"`
	PriceTradeInUSD decimal.Decimal `gorm:"column:price_tradein_usd;type:decimal(12,2);not null"`
	Notes           string
	// Version is bumped on every stock write; stock updates compare-and-swap on it.
	Version   int `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is the label frozen into transactions at commit time.
func (p *Product) DisplayName() string {
	if p.Storage == "" {
		return p.Model
	}
	return p.Model + " " + p.Storage
}
