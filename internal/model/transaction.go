package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceAction is the disposition of a negative differential.
type BalanceAction string

const (
	BalanceNone   BalanceAction = "none"
	BalanceZero   BalanceAction = "zero"   // owed amount forgiven
	BalanceCredit BalanceAction = "credit" // owed amount banked for future purchases
)

// Transaction is an immutable settlement record. Financial columns are
// written once on insert; corrections are new rows pointing at the original
// through ReversesID.
//
// Invariant: FinalUSD = SellUSD - TradeInUSD + AdjustmentUSD.
type Transaction struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Date               time.Time       `gorm:"not null;index"`
	ProductSoldID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductSoldName    string          `gorm:"not null"`
	ProductTradeInID   *uuid.UUID      `gorm:"column:product_tradein_id;type:uuid;index"`
	ProductTradeInName *string         `gorm:"column:product_tradein_name"`
	SellUSD            decimal.Decimal `gorm:"column:sell_usd;type:decimal(12,2);not null"`
	TradeInUSD         decimal.Decimal `gorm:"column:tradein_usd;type:decimal(12,2);not null"`
	AdjustmentUSD      decimal.Decimal `gorm:"column:adjustment_usd;type:decimal(12,2);not null"`
	FinalUSD           decimal.Decimal `gorm:"column:final_usd;type:decimal(12,2);not null"`
	USDRateSnapshot    decimal.Decimal `gorm:"column:usd_rate_snapshot;type:decimal(14,4);not null"`
	Notes              string
	BalanceAction      BalanceAction `gorm:"column:customer_balance_action;type:varchar(10);not null"`
	CustomerID         uuid.UUID     `gorm:"type:uuid;not null;index"`
	WarrantyEnabled    bool          `gorm:"not null;default:false"`
	WarrantyDays       *int
	WarrantyStart      *time.Time
	WarrantyEnd        *time.Time

	TradeInAddedToStock bool `gorm:"column:tradein_added_to_stock;not null;default:false"`
	// CreditRedeemedUSD is standing credit consumed by this settlement;
	// negative on a reversal, which gives the credit back.
	CreditRedeemedUSD decimal.Decimal `gorm:"column:credit_redeemed_usd;type:decimal(12,2);not null;default:0"`
	ReversesID        *uuid.UUID      `gorm:"type:uuid;uniqueIndex"`
	CreatedAt         time.Time
}

// WarrantyActive reports whether the warranty is still in force at now.
// Never cache the result: it depends on the wall clock at the time of the check.
func (t *Transaction) WarrantyActive(now time.Time) bool {
	return t.WarrantyEnabled && t.WarrantyEnd != nil && t.WarrantyEnd.After(now)
}
