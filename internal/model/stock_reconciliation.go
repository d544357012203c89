package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock operations that can be left pending after a settlement commit.
const (
	OpDecrementSold    = "decrement_sold"
	OpIncrementTradeIn = "increment_tradein"
	OpRestoreSold      = "restore_sold"
	OpRemoveTradeIn    = "remove_tradein"
)

// Reconciliation states.
const (
	ReconciliationPending = "pending"
	ReconciliationDone    = "done"
	ReconciliationFailed  = "failed"
)

// StockReconciliation tracks a stock write that failed after its transaction
// was committed. The retry cron and the worker pool drive it to done, or to
// failed once the retry budget is spent.
type StockReconciliation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null"`
	Operation     string    `gorm:"type:varchar(20);not null"`
	Status        string    `gorm:"type:varchar(10);not null;default:'pending'"`
	Attempts      int       `gorm:"not null;default:0"`
	NextRetryAt   *time.Time
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
