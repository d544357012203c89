package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// SettlementRequest is the body of POST /v1/settlements.
// Missing customer or sold product is reported by the service as a
// validation failure, so neither is tagged required here.
type SettlementRequest struct {
	CustomerID    *string               `json:"customer_id"        validate:"omitempty,uuid"`
	QuickCustomer *QuickCustomerRequest `json:"quick_customer"`
	ProductSoldID string                `json:"product_sold_id"    validate:"omitempty,uuid"`
	// ProductTradeInID is optional: a plain sale has no trade-in.
	ProductTradeInID *string `json:"product_tradein_id" validate:"omitempty,uuid"`
	// AddTradeInToStock defaults to true when a trade-in is present.
	AddTradeInToStock *bool           `json:"add_tradein_to_stock"`
	AdjustmentUSD     decimal.Decimal `json:"adjustment_usd"`
	Notes             string          `json:"notes"                   validate:"max=500"`
	// BalanceAction is only read when the differential is negative.
	BalanceAction     string          `json:"customer_balance_action" validate:"omitempty,oneof=zero credit none"`
	WarrantyEnabled   *bool           `json:"warranty_enabled"`
	WarrantyDays      *int            `json:"warranty_days"`
	CreditRedeemedUSD decimal.Decimal `json:"credit_redeemed_usd"     validate:"min=0"`
}

type ReverseSettlementRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// ImportSettlementsRequest is the bulk reconciliation path; existing ids are skipped.
type ImportSettlementsRequest struct {
	Transactions []TransactionRecord `json:"transactions" validate:"required,min=1,dive"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// TransactionRecord is the persisted settlement schema on the wire.
type TransactionRecord struct {
	ID                    string          `json:"id"                   validate:"omitempty,uuid"`
	Date                  string          `json:"date"                 validate:"required"`
	ProductSoldID         string          `json:"product_sold_id"      validate:"required,uuid"`
	ProductSoldName       string          `json:"product_sold_name"    validate:"required"`
	ProductTradeInID      *string         `json:"product_tradein_id"   validate:"omitempty,uuid"`
	ProductTradeInName    *string         `json:"product_tradein_name"`
	SellUSD               decimal.Decimal `json:"sell_usd"`
	TradeInUSD            decimal.Decimal `json:"tradein_usd"`
	AdjustmentUSD         decimal.Decimal `json:"adjustment_usd"`
	FinalUSD              decimal.Decimal `json:"final_usd"`
	USDRateSnapshot       decimal.Decimal `json:"usd_rate_snapshot"`
	Notes                 string          `json:"notes"`
	CustomerBalanceAction string          `json:"customer_balance_action" validate:"required,oneof=zero credit none"`
	CustomerID            string          `json:"customer_id"          validate:"required,uuid"`
	WarrantyEnabled       bool            `json:"warranty_enabled"`
	WarrantyDays          *int            `json:"warranty_days,omitempty"`
	WarrantyStart         *string         `json:"warranty_start,omitempty"`
	WarrantyEnd           *string         `json:"warranty_end,omitempty"`
	TradeInAddedToStock   bool            `json:"tradein_added_to_stock"`
	CreditRedeemedUSD     decimal.Decimal `json:"credit_redeemed_usd"`
	ReversesID            *string         `json:"reverses_id,omitempty"`
}

type ReconciliationResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	Operation   string  `json:"operation"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	NextRetryAt *string `json:"next_retry_at,omitempty"`
	LastError   *string `json:"last_error,omitempty"`
}

// SettlementResponse is built from state re-read after the commit.
type SettlementResponse struct {
	Transaction    TransactionRecord `json:"transaction"`
	FinalLocal     decimal.Decimal   `json:"final_local"`
	ProductSold    *ProductResponse  `json:"product_sold,omitempty"`
	ProductTradeIn *ProductResponse  `json:"product_tradein,omitempty"`
	// StockReconciliations is non-empty only after a partial commit.
	StockReconciliations []ReconciliationResponse `json:"stock_reconciliations,omitempty"`
}

// PartialCommitResponse is returned with HTTP 207 when the transaction was
// committed but at least one stock write failed.
type PartialCommitResponse struct {
	Detail      string             `json:"detail"`
	FailedSteps []string           `json:"failed_steps"`
	Settlement  SettlementResponse `json:"settlement"`
}
