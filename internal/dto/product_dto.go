package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	SKU             string          `json:"sku"               validate:"required,max=40"`
	Model           string          `json:"model"             validate:"required,max=80"`
	Storage         string          `json:"storage"           validate:"max=20"`
	Color           string          `json:"color"             validate:"max=40"`
	Condition       string          `json:"condition"         validate:"required,oneof='Nuevo' 'Como Nuevo' 'Muy Bueno' 'Bueno' 'Regular'"`
	Battery         int             `json:"battery"           validate:"min=0,max=100"`
	Stock           int             `json:"stock"             validate:"min=0"`
	PriceSellUSD    decimal.Decimal `json:"price_sell_usd"    validate:"min=0"`
	PriceTradeInUSD decimal.Decimal `json:"price_tradein_usd" validate:"min=0"`
	Notes           string          `json:"notes"`
}

// UpdateProductRequest never touches stock: stock moves only through the ledger.
type UpdateProductRequest struct {
	SKU             *string          `json:"sku"               validate:"omitempty,max=40"`
	Model           *string          `json:"model"             validate:"omitempty,max=80"`
	Storage         *string          `json:"storage"           validate:"omitempty,max=20"`
	Color           *string          `json:"color"             validate:"omitempty,max=40"`
	Condition       *string          `json:"condition"         validate:"omitempty,oneof='Nuevo' 'Como Nuevo' 'Muy Bueno' 'Bueno' 'Regular'"`
	Battery         *int             `json:"battery"           validate:"omitempty,min=0,max=100"`
	PriceSellUSD    *decimal.Decimal `json:"price_sell_usd"`
	PriceTradeInUSD *decimal.Decimal `json:"price_tradein_usd"`
	Notes           *string          `json:"notes"`
}

type AdjustStockRequest struct {
	Delta  int    `json:"delta"  validate:"required"`
	Reason string `json:"reason" validate:"required,min=3"`
}

type BulkProductsRequest struct {
	Products []ProductRecord `json:"products" validate:"required,min=1,dive"`
}

// ProductRecord is a full product row for the bulk upsert path.
type ProductRecord struct {
	ID string `json:"id" validate:"omitempty,uuid"`
	CreateProductRequest
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID                string          `json:"id"`
	SKU               string          `json:"sku"`
	Model             string          `json:"model"`
	Storage           string          `json:"storage"`
	Color             string          `json:"color"`
	Condition         string          `json:"condition"`
	Battery           int             `json:"battery"`
	Stock             int             `json:"stock"`
	PriceSellUSD      decimal.Decimal `json:"price_sell_usd"`
	PriceTradeInUSD   decimal.Decimal `json:"price_tradein_usd"`
	PriceSellLocal    decimal.Decimal `json:"price_sell_local"`
	PriceTradeInLocal decimal.Decimal `json:"price_tradein_local"`
	Notes             string          `json:"notes"`
	Version           int             `json:"version"`
}

type StockMovementResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Delta       int     `json:"delta"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	Reason      string  `json:"reason"`
	ReferenceID *string `json:"reference_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
