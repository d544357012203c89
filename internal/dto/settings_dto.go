package dto

import "github.com/shopspring/decimal"

type UpdateSettingsRequest struct {
	USDRate             decimal.Decimal `json:"usd_rate"              validate:"required,gt=0"`
	DefaultWarrantyDays int             `json:"default_warranty_days" validate:"min=0,max=3650"`
}

type SettingsResponse struct {
	USDRate             decimal.Decimal `json:"usd_rate"`
	DefaultWarrantyDays int             `json:"default_warranty_days"`
	UpdatedAt           string          `json:"updated_at"`
}
