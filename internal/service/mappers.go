package service

import (
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/dto"
	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func formatTime(t time.Time) string { return t.Format(time.RFC3339) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func productToResponse(p *model.Product, rate decimal.Decimal) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:                p.ID.String(),
		SKU:               p.SKU,
		Model:             p.Model,
		Storage:           p.Storage,
		Color:             p.Color,
		Condition:         string(p.Condition),
		Battery:           p.Battery,
		Stock:             p.Stock,
		PriceSellUSD:      p.PriceSellUSD,
		PriceTradeInUSD:   p.PriceTradeInUSD,
		PriceSellLocal:    ToLocal(p.PriceSellUSD, rate),
		PriceTradeInLocal: ToLocal(p.PriceTradeInUSD, rate),
		Notes:             p.Notes,
		Version:           p.Version,
	}
}

func movementToResponse(m *model.StockMovement) dto.StockMovementResponse {
	return dto.StockMovementResponse{
		ID:          m.ID.String(),
		Kind:        m.Kind,
		Delta:       m.Delta,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		Reason:      m.Reason,
		ReferenceID: uuidPtrString(m.ReferenceID),
		CreatedAt:   formatTime(m.CreatedAt),
	}
}

func customerToResponse(c *model.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:        c.ID.String(),
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Email:     c.Email,
		DNI:       c.DNI,
		City:      c.City,
		Notes:     c.Notes,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

func transactionToRecord(t *model.Transaction) dto.TransactionRecord {
	return dto.TransactionRecord{
		ID:                    t.ID.String(),
		Date:                  formatTime(t.Date),
		ProductSoldID:         t.ProductSoldID.String(),
		ProductSoldName:       t.ProductSoldName,
		ProductTradeInID:      uuidPtrString(t.ProductTradeInID),
		ProductTradeInName:    t.ProductTradeInName,
		SellUSD:               t.SellUSD,
		TradeInUSD:            t.TradeInUSD,
		AdjustmentUSD:         t.AdjustmentUSD,
		FinalUSD:              t.FinalUSD,
		USDRateSnapshot:       t.USDRateSnapshot,
		Notes:                 t.Notes,
		CustomerBalanceAction: string(t.BalanceAction),
		CustomerID:            t.CustomerID.String(),
		WarrantyEnabled:       t.WarrantyEnabled,
		WarrantyDays:          t.WarrantyDays,
		WarrantyStart:         formatTimePtr(t.WarrantyStart),
		WarrantyEnd:           formatTimePtr(t.WarrantyEnd),
		TradeInAddedToStock:   t.TradeInAddedToStock,
		CreditRedeemedUSD:     t.CreditRedeemedUSD,
		ReversesID:            uuidPtrString(t.ReversesID),
	}
}

func reconciliationToResponse(r *model.StockReconciliation) dto.ReconciliationResponse {
	return dto.ReconciliationResponse{
		ID:          r.ID.String(),
		ProductID:   r.ProductID.String(),
		Operation:   r.Operation,
		Status:      r.Status,
		Attempts:    r.Attempts,
		NextRetryAt: formatTimePtr(r.NextRetryAt),
		LastError:   r.LastError,
	}
}

// recordToTransaction parses an imported settlement row. The financial
// invariant final = sell - tradein + adjustment is checked, not trusted.
func recordToTransaction(r dto.TransactionRecord) (*model.Transaction, map[string]string) {
	fields := map[string]string{}
	t := &model.Transaction{
		ProductSoldName:     r.ProductSoldName,
		ProductTradeInName:  r.ProductTradeInName,
		SellUSD:             r.SellUSD,
		TradeInUSD:          r.TradeInUSD,
		AdjustmentUSD:       r.AdjustmentUSD,
		FinalUSD:            r.FinalUSD,
		USDRateSnapshot:     r.USDRateSnapshot,
		Notes:               r.Notes,
		BalanceAction:       model.BalanceAction(r.CustomerBalanceAction),
		WarrantyEnabled:     r.WarrantyEnabled,
		WarrantyDays:        r.WarrantyDays,
		TradeInAddedToStock: r.TradeInAddedToStock,
		CreditRedeemedUSD:   r.CreditRedeemedUSD,
	}

	if r.ID != "" {
		if id, err := uuid.Parse(r.ID); err == nil {
			t.ID = id
		} else {
			fields["id"] = "uuid inválido"
		}
	}
	if d, err := time.Parse(time.RFC3339, r.Date); err == nil {
		t.Date = d
	} else {
		fields["date"] = "fecha inválida, se espera RFC3339"
	}
	if id, err := uuid.Parse(r.ProductSoldID); err == nil {
		t.ProductSoldID = id
	} else {
		fields["product_sold_id"] = "uuid inválido"
	}
	if id, err := uuid.Parse(r.CustomerID); err == nil {
		t.CustomerID = id
	} else {
		fields["customer_id"] = "uuid inválido"
	}
	if r.ProductTradeInID != nil {
		if id, err := uuid.Parse(*r.ProductTradeInID); err == nil {
			t.ProductTradeInID = &id
		} else {
			fields["product_tradein_id"] = "uuid inválido"
		}
	}
	if r.ReversesID != nil {
		if id, err := uuid.Parse(*r.ReversesID); err == nil {
			t.ReversesID = &id
		} else {
			fields["reverses_id"] = "uuid inválido"
		}
	}
	if r.WarrantyStart != nil {
		if ts, err := time.Parse(time.RFC3339, *r.WarrantyStart); err == nil {
			t.WarrantyStart = &ts
		} else {
			fields["warranty_start"] = "fecha inválida"
		}
	}
	if r.WarrantyEnd != nil {
		if ts, err := time.Parse(time.RFC3339, *r.WarrantyEnd); err == nil {
			t.WarrantyEnd = &ts
		} else {
			fields["warranty_end"] = "fecha inválida"
		}
	}

	want := r.SellUSD.Sub(r.TradeInUSD).Add(r.AdjustmentUSD)
	if !want.Equal(r.FinalUSD) {
		fields["final_usd"] = "no coincide con sell_usd - tradein_usd + adjustment_usd"
	}
	if !r.USDRateSnapshot.IsPositive() {
		fields["usd_rate_snapshot"] = "debe ser mayor a 0"
	}
	if !r.TradeInUSD.IsZero() && r.ProductTradeInID == nil {
		fields["tradein_usd"] = "debe ser 0 sin product_tradein_id"
	}
	checkImportedWarranty(r, t, fields)
	return t, fields
}

// checkImportedWarranty holds imported rows to what WarrantyFor would have
// recorded: no dates when disabled, end = start + days calendar days when
// enabled.
func checkImportedWarranty(r dto.TransactionRecord, t *model.Transaction, fields map[string]string) {
	if !r.WarrantyEnabled {
		if r.WarrantyStart != nil {
			fields["warranty_start"] = "debe omitirse sin garantía"
		}
		if r.WarrantyEnd != nil {
			fields["warranty_end"] = "debe omitirse sin garantía"
		}
		return
	}
	if r.WarrantyDays == nil {
		fields["warranty_days"] = "requerido con garantía habilitada"
	} else if *r.WarrantyDays < 0 {
		fields["warranty_days"] = "no puede ser negativo"
	}
	if r.WarrantyStart == nil || r.WarrantyEnd == nil {
		if _, bad := fields["warranty_end"]; !bad {
			fields["warranty_end"] = "garantía habilitada sin fechas"
		}
		return
	}
	if t.WarrantyStart == nil || t.WarrantyEnd == nil || r.WarrantyDays == nil || *r.WarrantyDays < 0 {
		return
	}
	want := WarrantyFor(true, *r.WarrantyDays, *t.WarrantyStart).End
	// A UTC offset change between start and end shifts the instant by up to an hour.
	if d := t.WarrantyEnd.Sub(want); d < -time.Hour || d > time.Hour {
		fields["warranty_end"] = "no coincide con warranty_start + warranty_days"
	}
}
