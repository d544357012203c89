package service

import (
	"context"
	"fmt"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"
)

// ReconciliationService re-applies a stock write recorded by a partial
// commit. Scheduling, attempts and dead-lettering belong to the worker.
type ReconciliationService interface {
	Apply(ctx context.Context, rec *model.StockReconciliation) error
}

type reconciliationService struct {
	ledger StockLedger
}

func NewReconciliationService(ledger StockLedger) ReconciliationService {
	return &reconciliationService{ledger: ledger}
}

func (s *reconciliationService) Apply(ctx context.Context, rec *model.StockReconciliation) error {
	ref := &rec.TransactionID
	var err error
	switch rec.Operation {
	case model.OpDecrementSold:
		_, err = s.ledger.DecrementSold(ctx, rec.OwnerID, rec.ProductID, ref)
	case model.OpIncrementTradeIn:
		_, err = s.ledger.IncrementTradeIn(ctx, rec.OwnerID, rec.ProductID, ref)
	case model.OpRestoreSold:
		_, err = s.ledger.Adjust(ctx, rec.OwnerID, rec.ProductID, 1, model.MovementReversal, "Reversión de venta (reconciliación)", ref)
	case model.OpRemoveTradeIn:
		_, err = s.ledger.Adjust(ctx, rec.OwnerID, rec.ProductID, -1, model.MovementReversal, "Reversión de canje (reconciliación)", ref)
	default:
		return fmt.Errorf("operación de reconciliación desconocida %q", rec.Operation)
	}
	return err
}
