package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultStockCASAttempts = 3

// StockLedger applies bounded stock changes. Every write is a
// compare-and-swap on the product version and leaves a StockMovement in the
// same database transaction.
type StockLedger interface {
	// DecrementSold sets stock to max(0, stock-1). Zero stock is not an error.
	DecrementSold(ctx context.Context, ownerID, productID uuid.UUID, ref *uuid.UUID) (*model.Product, error)
	// IncrementTradeIn sets stock to stock+1.
	IncrementTradeIn(ctx context.Context, ownerID, productID uuid.UUID, ref *uuid.UUID) (*model.Product, error)
	// Adjust applies an arbitrary delta, clamping the result at zero.
	Adjust(ctx context.Context, ownerID, productID uuid.UUID, delta int, kind, reason string, ref *uuid.UUID) (*model.Product, error)
}

type stockLedger struct {
	products    repository.ProductRepository
	movements   repository.StockMovementRepository
	maxAttempts int
}

func NewStockLedger(products repository.ProductRepository, movements repository.StockMovementRepository) StockLedger {
	return &stockLedger{products: products, movements: movements, maxAttempts: defaultStockCASAttempts}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func (l *stockLedger) DecrementSold(ctx context.Context, ownerID, productID uuid.UUID, ref *uuid.UUID) (*model.Product, error) {
	return l.Adjust(ctx, ownerID, productID, -1, model.MovementSale, "Venta", ref)
}

func (l *stockLedger) IncrementTradeIn(ctx context.Context, ownerID, productID uuid.UUID, ref *uuid.UUID) (*model.Product, error) {
	return l.Adjust(ctx, ownerID, productID, 1, model.MovementTradeInIntake, "Ingreso por canje", ref)
}

func (l *stockLedger) Adjust(ctx context.Context, ownerID, productID uuid.UUID, delta int, kind, reason string, ref *uuid.UUID) (*model.Product, error) {
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		var updated *model.Product
		err := runTx(ctx, l.products.DB(), func(tx *gorm.DB) error {
			p, err := l.products.FindByIDTx(tx, ownerID, productID)
			if err != nil {
				return err
			}
			before := p.Stock
			after := max(0, before+delta)
			if err := l.products.CompareAndSetStockTx(tx, ownerID, productID, p.Version, after); err != nil {
				return err
			}
			mov := &model.StockMovement{
				OwnerID:     ownerID,
				ProductID:   productID,
				Kind:        kind,
				Delta:       after - before,
				StockBefore: before,
				StockAfter:  after,
				Reason:      reason,
				ReferenceID: ref,
			}
			if err := l.movements.CreateTx(tx, mov); err != nil {
				return err
			}
			p.Stock = after
			p.Version++
			updated = p
			return nil
		})
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("producto %s: %w", productID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("producto %s: %w", productID, ErrStockConflict)
}
