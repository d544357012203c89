package service

import (
	"context"
	"testing"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture(stock int) (StockLedger, *stubProductRepo, *stubMovementRepo, *model.Product) {
	p := newProduct(uuid.New(), "iPhone 13", "128GB", stock, "600", "450")
	products := newStubProductRepo(p)
	movements := &stubMovementRepo{}
	return NewStockLedger(products, movements), products, movements, p
}

func TestStockLedger_DecrementClampsAtZero(t *testing.T) {
	ledger, products, movements, p := newLedgerFixture(0)

	updated, err := ledger.DecrementSold(context.Background(), p.OwnerID, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)
	assert.Equal(t, 0, products.stock(p.ID))

	require.Len(t, movements.movements, 1)
	m := movements.movements[0]
	assert.Equal(t, 0, m.Delta)
	assert.Equal(t, 0, m.StockBefore)
	assert.Equal(t, 0, m.StockAfter)
}

func TestStockLedger_IncrementRecordsMovement(t *testing.T) {
	ledger, products, movements, p := newLedgerFixture(2)
	ref := uuid.New()

	updated, err := ledger.IncrementTradeIn(context.Background(), p.OwnerID, p.ID, &ref)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Stock)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, 3, products.stock(p.ID))

	require.Len(t, movements.movements, 1)
	m := movements.movements[0]
	assert.Equal(t, model.MovementTradeInIntake, m.Kind)
	assert.Equal(t, 1, m.Delta)
	assert.Equal(t, 2, m.StockBefore)
	assert.Equal(t, 3, m.StockAfter)
	require.NotNil(t, m.ReferenceID)
	assert.Equal(t, ref, *m.ReferenceID)
}

func TestStockLedger_AdjustClampsLargeNegativeDelta(t *testing.T) {
	ledger, products, movements, p := newLedgerFixture(3)

	_, err := ledger.Adjust(context.Background(), p.OwnerID, p.ID, -10, model.MovementManual, "conteo físico", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, products.stock(p.ID))
	assert.Equal(t, -3, movements.movements[0].Delta)
}

func TestStockLedger_RetriesStaleVersion(t *testing.T) {
	ledger, products, movements, p := newLedgerFixture(5)
	products.staleWrites = 2

	_, err := ledger.DecrementSold(context.Background(), p.OwnerID, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, products.casCalls)
	assert.Equal(t, 4, products.stock(p.ID))
	assert.Len(t, movements.movements, 1)
}

func TestStockLedger_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ledger, products, movements, p := newLedgerFixture(5)
	products.staleWrites = defaultStockCASAttempts

	_, err := ledger.DecrementSold(context.Background(), p.OwnerID, p.ID, nil)
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Equal(t, 5, products.stock(p.ID))
	assert.Empty(t, movements.movements)
}

func TestStockLedger_UnknownProduct(t *testing.T) {
	ledger, _, _, p := newLedgerFixture(1)

	_, err := ledger.DecrementSold(context.Background(), p.OwnerID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	// Another account cannot touch the product either.
	_, err = ledger.DecrementSold(context.Background(), uuid.New(), p.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconciliationService_Apply(t *testing.T) {
	ledger, products, movements, p := newLedgerFixture(2)
	svc := NewReconciliationService(ledger)
	rec := &model.StockReconciliation{
		ID:            uuid.New(),
		OwnerID:       p.OwnerID,
		TransactionID: uuid.New(),
		ProductID:     p.ID,
	}

	cases := []struct {
		op   string
		want int
	}{
		{model.OpDecrementSold, 1},
		{model.OpIncrementTradeIn, 2},
		{model.OpRestoreSold, 3},
		{model.OpRemoveTradeIn, 2},
	}
	for _, tc := range cases {
		rec.Operation = tc.op
		require.NoError(t, svc.Apply(context.Background(), rec), tc.op)
		assert.Equal(t, tc.want, products.stock(p.ID), tc.op)
	}
	assert.Len(t, movements.movements, 4)
	for _, m := range movements.movements {
		assert.Equal(t, rec.TransactionID, *m.ReferenceID)
	}

	rec.Operation = "bogus"
	assert.Error(t, svc.Apply(context.Background(), rec))
}
