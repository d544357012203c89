package service

import (
	"testing"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifferential(t *testing.T) {
	tradeIn := func(v string) *decimal.Decimal { d := usd(v); return &d }

	cases := []struct {
		name       string
		sell       string
		tradeIn    *decimal.Decimal
		adjustment string
		want       string
	}{
		{"trade-in with discount", "1100", tradeIn("850"), "-20", "230"},
		{"plain sale", "750", nil, "0", "750"},
		{"trade-in worth more", "500", tradeIn("600"), "0", "-100"},
		{"surcharge", "700", tradeIn("700"), "15.50", "15.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Differential(usd(tc.sell), tc.tradeIn, usd(tc.adjustment))
			assertUSD(t, tc.want, got)
		})
	}
}

func TestToLocal_RoundsToCents(t *testing.T) {
	assertUSD(t, "287500", ToLocal(usd("230"), usd("1250")))
	assertUSD(t, "1234.57", ToLocal(usd("1"), usd("1234.5678")))
}

func TestWarrantyFor(t *testing.T) {
	ref := time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC)

	term := WarrantyFor(true, 30, ref)
	require.NotNil(t, term)
	assert.Equal(t, ref, term.Start)
	assert.Equal(t, time.Date(2024, 2, 19, 10, 30, 0, 0, time.UTC), term.End)
	assert.Equal(t, 30, term.Days)

	leap := WarrantyFor(true, 10, time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), leap.End)

	zero := WarrantyFor(true, 0, ref)
	assert.Equal(t, ref, zero.End)

	assert.Nil(t, WarrantyFor(false, 30, ref))
}

func TestWarrantyActive(t *testing.T) {
	end := time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC)
	tx := model.Transaction{WarrantyEnabled: true, WarrantyEnd: &end}

	assert.True(t, tx.WarrantyActive(end.Add(-time.Second)))
	assert.False(t, tx.WarrantyActive(end))
	assert.False(t, tx.WarrantyActive(end.Add(time.Hour)))

	tx.WarrantyEnabled = false
	assert.False(t, tx.WarrantyActive(end.Add(-time.Hour)))
}

func TestResolveBalanceAction(t *testing.T) {
	cases := []struct {
		name   string
		diff   string
		choice model.BalanceAction
		want   model.BalanceAction
		err    bool
	}{
		{"positive ignores choice", "230", model.BalanceCredit, model.BalanceNone, false},
		{"zero differential", "0", "", model.BalanceNone, false},
		{"negative defaults to zero", "-100", "", model.BalanceZero, false},
		{"negative credit", "-100", model.BalanceCredit, model.BalanceCredit, false},
		{"negative zero", "-100", model.BalanceZero, model.BalanceZero, false},
		{"negative none is invalid", "-100", model.BalanceNone, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBalanceAction(usd(tc.diff), tc.choice)
			if tc.err {
				assert.ErrorIs(t, err, ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeCreditBalance(t *testing.T) {
	credit := model.Transaction{ID: uuid.New(), FinalUSD: usd("-100"), BalanceAction: model.BalanceCredit}
	forgiven := model.Transaction{ID: uuid.New(), FinalUSD: usd("-50"), BalanceAction: model.BalanceZero}
	redeem := model.Transaction{ID: uuid.New(), FinalUSD: usd("300"), BalanceAction: model.BalanceNone, CreditRedeemedUSD: usd("30")}

	bal := ComputeCreditBalance([]model.Transaction{credit, forgiven, redeem})
	assertUSD(t, "100", bal.Credited)
	assertUSD(t, "30", bal.Redeemed)
	assertUSD(t, "70", bal.Balance)

	// Reversing the redemption gives the 30 back.
	undoRedeem := model.Transaction{
		ID:                uuid.New(),
		FinalUSD:          usd("-300"),
		BalanceAction:     model.BalanceZero,
		CreditRedeemedUSD: usd("-30"),
		ReversesID:        &redeem.ID,
	}
	bal = ComputeCreditBalance([]model.Transaction{credit, forgiven, redeem, undoRedeem})
	assertUSD(t, "100", bal.Balance)

	// Reversing the credit settlement voids it.
	undoCredit := model.Transaction{ID: uuid.New(), FinalUSD: usd("100"), BalanceAction: model.BalanceNone, ReversesID: &credit.ID}
	bal = ComputeCreditBalance([]model.Transaction{credit, forgiven, redeem, undoRedeem, undoCredit})
	assertUSD(t, "0", bal.Credited)
	assertUSD(t, "0", bal.Balance)

	assertUSD(t, "0", ComputeCreditBalance(nil).Balance)
}
