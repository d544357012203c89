package service

import (
	"github.com/FedeEstrubia/imanager-argentina/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResolveBalanceAction decides the disposition of a settlement. A
// non-negative differential is always "none". A negative one takes the
// operator's choice, defaulting to "zero" when no choice was made.
func ResolveBalanceAction(differential decimal.Decimal, choice model.BalanceAction) (model.BalanceAction, error) {
	if !differential.IsNegative() {
		return model.BalanceNone, nil
	}
	switch choice {
	case "":
		return model.BalanceZero, nil
	case model.BalanceZero, model.BalanceCredit:
		return choice, nil
	}
	return "", validationError(map[string]string{
		"customer_balance_action": "debe ser 'zero' o 'credit' cuando el saldo es a favor del cliente",
	})
}

// CreditBalance is the derived credit ledger of a customer.
type CreditBalance struct {
	Credited decimal.Decimal
	Redeemed decimal.Decimal
	Balance  decimal.Decimal
}

// ComputeCreditBalance folds a customer's transactions into a balance.
// Credited sums the owed amount of every "credit" settlement and takes it
// back when that settlement was reversed. Redeemed sums credit_redeemed_usd,
// which is negative on reversals.
func ComputeCreditBalance(txs []model.Transaction) CreditBalance {
	byID := make(map[uuid.UUID]*model.Transaction, len(txs))
	for i := range txs {
		byID[txs[i].ID] = &txs[i]
	}

	credited := decimal.Zero
	redeemed := decimal.Zero
	for i := range txs {
		t := &txs[i]
		redeemed = redeemed.Add(t.CreditRedeemedUSD)
		if t.BalanceAction == model.BalanceCredit && t.FinalUSD.IsNegative() {
			credited = credited.Add(t.FinalUSD.Neg())
		}
		if t.ReversesID != nil {
			if orig, ok := byID[*t.ReversesID]; ok &&
				orig.BalanceAction == model.BalanceCredit && orig.FinalUSD.IsNegative() {
				credited = credited.Sub(orig.FinalUSD.Neg())
			}
		}
	}
	return CreditBalance{
		Credited: credited,
		Redeemed: redeemed,
		Balance:  credited.Sub(redeemed),
	}
}
