package service

import "github.com/shopspring/decimal"

// Differential is the signed amount of a settlement:
// sell - tradeIn + adjustment. A nil tradeIn means no trade-in was given.
// Positive: the customer pays. Negative: money or credit is owed to them.
func Differential(sell decimal.Decimal, tradeIn *decimal.Decimal, adjustment decimal.Decimal) decimal.Decimal {
	d := sell.Add(adjustment)
	if tradeIn != nil {
		d = d.Sub(*tradeIn)
	}
	return d
}

// ToLocal converts a USD amount with the given rate, rounded to cents.
func ToLocal(usd, rate decimal.Decimal) decimal.Decimal {
	return usd.Mul(rate).Round(2)
}

// cents normalizes operator-entered amounts to the currency's minor unit.
func cents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
