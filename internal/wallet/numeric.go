// Package wallet implements the lot-based cost-basis ledger: lot pool
// mutations, split adjustment, commission-adjusted target pricing, P/L
// aggregation and budget/risk math. It is pure in-memory arithmetic; all
// I/O lives with the callers.
package wallet

import "github.com/shopspring/decimal"

// Precision policy: share quantities carry 5 decimal places, currency 2,
// target prices 4 (a sale executing exactly at a commission-adjusted target
// must not miss it by a cent). Every derived value is quantized before it
// is stored or compared, so equality is exact and no epsilon tolerance is
// needed anywhere.
const (
	sharePlaces    = 5
	currencyPlaces = 2
	targetPlaces   = 4
)

var hundred = decimal.NewFromInt(100)

func RoundShares(d decimal.Decimal) decimal.Decimal {
	return d.Round(sharePlaces)
}

func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

func RoundTarget(d decimal.Decimal) decimal.Decimal {
	return d.Round(targetPlaces)
}

// ZeroShares reports whether a quantity quantizes to zero at share precision.
func ZeroShares(d decimal.Decimal) bool {
	return RoundShares(d).IsZero()
}

// PriceKey quantizes a price for lot matching. Two buy prices map to the
// same lot exactly when their keys are equal.
func PriceKey(price decimal.Decimal) string {
	return RoundTarget(price).String()
}
