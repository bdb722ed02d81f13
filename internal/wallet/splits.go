package wallet

import (
	"time"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// SplitRecord is one stock split extracted from the ledger.
type SplitRecord struct {
	EffectiveDate time.Time
	Multiplier    decimal.Decimal
}

// SplitSet holds a stock's splits in chronological order. It is used only
// transiently, to restate a historical sale across a split boundary; open
// lots are adjusted permanently by Pool.ApplyStockSplit instead.
type SplitSet []SplitRecord

// SplitsFromEvents picks the stock-split events out of a chronological
// event list. Non-positive multipliers are skipped; they are invalid input
// that validation upstream should have rejected.
func SplitsFromEvents(events []model.LedgerEvent) SplitSet {
	var set SplitSet
	for _, ev := range events {
		if ev.Kind != model.EventStockSplit {
			continue
		}
		if !ev.SplitMultiplier.IsPositive() {
			continue
		}
		set = append(set, SplitRecord{EffectiveDate: ev.Date, Multiplier: ev.SplitMultiplier})
	}
	return set
}

// Factor returns the product of all multipliers effective in [from, asOf].
func (s SplitSet) Factor(from, asOf time.Time) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	for _, rec := range s {
		if rec.EffectiveDate.Before(from) || rec.EffectiveDate.After(asOf) {
			continue
		}
		factor = factor.Mul(rec.Multiplier)
	}
	return factor
}

// Adjust restates a historical per-share price and quantity into the terms
// in effect at asOf: price is divided and shares multiplied by the combined
// split factor, leaving the dollar value unchanged.
func (s SplitSet) Adjust(price, shares decimal.Decimal, from, asOf time.Time) (decimal.Decimal, decimal.Decimal) {
	factor := s.Factor(from, asOf)
	if factor.Equal(decimal.NewFromInt(1)) {
		return price, shares
	}
	return RoundTarget(price.Div(factor)), RoundShares(shares.Mul(factor))
}
