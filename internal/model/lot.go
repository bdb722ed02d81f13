package model

import "github.com/shopspring/decimal"

// Lot is a cost-basis bucket: all shares of one stock bought at one price
// under one strategy. RemainingShares must always equal
// TotalShares - SharesSold after rounding to share precision.
type Lot struct {
	LotID           int64
	StockID         int64
	Strategy        Strategy
	BuyPrice        decimal.Decimal
	TotalShares     decimal.Decimal // shares ever bought into this lot
	TotalInvestment decimal.Decimal // capital ever allocated to this lot
	SharesSold      decimal.Decimal
	RemainingShares decimal.Decimal
	RealizedPL      decimal.Decimal
	RealizedPLPct   decimal.Decimal
	TpValue         decimal.NullDecimal // commission-adjusted take-profit price
	SellTxnCount    int
}

// Committed reports whether the lot has sales recorded. A committed lot's
// buy price and strategy are frozen.
func (l Lot) Committed() bool {
	return l.SellTxnCount > 0 || l.SharesSold.IsPositive()
}
