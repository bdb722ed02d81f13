package model

import "github.com/shopspring/decimal"

// Stock holds per-instrument trading parameters. Percent fields are
// expressed as 0-100 values, not fractions.
type Stock struct {
	StockID       int64
	Symbol        string
	Name          string
	SwingRatioPct decimal.Decimal // share of every buy allocated to the Swing strategy
	PriceDropPct  decimal.Decimal // PDP: dip-buy target distance below the last buy price
	SwingTpPct    decimal.Decimal // STP: swing take-profit percent
	HoldTpPct     decimal.Decimal // HTP: hold take-profit percent
	CommissionPct decimal.Decimal
	RiskBudget    decimal.Decimal // annual budget of capital allowed at risk
	OutOfPocket   decimal.Decimal // cumulative cash put in from outside
	CashBalance   decimal.Decimal
	Archived      bool
}
