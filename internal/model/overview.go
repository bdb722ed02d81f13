package model

import "github.com/shopspring/decimal"

// StrategyPL is the per-strategy profit/loss breakdown for one stock.
// Null decimals mean "not computable": unrealized P/L is null when no
// current price is available, percent values are null when the cost basis
// is zero but the profit is not.
type StrategyPL struct {
	Realized      decimal.Decimal
	RealizedPct   decimal.NullDecimal
	Unrealized    decimal.NullDecimal
	UnrealizedPct decimal.NullDecimal
	CostBasisSold decimal.Decimal
	CostBasisHeld decimal.Decimal
	SellCount     int
}

// SignalFlags are the price-based trading signals for one stock.
type SignalFlags struct {
	DipBuy          bool
	SwingTakeProfit bool
	HoldTakeProfit  bool
}

// StockOverview is the recomputed-on-demand view of one position.
type StockOverview struct {
	Stock        Stock
	CurrentPrice decimal.NullDecimal

	Swing    StrategyPL
	Hold     StrategyPL
	Combined StrategyPL

	Dividends     decimal.Decimal
	LendingIncome decimal.Decimal

	TiedUpInvestment decimal.Decimal
	RiskInvestment   decimal.Decimal
	MarketValue      decimal.NullDecimal
	BudgetUsed       decimal.Decimal
	BudgetAvailable  decimal.Decimal

	Signals SignalFlags

	BuyCount  int
	SellCount int
	OpenLots  int

	Warnings []string
}

// PortfolioOverview sums per-stock totals. Unrealized figures are null when
// any held stock is missing a price; MissingPrices lists those symbols.
type PortfolioOverview struct {
	Stocks []StockOverview

	TotalTiedUp     decimal.Decimal
	TotalRisk       decimal.Decimal
	TotalRealized   decimal.Decimal
	TotalUnrealized decimal.NullDecimal
	TotalIncome     decimal.Decimal // dividends + stock-lending payments
	CombinedPL      decimal.NullDecimal
	MarketValue     decimal.NullDecimal
	ROIC            decimal.NullDecimal

	MissingPrices []string
}
