package wallet

import (
	"testing"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStock() model.Stock {
	return model.Stock{
		StockID:       1,
		Symbol:        "ACME",
		SwingRatioPct: dec("50"),
		PriceDropPct:  dec("5"),
		SwingTpPct:    dec("10"),
		HoldTpPct:     dec("10"),
		CommissionPct: decimal.Zero,
	}
}

func TestComputePLWorkedExample(t *testing.T) {
	// Buy 10 @ $100 split 50/50, sell 3 swing shares @ $110, price now $120.
	stock := testStock()
	lots := []model.Lot{
		{LotID: 1, StockID: 1, Strategy: model.StrategySwing, BuyPrice: dec("100"),
			TotalShares: dec("5"), TotalInvestment: dec("500"), SharesSold: dec("3"),
			RemainingShares: dec("2"), RealizedPL: dec("30"), SellTxnCount: 1},
		{LotID: 2, StockID: 1, Strategy: model.StrategyHold, BuyPrice: dec("100"),
			TotalShares: dec("5"), TotalInvestment: dec("500"),
			RemainingShares: dec("5")},
	}
	events := []model.LedgerEvent{
		{EventID: 1, StockID: 1, Kind: model.EventBuy, Date: day("2026-01-05"),
			Price: dec("100"), Investment: dec("1000"), Quantity: dec("10"),
			Assignment: model.AssignRatio, SwingShares: dec("5"), HoldShares: dec("5")},
		{EventID: 2, StockID: 1, Kind: model.EventSell, Date: day("2026-02-10"),
			Price: dec("110"), Quantity: dec("3"), LotID: 1, Strategy: model.StrategySwing,
			Profit: ndec("30"), ProfitPct: ndec("10")},
	}

	rep := ComputePL(stock, events, lots, ndec("120"), day("2026-03-01"))

	requireDecEqual(t, "30", rep.Swing.Realized)
	require.True(t, rep.Swing.RealizedPct.Valid)
	requireDecEqual(t, "10", rep.Swing.RealizedPct.Decimal)
	requireDecEqual(t, "300", rep.Swing.CostBasisSold)

	require.True(t, rep.Swing.Unrealized.Valid)
	requireDecEqual(t, "40", rep.Swing.Unrealized.Decimal) // (120-100)*2
	require.True(t, rep.Hold.Unrealized.Valid)
	requireDecEqual(t, "100", rep.Hold.Unrealized.Decimal) // (120-100)*5

	requireDecEqual(t, "30", rep.Combined.Realized)
	require.True(t, rep.Combined.Unrealized.Valid)
	requireDecEqual(t, "140", rep.Combined.Unrealized.Decimal)
	requireDecEqual(t, "1000", rep.Combined.CostBasisSold.Add(rep.Combined.CostBasisHeld))
	assert.Equal(t, 1, rep.Combined.SellCount)
	assert.Empty(t, rep.Warnings)
}

func TestComputePLNoPriceStaysNull(t *testing.T) {
	stock := testStock()
	lots := []model.Lot{
		{LotID: 1, Strategy: model.StrategySwing, BuyPrice: dec("100"),
			TotalShares: dec("5"), TotalInvestment: dec("500"), RemainingShares: dec("5")},
	}

	rep := ComputePL(stock, nil, lots, decimal.NullDecimal{}, day("2026-03-01"))

	assert.False(t, rep.Swing.Unrealized.Valid, "no price must surface as unavailable, not zero")
	assert.False(t, rep.Swing.UnrealizedPct.Valid)
	assert.False(t, rep.Combined.Unrealized.Valid)
	// Realized figures are still defined: zero over zero is exactly zero.
	requireDecEqual(t, "0", rep.Swing.Realized)
	require.True(t, rep.Swing.RealizedPct.Valid)
	requireDecEqual(t, "0", rep.Swing.RealizedPct.Decimal)
}

func TestComputePLRecomputesMissingStoredProfit(t *testing.T) {
	stock := testStock()
	stock.CommissionPct = dec("1")
	lots := []model.Lot{
		{LotID: 1, Strategy: model.StrategySwing, BuyPrice: dec("100"),
			TotalShares: dec("5"), TotalInvestment: dec("500"), SharesSold: dec("3"),
			RemainingShares: dec("2"), SellTxnCount: 1},
	}
	events := []model.LedgerEvent{
		{EventID: 2, Kind: model.EventSell, Date: day("2026-02-10"),
			Price: dec("110"), Quantity: dec("3"), LotID: 1, Strategy: model.StrategySwing},
	}

	rep := ComputePL(stock, events, lots, decimal.NullDecimal{}, day("2026-03-01"))
	// (110-100)*3 minus 1% of 330 proceeds.
	requireDecEqual(t, "26.70", rep.Swing.Realized)
}

func TestComputePLHistoricalSaleAcrossSplit(t *testing.T) {
	// Sold 2 @ $110 on Feb 10, then a 2:1 split on Mar 1 permanently
	// adjusted the lot to $50. The sale must be restated (price/2, qty*2)
	// so its profit and basis line up with the adjusted lot.
	stock := testStock()
	lots := []model.Lot{
		{LotID: 1, Strategy: model.StrategySwing, BuyPrice: dec("50"),
			TotalShares: dec("20"), TotalInvestment: dec("1000"), SharesSold: dec("4"),
			RemainingShares: dec("16"), RealizedPL: dec("20"), SellTxnCount: 1},
	}
	events := []model.LedgerEvent{
		{EventID: 1, Kind: model.EventSell, Date: day("2026-02-10"),
			Price: dec("110"), Quantity: dec("2"), LotID: 1, Strategy: model.StrategySwing},
		{EventID: 2, Kind: model.EventStockSplit, Date: day("2026-03-01"),
			SplitMultiplier: dec("2"), SplitApplied: true},
	}

	rep := ComputePL(stock, events, lots, decimal.NullDecimal{}, day("2026-04-01"))
	// Restated: (55-50)*4 = 20 — the same dollars as (110-100)*2.
	requireDecEqual(t, "20", rep.Swing.Realized)
	requireDecEqual(t, "200", rep.Swing.CostBasisSold)
}

func TestComputePLIncomeTrackedSeparately(t *testing.T) {
	stock := testStock()
	events := []model.LedgerEvent{
		{EventID: 1, Kind: model.EventDividend, Date: day("2026-01-15"), Amount: dec("12.34")},
		{EventID: 2, Kind: model.EventDividend, Date: day("2026-04-15"), Amount: dec("12.66")},
		{EventID: 3, Kind: model.EventLendingPayment, Date: day("2026-02-01"), Amount: dec("3.50")},
	}

	rep := ComputePL(stock, events, nil, decimal.NullDecimal{}, day("2026-05-01"))
	requireDecEqual(t, "25", rep.Dividends)
	requireDecEqual(t, "3.50", rep.LendingIncome)
	// Income never leaks into the per-strategy cost-basis math.
	requireDecEqual(t, "0", rep.Combined.Realized)
	requireDecEqual(t, "0", rep.Combined.CostBasisSold)
}

func TestComputePLMissingLotWarns(t *testing.T) {
	stock := testStock()
	events := []model.LedgerEvent{
		{EventID: 9, Kind: model.EventSell, Date: day("2026-02-10"),
			Price: dec("110"), Quantity: dec("3"), LotID: 77, Strategy: model.StrategySwing},
	}

	rep := ComputePL(stock, events, nil, decimal.NullDecimal{}, day("2026-03-01"))
	require.NotEmpty(t, rep.Warnings)
	assert.Equal(t, WarnDataInconsistency, rep.Warnings[0].Code)
}

func TestComputePLAssociativeAcrossStocks(t *testing.T) {
	// Portfolio totals are plain sums of per-stock totals.
	stock := testStock()
	lotsA := []model.Lot{{LotID: 1, Strategy: model.StrategySwing, BuyPrice: dec("100"),
		TotalShares: dec("5"), TotalInvestment: dec("500"), RemainingShares: dec("5")}}
	lotsB := []model.Lot{{LotID: 2, Strategy: model.StrategySwing, BuyPrice: dec("10"),
		TotalShares: dec("50"), TotalInvestment: dec("500"), RemainingShares: dec("50")}}

	repA := ComputePL(stock, nil, lotsA, ndec("110"), day("2026-03-01"))
	repB := ComputePL(stock, nil, lotsB, ndec("12"), day("2026-03-01"))

	sum := repA.Swing.Unrealized.Decimal.Add(repB.Swing.Unrealized.Decimal)
	requireDecEqual(t, "150", sum) // 50 + 100, no cross-stock normalization
}
