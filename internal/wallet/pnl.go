package wallet

import (
	"time"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// PLReport is the per-stock profit/loss breakdown produced by ComputePL.
type PLReport struct {
	Swing    model.StrategyPL
	Hold     model.StrategyPL
	Combined model.StrategyPL

	Dividends     decimal.Decimal
	LendingIncome decimal.Decimal

	Warnings []Warning
}

// ComputePL aggregates realized P/L from sell events matched to their lots
// and unrealized P/L from marking open lots to the current price. asOf
// anchors the transient split adjustment for historical sales; lots are
// already in post-split terms, so each sale's price and quantity are
// restated across any splits after its date before being compared to the
// lot's basis. A null currentPrice leaves unrealized figures null — price
// unavailable is not zero P/L.
func ComputePL(
	stock model.Stock,
	events []model.LedgerEvent,
	lots []model.Lot,
	currentPrice decimal.NullDecimal,
	asOf time.Time,
) PLReport {
	var rep PLReport
	splits := SplitsFromEvents(events)
	lotByID := make(map[int64]model.Lot, len(lots))
	for _, lot := range lots {
		lotByID[lot.LotID] = lot
	}

	for _, ev := range events {
		switch ev.Kind {
		case model.EventSell:
			rep.addSale(stock, ev, lotByID, splits, asOf)
		case model.EventDividend:
			rep.Dividends = RoundCurrency(rep.Dividends.Add(ev.Amount))
		case model.EventLendingPayment:
			rep.LendingIncome = RoundCurrency(rep.LendingIncome.Add(ev.Amount))
		}
	}

	for _, lot := range lots {
		if ZeroShares(lot.RemainingShares) {
			continue
		}
		pl := strategyPL(&rep, lot.Strategy)
		if currentPrice.Valid {
			gain := RoundCurrency(currentPrice.Decimal.Sub(lot.BuyPrice).Mul(lot.RemainingShares))
			pl.Unrealized = addNull(pl.Unrealized, gain)
		}
		pl.CostBasisHeld = RoundCurrency(pl.CostBasisHeld.Add(lot.BuyPrice.Mul(lot.RemainingShares)))
	}

	finishStrategy(&rep.Swing)
	finishStrategy(&rep.Hold)
	rep.Combined = combine(rep.Swing, rep.Hold)

	if rep.Swing.RealizedPct == (decimal.NullDecimal{}) && !rep.Swing.Realized.IsZero() ||
		rep.Hold.RealizedPct == (decimal.NullDecimal{}) && !rep.Hold.Realized.IsZero() {
		rep.Warnings = append(rep.Warnings, warnf(WarnDataInconsistency,
			"realized profit recorded against a zero cost basis for %s", stock.Symbol))
	}
	return rep
}

func (rep *PLReport) addSale(
	stock model.Stock,
	ev model.LedgerEvent,
	lotByID map[int64]model.Lot,
	splits SplitSet,
	asOf time.Time,
) {
	lot, haveLot := lotByID[ev.LotID]

	strategy := ev.Strategy
	if strategy == "" && haveLot {
		strategy = lot.Strategy
	}
	pl := strategyPL(rep, strategy)
	pl.SellCount++

	if !haveLot {
		// The lot was removed after selling out; the persisted per-sale
		// profit is all that is left.
		if ev.Profit.Valid {
			pl.Realized = RoundCurrency(pl.Realized.Add(ev.Profit.Decimal))
		} else {
			rep.Warnings = append(rep.Warnings, warnf(WarnDataInconsistency,
				"sell event %d references missing lot %d and has no stored profit", ev.EventID, ev.LotID))
		}
		return
	}

	// Restate the sale into post-split terms so it lines up with the lot's
	// permanently adjusted basis.
	adjPrice, adjQty := splits.Adjust(ev.Price, ev.Quantity, ev.Date, asOf)

	profit := saleProfit(lot.BuyPrice, adjPrice, adjQty, stock.CommissionPct)
	if ev.Profit.Valid {
		profit = ev.Profit.Decimal
	}
	pl.Realized = RoundCurrency(pl.Realized.Add(profit))
	pl.CostBasisSold = RoundCurrency(pl.CostBasisSold.Add(lot.BuyPrice.Mul(adjQty)))
}

func strategyPL(rep *PLReport, strategy model.Strategy) *model.StrategyPL {
	if strategy == model.StrategyHold {
		return &rep.Hold
	}
	return &rep.Swing
}

// finishStrategy derives the percent fields. Zero-over-zero is exactly
// zero; profit against a zero basis is undefined and stays null.
func finishStrategy(pl *model.StrategyPL) {
	pl.RealizedPct = pctOf(pl.Realized, pl.CostBasisSold)
	if pl.Unrealized.Valid {
		pl.UnrealizedPct = pctOf(pl.Unrealized.Decimal, pl.CostBasisHeld)
	}
}

func combine(a, b model.StrategyPL) model.StrategyPL {
	c := model.StrategyPL{
		Realized:      RoundCurrency(a.Realized.Add(b.Realized)),
		CostBasisSold: RoundCurrency(a.CostBasisSold.Add(b.CostBasisSold)),
		CostBasisHeld: RoundCurrency(a.CostBasisHeld.Add(b.CostBasisHeld)),
		SellCount:     a.SellCount + b.SellCount,
	}
	if a.Unrealized.Valid || b.Unrealized.Valid {
		sum := decimal.Zero
		if a.Unrealized.Valid {
			sum = sum.Add(a.Unrealized.Decimal)
		}
		if b.Unrealized.Valid {
			sum = sum.Add(b.Unrealized.Decimal)
		}
		c.Unrealized = decimal.NewNullDecimal(RoundCurrency(sum))
	}
	finishStrategy(&c)
	return c
}

func pctOf(amount, basis decimal.Decimal) decimal.NullDecimal {
	if basis.IsPositive() {
		return decimal.NewNullDecimal(RoundCurrency(amount.Div(basis).Mul(hundred)))
	}
	if amount.IsZero() {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	return decimal.NullDecimal{}
}

func addNull(acc decimal.NullDecimal, d decimal.Decimal) decimal.NullDecimal {
	if !acc.Valid {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NewNullDecimal(RoundCurrency(acc.Decimal.Add(d)))
}
