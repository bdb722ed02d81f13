package wallet

import (
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// TiedUpInvestment is the capital still held in lots: average cost per
// share times shares still held, summed over all lots. A lot whose total
// shares quantize to zero contributes nothing.
func TiedUpInvestment(lots []model.Lot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		if ZeroShares(lot.TotalShares) || ZeroShares(lot.RemainingShares) {
			continue
		}
		perShare := lot.TotalInvestment.Div(lot.TotalShares)
		total = total.Add(perShare.Mul(lot.RemainingShares))
	}
	return RoundCurrency(total)
}

// RiskInvestment is the tied-up capital in lots whose take-profit target
// has not yet been reached. Without a current price everything still held
// counts as at risk.
func RiskInvestment(stock model.Stock, lots []model.Lot, currentPrice decimal.NullDecimal) decimal.Decimal {
	if !currentPrice.Valid {
		return TiedUpInvestment(lots)
	}
	price := currentPrice.Decimal
	total := decimal.Zero
	for _, lot := range lots {
		if ZeroShares(lot.TotalShares) || ZeroShares(lot.RemainingShares) {
			continue
		}
		target := lotTakeProfit(stock, lot)
		if target.IsPositive() && target.LessThanOrEqual(price) {
			continue // target met, capital no longer at risk
		}
		perShare := lot.TotalInvestment.Div(lot.TotalShares)
		total = total.Add(perShare.Mul(lot.RemainingShares))
	}
	return RoundCurrency(total)
}

// MarketValue marks the held shares to the current price. Null without one.
func MarketValue(lots []model.Lot, currentPrice decimal.NullDecimal) decimal.NullDecimal {
	if !currentPrice.Valid {
		return decimal.NullDecimal{}
	}
	total := decimal.Zero
	for _, lot := range lots {
		if ZeroShares(lot.RemainingShares) {
			continue
		}
		total = total.Add(currentPrice.Decimal.Mul(lot.RemainingShares))
	}
	return decimal.NewNullDecimal(RoundCurrency(total))
}

// BudgetUsed is out-of-pocket cash not covered by the current cash balance,
// clamped at zero.
func BudgetUsed(outOfPocket, cashBalance decimal.Decimal) decimal.Decimal {
	used := outOfPocket.Sub(cashBalance)
	if used.IsNegative() {
		return decimal.Zero
	}
	return RoundCurrency(used)
}

// BudgetAvailable is what remains of the risk budget, clamped at zero.
func BudgetAvailable(riskBudget, budgetUsed decimal.Decimal) decimal.Decimal {
	avail := riskBudget.Sub(budgetUsed)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return RoundCurrency(avail)
}

// ROIC is the return on all cash ever put in:
// (cash + market value - out of pocket) / out of pocket. Undefined when
// nothing was put in.
func ROIC(cashBalance decimal.Decimal, marketValue decimal.NullDecimal, outOfPocket decimal.Decimal) decimal.NullDecimal {
	if !outOfPocket.IsPositive() || !marketValue.Valid {
		return decimal.NullDecimal{}
	}
	r := cashBalance.Add(marketValue.Decimal).Sub(outOfPocket).Div(outOfPocket).Mul(hundred)
	return decimal.NewNullDecimal(RoundCurrency(r))
}
