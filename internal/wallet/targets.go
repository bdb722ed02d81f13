package wallet

import (
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// Target prices are pure functions of their inputs. Commission adjustment
// shifts a target so that, after paying commission, the execution lands
// exactly on the nominal target: buys divide by (1 + c/100), sells divide
// by (1 - c/100). A commission of 100% or more is degenerate and skipped.

// DropBuyTarget is the dip-buy price: PDP percent below the buy price.
func DropBuyTarget(buyPrice, pdp, commissionPct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	t := buyPrice.Mul(one.Sub(pdp.Div(hundred)))
	if commissionPct.IsPositive() && commissionPct.LessThan(hundred) {
		t = t.Div(one.Add(commissionPct.Div(hundred)))
	}
	return RoundCurrency(t)
}

// TakeProfitTarget is the sell price at which the position clears tpPct
// percent of profit net of commission. Quantized to 4 decimals so a sale
// executing exactly at the target is never a cent short.
func TakeProfitTarget(buyPrice, tpPct, commissionPct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	t := buyPrice.Mul(one.Add(tpPct.Div(hundred)))
	if commissionPct.IsPositive() && commissionPct.LessThan(hundred) {
		t = t.Div(one.Sub(commissionPct.Div(hundred)))
	}
	return RoundTarget(t)
}

// PercentToTarget is the displayed distance from the current price to a
// target, in percent. Null when the target is not positive.
func PercentToTarget(currentPrice, target decimal.Decimal) decimal.NullDecimal {
	if !target.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(RoundCurrency(currentPrice.Div(target).Sub(decimal.NewFromInt(1)).Mul(hundred)))
}

// BuySplit divides a buy of investment at price between the strategies.
// The swing leg rounds to share precision and the hold leg takes the rest,
// so the two always sum to RoundShares(investment/price) exactly. A warning
// reports when rounding moved a residual onto the hold leg.
func BuySplit(investment, price, swingRatioPct decimal.Decimal) (swing, hold, total decimal.Decimal, warnings []Warning, err error) {
	if !price.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero, nil, validationErr("price", "must be positive")
	}
	if !investment.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero, nil, validationErr("investment", "must be positive")
	}
	if swingRatioPct.IsNegative() || swingRatioPct.GreaterThan(hundred) {
		return decimal.Zero, decimal.Zero, decimal.Zero, nil, validationErr("swingRatioPct", "must be within 0-100")
	}

	total = RoundShares(investment.Div(price))
	swing = RoundShares(total.Mul(swingRatioPct).Div(hundred))
	hold = total.Sub(swing)

	holdDirect := RoundShares(total.Mul(hundred.Sub(swingRatioPct)).Div(hundred))
	if !hold.Equal(holdDirect) {
		warnings = append(warnings, warnf(WarnRoundingResidual,
			"hold shares nudged from %s to %s so legs sum to %s", holdDirect, hold, total))
	}
	return swing, hold, total, warnings, nil
}

// EvaluateSignals derives the active trading signals for a stock: dip-buy
// when the price fell to the drop target of the most recent buy, and
// per-strategy take-profit when any open lot's target is reached. All false
// when no current price is available.
func EvaluateSignals(stock model.Stock, lots []model.Lot, lastBuyPrice, currentPrice decimal.NullDecimal) model.SignalFlags {
	var flags model.SignalFlags
	if !currentPrice.Valid {
		return flags
	}
	price := currentPrice.Decimal

	if lastBuyPrice.Valid && stock.PriceDropPct.IsPositive() {
		drop := DropBuyTarget(lastBuyPrice.Decimal, stock.PriceDropPct, stock.CommissionPct)
		flags.DipBuy = drop.IsPositive() && price.LessThanOrEqual(drop)
	}

	for _, lot := range lots {
		if ZeroShares(lot.RemainingShares) {
			continue
		}
		target := lotTakeProfit(stock, lot)
		if !target.IsPositive() || price.LessThan(target) {
			continue
		}
		switch lot.Strategy {
		case model.StrategySwing:
			flags.SwingTakeProfit = true
		case model.StrategyHold:
			flags.HoldTakeProfit = true
		}
	}
	return flags
}

// lotTakeProfit prefers the target stored on the lot and falls back to the
// stock's strategy parameters.
func lotTakeProfit(stock model.Stock, lot model.Lot) decimal.Decimal {
	if lot.TpValue.Valid {
		return lot.TpValue.Decimal
	}
	switch lot.Strategy {
	case model.StrategyHold:
		return TakeProfitTarget(lot.BuyPrice, stock.HoldTpPct, stock.CommissionPct)
	default:
		return TakeProfitTarget(lot.BuyPrice, stock.SwingTpPct, stock.CommissionPct)
	}
}
