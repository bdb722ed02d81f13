package telebotConverter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return money(d.Decimal)
}

func nullPct(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return d.Decimal.StringFixed(2) + "%"
}

// StocksListResponse renders one page of the tracked stocks with a button
// per symbol.
func StocksListResponse(stocks []model.Stock, page, perPage int) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	start := page * perPage
	end := min(start+perPage, len(stocks))

	sb.WriteString(fmt.Sprintf("📈 Tracked stocks (%d):\n\n", len(stocks)))

	stockBtns := make([]tele.Btn, 0, end-start)
	for _, stock := range stocks[start:end] {
		sb.WriteString(fmt.Sprintf("• %s — %s\n", stock.Symbol, stock.Name))
		stockBtns = append(stockBtns, markup.Data(stock.Symbol, tgCallback.Stock, stock.Symbol))
	}

	paginationBtns := make([]tele.Btn, 0, 2)
	if page > 0 {
		paginationBtns = append(paginationBtns, markup.Data("← prev", tgCallback.StocksPage, strconv.Itoa(page-1)))
	}
	if end < len(stocks) {
		paginationBtns = append(paginationBtns, markup.Data("next →", tgCallback.StocksPage, strconv.Itoa(page+1)))
	}

	markup.Inline(
		markup.Row(stockBtns...),
		markup.Row(paginationBtns...),
	)

	return sb.String(), markup
}

// StockOverviewResponse renders the full position view plus the action
// buttons for the guided flows.
func StockOverviewResponse(ov model.StockOverview) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	stockID := strconv.FormatInt(ov.Stock.StockID, 10)

	sb.WriteString(fmt.Sprintf("📊 %s (%s)\n", ov.Stock.Symbol, ov.Stock.Name))
	sb.WriteString(fmt.Sprintf("Price: %s\n\n", nullMoney(ov.CurrentPrice)))

	writeStrategy(&sb, "Swing", ov.Swing)
	writeStrategy(&sb, "Hold", ov.Hold)
	writeStrategy(&sb, "Combined", ov.Combined)

	sb.WriteString(fmt.Sprintf("💵 Dividends: %s | Lending: %s\n\n", money(ov.Dividends), money(ov.LendingIncome)))

	sb.WriteString(fmt.Sprintf("Tied up: %s | At risk: %s\n", money(ov.TiedUpInvestment), money(ov.RiskInvestment)))
	sb.WriteString(fmt.Sprintf("Market value: %s\n", nullMoney(ov.MarketValue)))
	sb.WriteString(fmt.Sprintf("Budget used: %s | available: %s\n", money(ov.BudgetUsed), money(ov.BudgetAvailable)))
	sb.WriteString(fmt.Sprintf("Buys: %d | Sells: %d | Open lots: %d\n", ov.BuyCount, ov.SellCount, ov.OpenLots))

	if signals := signalLine(ov.Signals); signals != "" {
		sb.WriteString("\n🔔 " + signals + "\n")
	}
	for _, w := range ov.Warnings {
		sb.WriteString("\n⚠️ " + w + "\n")
	}

	markup.Inline(
		markup.Row(
			markup.Data("Buy", tgCallback.Buy, stockID),
			markup.Data("Sell", tgCallback.SellLots, stockID),
		),
		markup.Row(
			markup.Data("Dividend", tgCallback.Dividend, stockID),
			markup.Data("Lending", tgCallback.Lending, stockID),
			markup.Data("Split", tgCallback.Split, stockID),
		),
	)

	return sb.String(), markup
}

func writeStrategy(sb *strings.Builder, label string, pl model.StrategyPL) {
	sb.WriteString(fmt.Sprintf(
		"%s: realized %s (%s), unrealized %s (%s)\n",
		label, money(pl.Realized), nullPct(pl.RealizedPct), nullMoney(pl.Unrealized), nullPct(pl.UnrealizedPct),
	))
}

func signalLine(flags model.SignalFlags) string {
	var active []string
	if flags.DipBuy {
		active = append(active, "dip-buy")
	}
	if flags.SwingTakeProfit {
		active = append(active, "swing take-profit")
	}
	if flags.HoldTakeProfit {
		active = append(active, "hold take-profit")
	}
	return strings.Join(active, ", ")
}

// LotsResponse lists a stock's lots: open lots get a sell button, sold-out
// lots a delete button.
func LotsResponse(symbol string, lots []model.Lot) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Lots for %s:\n\n", symbol))

	var rows []tele.Row
	for _, lot := range lots {
		lotID := strconv.FormatInt(lot.LotID, 10)
		open := lot.RemainingShares.IsPositive()

		sb.WriteString(fmt.Sprintf(
			"• #%d %s @ %s — %s of %s left, realized %s\n",
			lot.LotID, lot.Strategy, money(lot.BuyPrice),
			lot.RemainingShares.String(), lot.TotalShares.String(), money(lot.RealizedPL),
		))

		if open {
			label := fmt.Sprintf("Sell #%d (%s @ %s)", lot.LotID, lot.Strategy, lot.BuyPrice.StringFixed(2))
			rows = append(rows, markup.Row(markup.Data(label, tgCallback.Sell, lotID)))
		} else {
			rows = append(rows, markup.Row(markup.Data(fmt.Sprintf("Delete empty #%d", lot.LotID), tgCallback.DeleteLot, lotID)))
		}
	}

	if len(lots) == 0 {
		sb.WriteString("no lots yet\n")
	}

	markup.Inline(rows...)

	return sb.String(), markup
}

// PortfolioOverviewResponse renders the portfolio totals.
func PortfolioOverviewResponse(ov model.PortfolioOverview) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("💼 Portfolio (%d stocks)\n\n", len(ov.Stocks)))
	sb.WriteString(fmt.Sprintf("Tied up: %s\n", money(ov.TotalTiedUp)))
	sb.WriteString(fmt.Sprintf("At risk: %s\n", money(ov.TotalRisk)))
	sb.WriteString(fmt.Sprintf("Realized P/L: %s\n", money(ov.TotalRealized)))
	sb.WriteString(fmt.Sprintf("Unrealized P/L: %s\n", nullMoney(ov.TotalUnrealized)))
	sb.WriteString(fmt.Sprintf("Dividend + lending income: %s\n", money(ov.TotalIncome)))
	sb.WriteString(fmt.Sprintf("Combined P/L: %s\n", nullMoney(ov.CombinedPL)))
	sb.WriteString(fmt.Sprintf("Market value: %s\n", nullMoney(ov.MarketValue)))
	sb.WriteString(fmt.Sprintf("ROIC: %s\n", nullPct(ov.ROIC)))

	if len(ov.MissingPrices) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ no price for: %s\n", strings.Join(ov.MissingPrices, ", ")))
	}

	return sb.String()
}
