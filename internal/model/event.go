package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Strategy string

const (
	StrategySwing Strategy = "swing"
	StrategyHold  Strategy = "hold"
)

type EventKind string

const (
	EventBuy            EventKind = "buy"
	EventSell           EventKind = "sell"
	EventDividend       EventKind = "dividend"
	EventLendingPayment EventKind = "slp"
	EventStockSplit     EventKind = "split"
)

// Assignment tells how a buy is distributed between the two strategies.
type Assignment string

const (
	AssignSwing Assignment = "swing"
	AssignHold  Assignment = "hold"
	AssignRatio Assignment = "ratio" // split by the stock's SwingRatioPct
)

// LedgerEvent is an immutable record of something that happened to a
// position. Fields are populated per Kind; the rest stay zero.
type LedgerEvent struct {
	EventID int64
	StockID int64
	Kind    EventKind
	Date    time.Time

	// buy / sell
	Price    decimal.Decimal
	Quantity decimal.Decimal // buy: derived total; sell: quantity sold

	// buy
	Investment  decimal.Decimal
	Assignment  Assignment
	SwingShares decimal.Decimal
	HoldShares  decimal.Decimal
	DropTarget  decimal.NullDecimal
	TpTarget    decimal.NullDecimal

	// sell
	LotID     int64 // the lot this sale draws down
	Strategy  Strategy
	Profit    decimal.NullDecimal
	ProfitPct decimal.NullDecimal

	// dividend / stock-lending payment
	Amount decimal.Decimal

	// stock split
	SplitMultiplier decimal.Decimal
	SplitApplied    bool // lots already permanently adjusted for this split
}
