package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEvent struct {
	EventID         int64               `db:"event_id"`
	StockID         int64               `db:"stock_id"`
	Kind            string              `db:"kind"`
	EventDate       time.Time           `db:"event_date"`
	Price           decimal.Decimal     `db:"price"`
	Quantity        decimal.Decimal     `db:"quantity"`
	Investment      decimal.Decimal     `db:"investment"`
	Assignment      string              `db:"assignment"`
	SwingShares     decimal.Decimal     `db:"swing_shares"`
	HoldShares      decimal.Decimal     `db:"hold_shares"`
	DropTarget      decimal.NullDecimal `db:"drop_target"`
	TpTarget        decimal.NullDecimal `db:"tp_target"`
	LotID           int64               `db:"lot_id"`
	Strategy        string              `db:"strategy"`
	Profit          decimal.NullDecimal `db:"profit"`
	ProfitPct       decimal.NullDecimal `db:"profit_pct"`
	Amount          decimal.Decimal     `db:"amount"`
	SplitMultiplier decimal.Decimal     `db:"split_multiplier"`
	SplitApplied    bool                `db:"split_applied"`
	CreatedAt       time.Time           `db:"dt_create"`
}
