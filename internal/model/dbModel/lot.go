package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Lot struct {
	LotID           int64               `db:"lot_id"`
	StockID         int64               `db:"stock_id"`
	Strategy        string              `db:"strategy"`
	BuyPrice        decimal.Decimal     `db:"buy_price"`
	TotalShares     decimal.Decimal     `db:"total_shares"`
	TotalInvestment decimal.Decimal     `db:"total_investment"`
	SharesSold      decimal.Decimal     `db:"shares_sold"`
	RemainingShares decimal.Decimal     `db:"remaining_shares"`
	RealizedPL      decimal.Decimal     `db:"realized_pl"`
	RealizedPLPct   decimal.Decimal     `db:"realized_pl_pct"`
	TpValue         decimal.NullDecimal `db:"tp_value"`
	SellTxnCount    int                 `db:"sell_txn_count"`
	CreatedAt       time.Time           `db:"dt_create"`
}
