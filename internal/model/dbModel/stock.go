package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stock struct {
	StockID       int64           `db:"stock_id"`
	Symbol        string          `db:"symbol"`
	Name          string          `db:"name"`
	SwingRatioPct decimal.Decimal `db:"swing_ratio_pct"`
	PriceDropPct  decimal.Decimal `db:"price_drop_pct"`
	SwingTpPct    decimal.Decimal `db:"swing_tp_pct"`
	HoldTpPct     decimal.Decimal `db:"hold_tp_pct"`
	CommissionPct decimal.Decimal `db:"commission_pct"`
	RiskBudget    decimal.Decimal `db:"risk_budget"`
	OutOfPocket   decimal.Decimal `db:"out_of_pocket"`
	CashBalance   decimal.Decimal `db:"cash_balance"`
	Archived      bool            `db:"archived"`
	CreatedAt     time.Time       `db:"dt_create"`
}
