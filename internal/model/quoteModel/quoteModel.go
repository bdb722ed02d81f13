package quoteModel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is what the price feed returns for one symbol. Price is null when
// the feed has no current value (stale instrument, market closed for a new
// listing, feed outage) — callers must treat that as "unavailable", never
// as zero.
type Quote struct {
	Symbol    string              `json:"symbol"`
	Price     decimal.NullDecimal `json:"price"`
	Closes    []DailyClose        `json:"closes"`
	FetchedAt time.Time           `json:"fetchedAt"`
}

type DailyClose struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Close decimal.Decimal `json:"close"`
}
