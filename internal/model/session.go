package model

type SessionState int

const (
	DefaultState SessionState = iota
	ExpectingNewStockParams
	ExpectingBuyParams
	ExpectingSellParams
	ExpectingDividendAmount
	ExpectingLendingAmount
	ExpectingSplitMultiplier
)

// Session is the per-chat Telegram conversation state.
type Session struct {
	State   SessionState
	StockID int64
	Symbol  string
	LotID   int64 // set while a sell flow waits for its parameters
}
