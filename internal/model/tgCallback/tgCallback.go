// Package tgCallback holds the callback-data verbs routed by the bot.
// Payloads follow the verb after a pipe, e.g. "stock|AAPL".
package tgCallback

const (
	Stock      = "stock"
	StocksPage = "stockspage"
	Buy        = "buy"
	SellLots   = "selllots"
	Sell       = "sell"
	Dividend   = "dividend"
	Lending    = "lending"
	Split      = "split"
	DeleteLot  = "dellot"
)
