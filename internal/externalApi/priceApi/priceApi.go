package priceApi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/externalApi"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/quoteModel"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/shopspring/decimal"
)

type PriceApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *PriceApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.PriceApi.Url)
	return &PriceApi{client: client}
}

type rawQuote struct {
	Symbol string              `json:"symbol"`
	Price  decimal.NullDecimal `json:"price"`
	Closes []rawClose          `json:"closes"`
}

type rawClose struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

func (a *PriceApi) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start PriceApi.GetQuote request", slog.String("rqID", rqID), slog.String("symbol", symbol))

	quotes, err := a.fetch(ctx, []string{symbol})
	if err != nil {
		return quoteModel.Quote{}, err
	}

	if len(quotes) == 0 {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	slog.Debug("PriceApi.GetQuote request complete", slog.String("rqID", rqID))

	return quotes[0], nil
}

func (a *PriceApi) GetQuotes(ctx context.Context, symbols []string) ([]quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start PriceApi.GetQuotes request", slog.String("rqID", rqID), slog.Int("symbols", len(symbols)))

	quotes, err := a.fetch(ctx, symbols)
	if err != nil {
		return nil, err
	}

	slog.Debug("PriceApi.GetQuotes request complete", slog.String("rqID", rqID))

	return quotes, nil
}

func (a *PriceApi) fetch(ctx context.Context, symbols []string) ([]quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/v1/quotes"
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing PriceApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	var raw []rawQuote
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshall PriceApi response", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	fetchedAt := time.Now()
	quotes := make([]quoteModel.Quote, 0, len(raw))
	for _, r := range raw {
		quote := quoteModel.Quote{
			Symbol:    r.Symbol,
			Price:     r.Price, // stays null when the feed has no price, never coerced to zero
			FetchedAt: fetchedAt,
		}
		for _, c := range r.Closes {
			quote.Closes = append(quote.Closes, quoteModel.DailyClose{Date: c.Date, Close: c.Close})
		}
		quotes = append(quotes, quote)
	}

	return quotes, nil
}
