package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/session"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/converter/telebotConverter"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/service"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/wallet"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg = "something went wrong, try again later"
	dateLayout     = "2006-01-02"
)

type WalletService interface {
	AddStock(ctx context.Context, stock model.Stock) (stockID int64, err error)
	GetStock(ctx context.Context, stockID int64) (model.Stock, error)
	GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error)
	GetStocks(ctx context.Context) ([]model.Stock, error)
	GetLot(ctx context.Context, lotID int64) (model.Lot, error)
	GetLots(ctx context.Context, stockID int64) ([]model.Lot, error)

	RecordBuy(ctx context.Context, stockID int64, date time.Time, price, investment decimal.Decimal, assignment model.Assignment) (model.LedgerEvent, []wallet.Warning, error)
	RecordSell(ctx context.Context, stockID, lotID int64, date time.Time, price, qty decimal.Decimal) (model.LedgerEvent, error)
	RecordDividend(ctx context.Context, stockID int64, date time.Time, amount decimal.Decimal) (model.LedgerEvent, error)
	RecordLendingPayment(ctx context.Context, stockID int64, date time.Time, amount decimal.Decimal) (model.LedgerEvent, error)
	RecordStockSplit(ctx context.Context, stockID int64, date time.Time, multiplier decimal.Decimal) (model.LedgerEvent, error)
	DeleteEmptyLot(ctx context.Context, stockID, lotID int64) error

	StockOverview(ctx context.Context, stockID int64) (model.StockOverview, error)
	PortfolioOverview(ctx context.Context) (model.PortfolioOverview, error)
	ExportPortfolioReport(ctx context.Context) (downloadLink string, err error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	cfg           *config.Config
	walletService WalletService
	session       Session
}

func NewController(cfg *config.Config, walletService WalletService, session Session) *Controller {
	return &Controller{
		cfg:           cfg,
		walletService: walletService,
		session:       session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	return c.Send(strings.Join([]string{
		"Commands:",
		"/stocks — tracked stocks",
		"/stock <SYMBOL> — position overview",
		"/addstock — track a new stock",
		"/portfolio — portfolio totals",
		"/report — XLSX report link",
	}, "\n"))
}

func (ctrl *Controller) Stocks(c tele.Context) error {
	return ctrl.stocksPage(c, 0)
}

func (ctrl *Controller) StocksPage(c tele.Context) error {
	page, err := strconv.Atoi(callbackPayload(c))
	if err != nil {
		return c.Send(internalErrMsg)
	}
	return ctrl.stocksPage(c, page)
}

func (ctrl *Controller) stocksPage(c tele.Context, page int) error {
	ctx := utils.CreateCtxWithRqID(c)

	stocks, err := ctrl.walletService.GetStocks(ctx)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	perPage := ctrl.cfg.StocksPerPage
	if perPage <= 0 {
		perPage = 10
	}

	text, markup := telebotConverter.StocksListResponse(stocks, page, perPage)
	if c.Callback() != nil {
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

// ShowStockCommand handles "/stock SYMBOL".
func (ctrl *Controller) ShowStockCommand(c tele.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Message().Payload))
	if symbol == "" {
		return c.Send("usage: /stock SYMBOL")
	}
	return ctrl.showStock(c, symbol)
}

// ShowStock handles the stock button from the list.
func (ctrl *Controller) ShowStock(c tele.Context) error {
	return ctrl.showStock(c, callbackPayload(c))
}

func (ctrl *Controller) showStock(c tele.Context, symbol string) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	stock, err := ctrl.walletService.GetStockBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send(fmt.Sprintf("%s is not tracked, add it with /addstock", symbol))
		}
		return c.Send(internalErrMsg)
	}

	overview, err := ctrl.walletService.StockOverview(ctx, stock.StockID)
	if err != nil {
		slog.Error("got error from walletService.StockOverview", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if err := ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.State = model.DefaultState
		s.StockID = stock.StockID
		s.Symbol = stock.Symbol
	}); err != nil {
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.StockOverviewResponse(overview)
	return c.Send(text, markup)
}

func (ctrl *Controller) InitAddStock(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if err := ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.State = model.ExpectingNewStockParams
	}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send("Enter: SYMBOL;name;swing ratio %;price drop %;swing TP %;hold TP %;commission %;risk budget")
}

func (ctrl *Controller) ProcessAddStock(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	defer ctrl.resetState(ctx, c)

	stock, err := parseNewStockParams(c.Message().Text)
	if err != nil {
		return c.Send(err.Error())
	}

	if _, err := ctrl.walletService.AddStock(ctx, stock); err != nil {
		slog.Error("got error from walletService.AddStock", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return ctrl.showStock(c, stock.Symbol)
}

func (ctrl *Controller) InitBuy(c tele.Context) error {
	return ctrl.initFlow(c, model.ExpectingBuyParams, "Enter: date price investment [swing|hold|ratio]\ne.g. 2026-08-28 100.50 1000 ratio")
}

func (ctrl *Controller) ProcessBuy(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	defer ctrl.resetState(ctx, c)

	fields := strings.Fields(c.Message().Text)
	if len(fields) < 3 {
		return c.Send("expected: date price investment [swing|hold|ratio]")
	}

	date, err := time.Parse(dateLayout, fields[0])
	if err != nil {
		return c.Send("date must look like 2026-08-28")
	}
	price, err := decimal.NewFromString(fields[1])
	if err != nil {
		return c.Send("can't read the price")
	}
	investment, err := decimal.NewFromString(fields[2])
	if err != nil {
		return c.Send("can't read the investment")
	}
	assignment := model.AssignRatio
	if len(fields) > 3 {
		switch fields[3] {
		case "swing":
			assignment = model.AssignSwing
		case "hold":
			assignment = model.AssignHold
		case "ratio":
			assignment = model.AssignRatio
		default:
			return c.Send("assignment must be swing, hold or ratio")
		}
	}

	ev, warnings, err := ctrl.walletService.RecordBuy(ctx, chatSession.StockID, date, price, investment, assignment)
	if err != nil {
		var vErr *wallet.ValidationError
		if errors.As(err, &vErr) {
			return c.Send(vErr.Error())
		}
		slog.Error("got error from walletService.RecordBuy", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	msg := fmt.Sprintf("Bought %s shares (%s swing / %s hold) @ $%s",
		ev.Quantity, ev.SwingShares, ev.HoldShares, ev.Price.StringFixed(2))
	if err := c.Send(msg + warningLines(warnings)); err != nil {
		return err
	}
	return ctrl.showStock(c, chatSession.Symbol)
}

// ShowLots lists the lots of a stock so the user can pick one to sell or
// delete.
func (ctrl *Controller) ShowLots(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	stockID, err := strconv.ParseInt(callbackPayload(c), 10, 64)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	stock, err := ctrl.walletService.GetStock(ctx, stockID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lots, err := ctrl.walletService.GetLots(ctx, stockID)
	if err != nil {
		slog.Error("got error from walletService.GetLots", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.LotsResponse(stock.Symbol, lots)
	return c.Send(text, markup)
}

func (ctrl *Controller) InitSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	lotID, err := strconv.ParseInt(callbackPayload(c), 10, 64)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.walletService.GetLot(ctx, lotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("that lot no longer exists")
		}
		return c.Send(internalErrMsg)
	}

	stock, err := ctrl.walletService.GetStock(ctx, lot.StockID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err := ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.State = model.ExpectingSellParams
		s.StockID = lot.StockID
		s.Symbol = stock.Symbol
		s.LotID = lotID
	}); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf("Selling from lot #%d (%s @ $%s, %s left).\nEnter: date price quantity",
		lot.LotID, lot.Strategy, lot.BuyPrice.StringFixed(2), lot.RemainingShares))
}

func (ctrl *Controller) ProcessSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	defer ctrl.resetState(ctx, c)

	fields := strings.Fields(c.Message().Text)
	if len(fields) != 3 {
		return c.Send("expected: date price quantity")
	}

	date, err := time.Parse(dateLayout, fields[0])
	if err != nil {
		return c.Send("date must look like 2026-08-28")
	}
	price, err := decimal.NewFromString(fields[1])
	if err != nil {
		return c.Send("can't read the price")
	}
	qty, err := decimal.NewFromString(fields[2])
	if err != nil {
		return c.Send("can't read the quantity")
	}

	ev, err := ctrl.walletService.RecordSell(ctx, chatSession.StockID, chatSession.LotID, date, price, qty)
	if err != nil {
		if errors.Is(err, wallet.ErrOverdrawnLot) {
			return c.Send("the lot doesn't hold that many shares")
		}
		var vErr *wallet.ValidationError
		if errors.As(err, &vErr) {
			return c.Send(vErr.Error())
		}
		slog.Error("got error from walletService.RecordSell", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	msg := fmt.Sprintf("Sold %s @ $%s, profit $%s", ev.Quantity, ev.Price.StringFixed(2), ev.Profit.Decimal.StringFixed(2))
	if err := c.Send(msg); err != nil {
		return err
	}
	return ctrl.showStock(c, chatSession.Symbol)
}

func (ctrl *Controller) InitDividend(c tele.Context) error {
	return ctrl.initFlow(c, model.ExpectingDividendAmount, "Enter: date amount\ne.g. 2026-08-28 12.34")
}

func (ctrl *Controller) ProcessDividend(c tele.Context) error {
	return ctrl.processIncome(c, "dividend", ctrl.walletService.RecordDividend)
}

func (ctrl *Controller) InitLending(c tele.Context) error {
	return ctrl.initFlow(c, model.ExpectingLendingAmount, "Enter: date amount\ne.g. 2026-08-28 1.23")
}

func (ctrl *Controller) ProcessLending(c tele.Context) error {
	return ctrl.processIncome(c, "lending payment", ctrl.walletService.RecordLendingPayment)
}

func (ctrl *Controller) processIncome(
	c tele.Context,
	label string,
	record func(ctx context.Context, stockID int64, date time.Time, amount decimal.Decimal) (model.LedgerEvent, error),
) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	defer ctrl.resetState(ctx, c)

	fields := strings.Fields(c.Message().Text)
	if len(fields) != 2 {
		return c.Send("expected: date amount")
	}

	date, err := time.Parse(dateLayout, fields[0])
	if err != nil {
		return c.Send("date must look like 2026-08-28")
	}
	amount, err := decimal.NewFromString(fields[1])
	if err != nil {
		return c.Send("can't read the amount")
	}

	ev, err := record(ctx, chatSession.StockID, date, amount)
	if err != nil {
		slog.Error("got error recording income", slog.String("rqID", rqID), slog.String("kind", label), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf("Recorded %s of $%s for %s", label, ev.Amount.StringFixed(2), chatSession.Symbol))
}

func (ctrl *Controller) InitSplit(c tele.Context) error {
	return ctrl.initFlow(c, model.ExpectingSplitMultiplier, "Enter: date multiplier\ne.g. 2026-08-28 4 for a 4-for-1 split")
}

func (ctrl *Controller) ProcessSplit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	defer ctrl.resetState(ctx, c)

	fields := strings.Fields(c.Message().Text)
	if len(fields) != 2 {
		return c.Send("expected: date multiplier")
	}

	date, err := time.Parse(dateLayout, fields[0])
	if err != nil {
		return c.Send("date must look like 2026-08-28")
	}
	multiplier, err := decimal.NewFromString(fields[1])
	if err != nil {
		return c.Send("can't read the multiplier")
	}

	if _, err := ctrl.walletService.RecordStockSplit(ctx, chatSession.StockID, date, multiplier); err != nil {
		var vErr *wallet.ValidationError
		if errors.As(err, &vErr) {
			return c.Send(vErr.Error())
		}
		slog.Error("got error from walletService.RecordStockSplit", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if err := c.Send(fmt.Sprintf("Applied %s-for-1 split to %s", multiplier, chatSession.Symbol)); err != nil {
		return err
	}
	return ctrl.showStock(c, chatSession.Symbol)
}

func (ctrl *Controller) DeleteLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	lotID, err := strconv.ParseInt(callbackPayload(c), 10, 64)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.walletService.GetLot(ctx, lotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("that lot no longer exists")
		}
		return c.Send(internalErrMsg)
	}

	if err := ctrl.walletService.DeleteEmptyLot(ctx, lot.StockID, lotID); err != nil {
		var vErr *wallet.ValidationError
		if errors.As(err, &vErr) {
			return c.Send(vErr.Error())
		}
		slog.Error("got error from walletService.DeleteEmptyLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf("Deleted empty lot #%d", lotID))
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	overview, err := ctrl.walletService.PortfolioOverview(ctx)
	if err != nil {
		slog.Error("got error from walletService.PortfolioOverview", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.PortfolioOverviewResponse(overview))
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := c.Send("building the report..."); err != nil {
		return err
	}

	link, err := ctrl.walletService.ExportPortfolioReport(ctx)
	if err != nil {
		slog.Error("got error from walletService.ExportPortfolioReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("report ready: " + link)
}

// initFlow is the common "callback starts a guided input" step: remember
// the stock from the callback payload and arm the expected state.
func (ctrl *Controller) initFlow(c tele.Context, state model.SessionState, prompt string) error {
	ctx := utils.CreateCtxWithRqID(c)

	stockID, err := strconv.ParseInt(callbackPayload(c), 10, 64)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	stock, err := ctrl.walletService.GetStock(ctx, stockID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("that stock no longer exists")
		}
		return c.Send(internalErrMsg)
	}

	if err := ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.State = state
		s.StockID = stockID
		s.Symbol = stock.Symbol
	}); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(prompt)
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) updateSession(ctx context.Context, c tele.Context, mutate func(*model.Session)) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	strChatID := strconv.FormatInt(c.Chat().ID, 10)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}

	mutate(&chatSession)

	if err := ctrl.session.SetSession(ctx, strChatID, chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}
	return nil
}

func (ctrl *Controller) resetState(ctx context.Context, c tele.Context) {
	_ = ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.State = model.DefaultState
		s.LotID = 0
	})
}

// callbackPayload extracts the payload set after the verb in the callback
// data (the bot router stores it under "cbData").
func callbackPayload(c tele.Context) string {
	payload, _ := c.Get("cbData").(string)
	return payload
}

func parseNewStockParams(text string) (model.Stock, error) {
	parts := strings.Split(text, ";")
	if len(parts) != 8 {
		return model.Stock{}, errors.New("expected 8 fields: SYMBOL;name;swing ratio %;price drop %;swing TP %;hold TP %;commission %;risk budget")
	}

	stock := model.Stock{
		Symbol: strings.ToUpper(strings.TrimSpace(parts[0])),
		Name:   strings.TrimSpace(parts[1]),
	}
	if stock.Symbol == "" {
		return model.Stock{}, errors.New("symbol must not be empty")
	}

	fields := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"swing ratio", &stock.SwingRatioPct},
		{"price drop", &stock.PriceDropPct},
		{"swing TP", &stock.SwingTpPct},
		{"hold TP", &stock.HoldTpPct},
		{"commission", &stock.CommissionPct},
		{"risk budget", &stock.RiskBudget},
	}
	for i, f := range fields {
		d, err := decimal.NewFromString(strings.TrimSpace(parts[i+2]))
		if err != nil {
			return model.Stock{}, fmt.Errorf("can't read the %s value", f.name)
		}
		*f.dst = d
	}

	return stock, nil
}

func warningLines(warnings []wallet.Warning) string {
	var sb strings.Builder
	for _, w := range warnings {
		sb.WriteString("\n⚠️ " + w.Message)
	}
	return sb.String()
}
