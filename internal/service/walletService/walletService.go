package walletService

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/repository"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/externalApi"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/quoteModel"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/service"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/wallet"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/shopspring/decimal"
)

type Repository interface {
	CreateStock(ctx context.Context, stock model.Stock) (stockID int64, err error)
	GetStock(ctx context.Context, stockID int64) (model.Stock, error)
	GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error)
	GetStocks(ctx context.Context, includeArchived bool) ([]model.Stock, error)
	UpdateStock(ctx context.Context, stock model.Stock) error
	UpdateStockCash(ctx context.Context, stockID int64, outOfPocket, cashBalance decimal.Decimal) error
	ArchiveStock(ctx context.Context, stockID int64) error

	CreateEvent(ctx context.Context, ev model.LedgerEvent) (eventID int64, err error)
	GetEvent(ctx context.Context, eventID int64) (model.LedgerEvent, error)
	GetEventsPage(ctx context.Context, stockID int64, limit, offset int) ([]model.LedgerEvent, error)
	UpdateEvent(ctx context.Context, ev model.LedgerEvent) error
	DeleteEvent(ctx context.Context, eventID int64) error
	MarkSplitApplied(ctx context.Context, eventID int64) error

	CreateLot(ctx context.Context, lot model.Lot) (lotID int64, err error)
	GetLot(ctx context.Context, lotID int64) (model.Lot, error)
	GetLots(ctx context.Context, stockID int64) ([]model.Lot, error)
	UpdateLot(ctx context.Context, lot model.Lot) error
	DeleteLot(ctx context.Context, lotID int64) error
}

type Cache interface {
	SetQuotes(ctx context.Context, quotes []quoteModel.Quote) error
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]quoteModel.Quote, error)
}

type PriceApi interface {
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) ([]quoteModel.Quote, error)
}

type ReportGenerator interface {
	GeneratePortfolioReport(ctx context.Context, overview model.PortfolioOverview) (file io.Reader, filename string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

// WalletService orchestrates the lot engine against the store, the quote
// cache and the price feed. All lot mutations for one stock run under that
// stock's mutex; reads are lock-free.
type WalletService struct {
	repo         Repository
	cache        Cache
	priceApi     PriceApi
	reportGen    ReportGenerator
	cloudStorage CloudStorage
	cfg          *config.Config

	stockLocks sync.Map // stockID -> *sync.Mutex
}

func New(
	repo Repository,
	cache Cache,
	priceApi PriceApi,
	reportGen ReportGenerator,
	cloudStorage CloudStorage,
	cfg *config.Config,
) *WalletService {
	return &WalletService{
		repo:         repo,
		cache:        cache,
		priceApi:     priceApi,
		reportGen:    reportGen,
		cloudStorage: cloudStorage,
		cfg:          cfg,
	}
}

func (s *WalletService) lockStock(stockID int64) func() {
	v, _ := s.stockLocks.LoadOrStore(stockID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *WalletService) AddStock(ctx context.Context, stock model.Stock) (stockID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.AddStock"

	slog.Debug("AddStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", stock.Symbol))
	defer func() {
		slog.Debug("AddStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", stock.Symbol))
	}()

	stockID, err = s.repo.CreateStock(ctx, stock)
	if err != nil {
		slog.Error("got error from repo.CreateStock", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	return stockID, nil
}

func (s *WalletService) GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.GetStockBySymbol"

	stock, err := s.repo.GetStockBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Stock{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetStockBySymbol", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Stock{}, err
	}
	return stock, nil
}

func (s *WalletService) GetStock(ctx context.Context, stockID int64) (model.Stock, error) {
	return s.getStock(ctx, stockID)
}

// GetLot returns one lot by ID.
func (s *WalletService) GetLot(ctx context.Context, lotID int64) (model.Lot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.GetLot"

	lot, err := s.repo.GetLot(ctx, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Lot{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetLot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Lot{}, err
	}
	return lot, nil
}

// GetLots lists a stock's lots, open and sold-out alike.
func (s *WalletService) GetLots(ctx context.Context, stockID int64) ([]model.Lot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.GetLots"

	lots, err := s.repo.GetLots(ctx, stockID)
	if err != nil {
		slog.Error("got error from repo.GetLots", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	return lots, nil
}

func (s *WalletService) GetStocks(ctx context.Context) ([]model.Stock, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.GetStocks"

	stocks, err := s.repo.GetStocks(ctx, false)
	if err != nil {
		slog.Error("got error from repo.GetStocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	return stocks, nil
}

// RecordBuy persists a buy event and contributes its shares to the matching
// lots. The investment is split between the strategies per the assignment;
// the rounding residual lands on the hold leg so the legs always sum to the
// derived total.
func (s *WalletService) RecordBuy(
	ctx context.Context,
	stockID int64,
	date time.Time,
	price, investment decimal.Decimal,
	assignment model.Assignment,
) (ev model.LedgerEvent, warnings []wallet.Warning, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.RecordBuy"

	slog.Debug("RecordBuy start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	defer func() {
		slog.Debug("RecordBuy finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	}()

	unlock := s.lockStock(stockID)
	defer unlock()

	stock, err := s.getStock(ctx, stockID)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}
	if stock.Archived {
		return model.LedgerEvent{}, nil, service.ErrStockArchived
	}

	swing, hold, total, warnings, err := splitBuyShares(stock, price, investment, assignment)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	ev = model.LedgerEvent{
		StockID:     stockID,
		Kind:        model.EventBuy,
		Date:        date,
		Price:       wallet.RoundTarget(price),
		Quantity:    total,
		Investment:  wallet.RoundCurrency(investment),
		Assignment:  assignment,
		SwingShares: swing,
		HoldShares:  hold,
	}
	if stock.PriceDropPct.IsPositive() {
		ev.DropTarget = decimal.NewNullDecimal(wallet.DropBuyTarget(price, stock.PriceDropPct, stock.CommissionPct))
	}
	swingTp := wallet.TakeProfitTarget(price, stock.SwingTpPct, stock.CommissionPct)
	holdTp := wallet.TakeProfitTarget(price, stock.HoldTpPct, stock.CommissionPct)
	if swing.IsPositive() {
		ev.TpTarget = decimal.NewNullDecimal(swingTp)
	} else {
		ev.TpTarget = decimal.NewNullDecimal(holdTp)
	}

	pool, err := s.loadPool(ctx, stockID)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	swingInv, holdInv := legInvestments(ev.Investment, swing, total)
	if swing.IsPositive() {
		if _, err = pool.Contribute(model.StrategySwing, price, swing, swingInv, decimal.NewNullDecimal(swingTp)); err != nil {
			return model.LedgerEvent{}, nil, err
		}
	}
	if hold.IsPositive() {
		if _, err = pool.Contribute(model.StrategyHold, price, hold, holdInv, decimal.NewNullDecimal(holdTp)); err != nil {
			return model.LedgerEvent{}, nil, err
		}
	}

	ev.EventID, err = s.repo.CreateEvent(ctx, ev)
	if err != nil {
		slog.Error("got error from repo.CreateEvent", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LedgerEvent{}, nil, err
	}

	if err = s.persistPoolChanges(ctx, pool); err != nil {
		return model.LedgerEvent{}, nil, err
	}

	return ev, append(warnings, pool.Warnings()...), nil
}

// RecordSell draws qty shares out of one lot at price and persists the sell
// event with its per-sale profit.
func (s *WalletService) RecordSell(
	ctx context.Context,
	stockID, lotID int64,
	date time.Time,
	price, qty decimal.Decimal,
) (ev model.LedgerEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.RecordSell"

	slog.Debug("RecordSell start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID), slog.Int64("lotID", lotID))
	defer func() {
		slog.Debug("RecordSell finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	}()

	unlock := s.lockStock(stockID)
	defer unlock()

	stock, err := s.getStock(ctx, stockID)
	if err != nil {
		return model.LedgerEvent{}, err
	}

	pool, err := s.loadPool(ctx, stockID)
	if err != nil {
		return model.LedgerEvent{}, err
	}

	res, err := pool.ApplySale(lotID, qty, price, stock.CommissionPct)
	if err != nil {
		return model.LedgerEvent{}, err
	}

	lot, _ := pool.Lot(lotID)
	ev = model.LedgerEvent{
		StockID:   stockID,
		Kind:      model.EventSell,
		Date:      date,
		Price:     wallet.RoundTarget(price),
		Quantity:  wallet.RoundShares(qty),
		LotID:     lotID,
		Strategy:  lot.Strategy,
		Profit:    decimal.NewNullDecimal(res.Profit),
		ProfitPct: res.ProfitPct,
	}

	ev.EventID, err = s.repo.CreateEvent(ctx, ev)
	if err != nil {
		slog.Error("got error from repo.CreateEvent", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LedgerEvent{}, err
	}

	if err = s.persistPoolChanges(ctx, pool); err != nil {
		return model.LedgerEvent{}, err
	}

	return ev, nil
}

// RecordDividend books dividend income. No lot interaction.
func (s *WalletService) RecordDividend(ctx context.Context, stockID int64, date time.Time, amount decimal.Decimal) (model.LedgerEvent, error) {
	return s.recordIncome(ctx, stockID, model.EventDividend, date, amount)
}

// RecordLendingPayment books stock-lending income. No lot interaction.
func (s *WalletService) RecordLendingPayment(ctx context.Context, stockID int64, date time.Time, amount decimal.Decimal) (model.LedgerEvent, error) {
	return s.recordIncome(ctx, stockID, model.EventLendingPayment, date, amount)
}

func (s *WalletService) recordIncome(ctx context.Context, stockID int64, kind model.EventKind, date time.Time, amount decimal.Decimal) (ev model.LedgerEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.recordIncome"

	slog.Debug("recordIncome start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID), slog.String("kind", string(kind)))
	defer func() {
		slog.Debug("recordIncome finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	}()

	if _, err = s.getStock(ctx, stockID); err != nil {
		return model.LedgerEvent{}, err
	}

	ev = model.LedgerEvent{
		StockID: stockID,
		Kind:    kind,
		Date:    date,
		Amount:  wallet.RoundCurrency(amount),
	}

	ev.EventID, err = s.repo.CreateEvent(ctx, ev)
	if err != nil {
		slog.Error("got error from repo.CreateEvent", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LedgerEvent{}, err
	}

	return ev, nil
}

// RecordStockSplit books a split event and permanently restates every lot.
// The event's applied marker is set after the lots are written, so a crash
// in between leaves an unapplied event rather than double-adjusted lots.
func (s *WalletService) RecordStockSplit(ctx context.Context, stockID int64, date time.Time, multiplier decimal.Decimal) (ev model.LedgerEvent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.RecordStockSplit"

	slog.Debug("RecordStockSplit start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	defer func() {
		slog.Debug("RecordStockSplit finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	}()

	unlock := s.lockStock(stockID)
	defer unlock()

	if _, err = s.getStock(ctx, stockID); err != nil {
		return model.LedgerEvent{}, err
	}

	pool, err := s.loadPool(ctx, stockID)
	if err != nil {
		return model.LedgerEvent{}, err
	}

	if err = pool.ApplyStockSplit(multiplier); err != nil {
		return model.LedgerEvent{}, err
	}

	for _, w := range pool.Warnings() {
		slog.Warn("stock split left the books inconsistent", slog.String("rqID", rqID), slog.String("op", op), slog.String("warning", w.String()))
	}

	ev = model.LedgerEvent{
		StockID:         stockID,
		Kind:            model.EventStockSplit,
		Date:            date,
		SplitMultiplier: wallet.RoundShares(multiplier),
	}

	ev.EventID, err = s.repo.CreateEvent(ctx, ev)
	if err != nil {
		slog.Error("got error from repo.CreateEvent", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LedgerEvent{}, err
	}

	if err = s.persistPoolChanges(ctx, pool); err != nil {
		return model.LedgerEvent{}, err
	}

	if err = s.repo.MarkSplitApplied(ctx, ev.EventID); err != nil {
		slog.Error("got error from repo.MarkSplitApplied", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LedgerEvent{}, err
	}
	ev.SplitApplied = true

	return ev, nil
}

// UpdateBuyEvent edits a buy's date, price or investment and relocates its
// contribution to the matching lots. When a touched lot is committed the lot
// move is refused but the event record is still updated; the caller gets a
// wallet-not-updated warning and the books need manual reconciliation.
func (s *WalletService) UpdateBuyEvent(
	ctx context.Context,
	eventID int64,
	date time.Time,
	price, investment decimal.Decimal,
) (ev model.LedgerEvent, warnings []wallet.Warning, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.UpdateBuyEvent"

	slog.Debug("UpdateBuyEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("eventID", eventID))
	defer func() {
		slog.Debug("UpdateBuyEvent finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("eventID", eventID))
	}()

	old, err := s.getEvent(ctx, eventID, model.EventBuy)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	unlock := s.lockStock(old.StockID)
	defer unlock()

	stock, err := s.getStock(ctx, old.StockID)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	swing, hold, total, warnings, err := splitBuyShares(stock, price, investment, old.Assignment)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	ev = old
	ev.Date = date
	ev.Price = wallet.RoundTarget(price)
	ev.Quantity = total
	ev.Investment = wallet.RoundCurrency(investment)
	ev.SwingShares = swing
	ev.HoldShares = hold
	ev.DropTarget = decimal.NullDecimal{}
	if stock.PriceDropPct.IsPositive() {
		ev.DropTarget = decimal.NewNullDecimal(wallet.DropBuyTarget(price, stock.PriceDropPct, stock.CommissionPct))
	}
	swingTp := wallet.TakeProfitTarget(price, stock.SwingTpPct, stock.CommissionPct)
	holdTp := wallet.TakeProfitTarget(price, stock.HoldTpPct, stock.CommissionPct)
	if swing.IsPositive() {
		ev.TpTarget = decimal.NewNullDecimal(swingTp)
	} else {
		ev.TpTarget = decimal.NewNullDecimal(holdTp)
	}

	pool, err := s.loadPool(ctx, old.StockID)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	events, err := s.allEvents(ctx, old.StockID)
	if err != nil {
		return model.LedgerEvent{}, nil, err
	}

	// The event stores its pre-split figures; lots are in post-split terms.
	// Restate both legs across any splits after their dates so the move
	// lands on the right lots.
	splits := wallet.SplitsFromEvents(events)
	now := time.Now()
	oldPrice, oldSwingShares := splits.Adjust(old.Price, old.SwingShares, old.Date, now)
	_, oldHoldShares := splits.Adjust(old.Price, old.HoldShares, old.Date, now)
	newPrice, newSwingShares := splits.Adjust(ev.Price, swing, date, now)
	_, newHoldShares := splits.Adjust(ev.Price, hold, date, now)

	oldSwingInv, oldHoldInv := legInvestments(old.Investment, old.SwingShares, old.Quantity)
	newSwingInv, newHoldInv := legInvestments(ev.Investment, swing, total)

	poolSwingTp := wallet.TakeProfitTarget(newPrice, stock.SwingTpPct, stock.CommissionPct)
	poolHoldTp := wallet.TakeProfitTarget(newPrice, stock.HoldTpPct, stock.CommissionPct)

	relocErr := relocateLeg(pool, model.StrategySwing, oldPrice, newPrice, oldSwingShares, newSwingShares, oldSwingInv, newSwingInv, decimal.NewNullDecimal(poolSwingTp))
	if relocErr == nil {
		relocErr = relocateLeg(pool, model.StrategyHold, oldPrice, newPrice, oldHoldShares, newHoldShares, oldHoldInv, newHoldInv, decimal.NewNullDecimal(poolHoldTp))
	}

	walletUpdated := true
	if relocErr != nil {
		if !errors.Is(relocErr, wallet.ErrCommittedLotConflict) && !errors.Is(relocErr, wallet.ErrLotNotFound) {
			return model.LedgerEvent{}, nil, relocErr
		}
		// Soft failure: the lot's basis is frozen by recorded sales. Save
		// the corrected event anyway and tell the caller the wallet was
		// left alone.
		walletUpdated = false
		warnings = append(warnings, wallet.Warning{
			Code:    wallet.WarnWalletNotUpdated,
			Message: relocErr.Error(),
		})
		slog.Warn("buy event updated without wallet relocation", slog.String("rqID", rqID), slog.String("op", op), slog.String("reason", relocErr.Error()))
	}

	if err = s.repo.UpdateEvent(ctx, ev); err != nil {
		slog.Error("got error from repo.UpdateEvent", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LedgerEvent{}, nil, err
	}

	if walletUpdated {
		if err = s.persistPoolChanges(ctx, pool); err != nil {
			return model.LedgerEvent{}, nil, err
		}
		warnings = append(warnings, pool.Warnings()...)
	}

	return ev, warnings, nil
}

// DeleteSellEvent reverses the sale's effect on its lot, then deletes the
// event.
func (s *WalletService) DeleteSellEvent(ctx context.Context, eventID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.DeleteSellEvent"

	slog.Debug("DeleteSellEvent start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("eventID", eventID))
	defer func() {
		slog.Debug("DeleteSellEvent finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("eventID", eventID))
	}()

	ev, err := s.getEvent(ctx, eventID, model.EventSell)
	if err != nil {
		return err
	}

	unlock := s.lockStock(ev.StockID)
	defer unlock()

	stock, err := s.getStock(ctx, ev.StockID)
	if err != nil {
		return err
	}

	pool, err := s.loadPool(ctx, ev.StockID)
	if err != nil {
		return err
	}

	events, err := s.allEvents(ctx, ev.StockID)
	if err != nil {
		return err
	}

	// The lot is in post-split terms; restate the sale across any splits
	// after its date before reversing, or the wrong share count and profit
	// get subtracted.
	price, qty := wallet.SplitsFromEvents(events).Adjust(ev.Price, ev.Quantity, ev.Date, time.Now())

	if err = pool.ReverseSale(ev.LotID, qty, price, stock.CommissionPct); err != nil {
		return err
	}

	if err = s.persistPoolChanges(ctx, pool); err != nil {
		return err
	}

	if err = s.repo.DeleteEvent(ctx, eventID); err != nil {
		slog.Error("got error from repo.DeleteEvent", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// DeleteEmptyLot removes a sold-out lot on explicit request. Lots are never
// cleaned up automatically; their realized history stays visible until the
// user decides otherwise.
func (s *WalletService) DeleteEmptyLot(ctx context.Context, stockID, lotID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.DeleteEmptyLot"

	slog.Debug("DeleteEmptyLot start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("lotID", lotID))
	defer func() {
		slog.Debug("DeleteEmptyLot finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("lotID", lotID))
	}()

	unlock := s.lockStock(stockID)
	defer unlock()

	pool, err := s.loadPool(ctx, stockID)
	if err != nil {
		return err
	}

	if err = pool.Remove(lotID); err != nil {
		return err
	}

	return s.persistPoolChanges(ctx, pool)
}

// StockOverview recomputes the full position view from the ledger, the lots
// and the current quote. Nothing here is persisted.
func (s *WalletService) StockOverview(ctx context.Context, stockID int64) (overview model.StockOverview, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.StockOverview"

	slog.Debug("StockOverview start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	defer func() {
		slog.Debug("StockOverview finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("stockID", stockID))
	}()

	stock, err := s.getStock(ctx, stockID)
	if err != nil {
		return model.StockOverview{}, err
	}

	price := s.currentPrice(ctx, stock.Symbol)

	return s.buildOverview(ctx, stock, price)
}

// PortfolioOverview aggregates per-stock overviews over all active stocks.
// Per-stock totals are plain sums; a held stock without a price voids the
// portfolio's unrealized figures and is reported in MissingPrices.
func (s *WalletService) PortfolioOverview(ctx context.Context) (overview model.PortfolioOverview, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.PortfolioOverview"

	slog.Debug("PortfolioOverview start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("PortfolioOverview finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	stocks, err := s.repo.GetStocks(ctx, false)
	if err != nil {
		slog.Error("got error from repo.GetStocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.PortfolioOverview{}, err
	}

	symbols := make([]string, 0, len(stocks))
	for _, stock := range stocks {
		symbols = append(symbols, stock.Symbol)
	}
	quotes := s.currentPrices(ctx, symbols)

	totalCash := decimal.Zero
	totalOutOfPocket := decimal.Zero
	marketValue := decimal.Zero
	marketValueComplete := true
	unrealized := decimal.Zero
	unrealizedComplete := true

	for _, stock := range stocks {
		stockOverview, err := s.buildOverview(ctx, stock, quotes[stock.Symbol])
		if err != nil {
			return model.PortfolioOverview{}, err
		}
		overview.Stocks = append(overview.Stocks, stockOverview)

		overview.TotalTiedUp = wallet.RoundCurrency(overview.TotalTiedUp.Add(stockOverview.TiedUpInvestment))
		overview.TotalRisk = wallet.RoundCurrency(overview.TotalRisk.Add(stockOverview.RiskInvestment))
		overview.TotalRealized = wallet.RoundCurrency(overview.TotalRealized.Add(stockOverview.Combined.Realized))
		overview.TotalIncome = wallet.RoundCurrency(overview.TotalIncome.Add(stockOverview.Dividends).Add(stockOverview.LendingIncome))

		totalCash = totalCash.Add(stock.CashBalance)
		totalOutOfPocket = totalOutOfPocket.Add(stock.OutOfPocket)

		if stockOverview.OpenLots > 0 && !stockOverview.CurrentPrice.Valid {
			overview.MissingPrices = append(overview.MissingPrices, stock.Symbol)
			marketValueComplete = false
			unrealizedComplete = false
			continue
		}
		if stockOverview.MarketValue.Valid {
			marketValue = marketValue.Add(stockOverview.MarketValue.Decimal)
		}
		if stockOverview.Combined.Unrealized.Valid {
			unrealized = unrealized.Add(stockOverview.Combined.Unrealized.Decimal)
		}
	}

	if marketValueComplete {
		overview.MarketValue = decimal.NewNullDecimal(wallet.RoundCurrency(marketValue))
	}
	if unrealizedComplete {
		overview.TotalUnrealized = decimal.NewNullDecimal(wallet.RoundCurrency(unrealized))
		overview.CombinedPL = decimal.NewNullDecimal(wallet.RoundCurrency(
			overview.TotalRealized.Add(unrealized).Add(overview.TotalIncome)))
	}
	overview.ROIC = wallet.ROIC(totalCash, overview.MarketValue, totalOutOfPocket)

	return overview, nil
}

// ExportPortfolioReport builds the XLSX report, uploads it to cloud storage
// and returns a shareable link.
func (s *WalletService) ExportPortfolioReport(ctx context.Context) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.ExportPortfolioReport"

	slog.Debug("ExportPortfolioReport start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("ExportPortfolioReport finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	overview, err := s.PortfolioOverview(ctx)
	if err != nil {
		return "", err
	}

	file, filename, err := s.reportGen.GeneratePortfolioReport(ctx, overview)
	if err != nil {
		slog.Error("got error from reportGen.GeneratePortfolioReport", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	downloadLink, err = s.cloudStorage.UploadFile(ctx, file, filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return downloadLink, nil
}

// RefreshQuotes pulls fresh quotes for every active symbol into the cache.
// Runs on the scheduler; also callable ad hoc.
func (s *WalletService) RefreshQuotes(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WalletService.RefreshQuotes"

	slog.Debug("RefreshQuotes start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("RefreshQuotes finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	stocks, err := s.repo.GetStocks(ctx, false)
	if err != nil {
		slog.Error("got error from repo.GetStocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if len(stocks) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(stocks))
	for _, stock := range stocks {
		symbols = append(symbols, stock.Symbol)
	}

	quotes, err := s.priceApi.GetQuotes(ctx, symbols)
	if err != nil {
		slog.Error("got error from priceApi.GetQuotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = s.cache.SetQuotes(ctx, quotes); err != nil {
		slog.Error("got error from cache.SetQuotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("quotes refreshed", slog.String("rqID", rqID), slog.Int("symbols", len(symbols)))

	return nil
}

func (s *WalletService) getStock(ctx context.Context, stockID int64) (model.Stock, error) {
	stock, err := s.repo.GetStock(ctx, stockID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Stock{}, service.ErrNotFound
		}
		return model.Stock{}, err
	}
	return stock, nil
}

func (s *WalletService) getEvent(ctx context.Context, eventID int64, kind model.EventKind) (model.LedgerEvent, error) {
	ev, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.LedgerEvent{}, service.ErrNotFound
		}
		return model.LedgerEvent{}, err
	}
	if ev.Kind != kind {
		return model.LedgerEvent{}, service.ErrWrongEventKind
	}
	return ev, nil
}

func (s *WalletService) loadPool(ctx context.Context, stockID int64) (*wallet.Pool, error) {
	lots, err := s.repo.GetLots(ctx, stockID)
	if err != nil {
		return nil, err
	}
	return wallet.NewPool(stockID, lots), nil
}

func (s *WalletService) persistPoolChanges(ctx context.Context, pool *wallet.Pool) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	changes := pool.Changes()

	for _, lot := range changes.Created {
		if _, err := s.repo.CreateLot(ctx, lot); err != nil {
			slog.Error("got error from repo.CreateLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return err
		}
	}
	for _, lot := range changes.Updated {
		if err := s.repo.UpdateLot(ctx, lot); err != nil {
			slog.Error("got error from repo.UpdateLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return err
		}
	}
	for _, lotID := range changes.Removed {
		if err := s.repo.DeleteLot(ctx, lotID); err != nil {
			slog.Error("got error from repo.DeleteLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return err
		}
	}
	return nil
}

// currentPrice resolves a symbol's price from the cache, falling back to the
// feed. Unavailability degrades to a null price; the overview math treats
// that as "not computable", never as zero.
func (s *WalletService) currentPrice(ctx context.Context, symbol string) decimal.NullDecimal {
	rqID := utils.GetRequestIDFromCtx(ctx)

	quote, err := s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote.Price
	}

	quote, err = s.priceApi.GetQuote(ctx, symbol)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("price unavailable", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("err", err.Error()))
		}
		return decimal.NullDecimal{}
	}

	go s.cache.SetQuotes(context.WithoutCancel(ctx), []quoteModel.Quote{quote})

	return quote.Price
}

func (s *WalletService) currentPrices(ctx context.Context, symbols []string) map[string]decimal.NullDecimal {
	rqID := utils.GetRequestIDFromCtx(ctx)

	prices := make(map[string]decimal.NullDecimal, len(symbols))

	cached, err := s.cache.GetQuotes(ctx, symbols)
	if err != nil {
		slog.Warn("quote cache unavailable", slog.String("rqID", rqID), slog.String("err", err.Error()))
		cached = map[string]quoteModel.Quote{}
	}

	var missing []string
	for _, symbol := range symbols {
		if quote, ok := cached[symbol]; ok {
			prices[symbol] = quote.Price
		} else {
			missing = append(missing, symbol)
		}
	}

	if len(missing) == 0 {
		return prices
	}

	fetched, err := s.priceApi.GetQuotes(ctx, missing)
	if err != nil {
		slog.Warn("price feed unavailable", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return prices
	}

	for _, quote := range fetched {
		prices[quote.Symbol] = quote.Price
	}
	go s.cache.SetQuotes(context.WithoutCancel(ctx), fetched)

	return prices
}

func (s *WalletService) buildOverview(ctx context.Context, stock model.Stock, price decimal.NullDecimal) (model.StockOverview, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	lots, err := s.repo.GetLots(ctx, stock.StockID)
	if err != nil {
		slog.Error("got error from repo.GetLots", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.StockOverview{}, err
	}

	events, err := s.allEvents(ctx, stock.StockID)
	if err != nil {
		return model.StockOverview{}, err
	}

	now := time.Now()
	rep := wallet.ComputePL(stock, events, lots, price, now)

	overview := model.StockOverview{
		Stock:        stock,
		CurrentPrice: price,

		Swing:    rep.Swing,
		Hold:     rep.Hold,
		Combined: rep.Combined,

		Dividends:     rep.Dividends,
		LendingIncome: rep.LendingIncome,

		TiedUpInvestment: wallet.TiedUpInvestment(lots),
		RiskInvestment:   wallet.RiskInvestment(stock, lots, price),
		MarketValue:      wallet.MarketValue(lots, price),
	}
	overview.BudgetUsed = wallet.BudgetUsed(stock.OutOfPocket, stock.CashBalance)
	overview.BudgetAvailable = wallet.BudgetAvailable(stock.RiskBudget, overview.BudgetUsed)

	var lastBuy *model.LedgerEvent
	for i, ev := range events {
		switch ev.Kind {
		case model.EventBuy:
			overview.BuyCount++
			lastBuy = &events[i] // events are chronological
		case model.EventSell:
			overview.SellCount++
		}
	}

	// The dip-buy signal compares against the current price, so the last
	// buy's price must be restated across any splits after its date.
	var lastBuyPrice decimal.NullDecimal
	if lastBuy != nil {
		adjPrice, _ := wallet.SplitsFromEvents(events).Adjust(lastBuy.Price, lastBuy.Quantity, lastBuy.Date, now)
		lastBuyPrice = decimal.NewNullDecimal(adjPrice)
	}
	for _, lot := range lots {
		if !wallet.ZeroShares(lot.RemainingShares) {
			overview.OpenLots++
		}
	}

	overview.Signals = wallet.EvaluateSignals(stock, lots, lastBuyPrice, price)

	for _, w := range rep.Warnings {
		overview.Warnings = append(overview.Warnings, w.String())
	}

	return overview, nil
}

func (s *WalletService) allEvents(ctx context.Context, stockID int64) ([]model.LedgerEvent, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	pageSize := s.cfg.EventsPageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var events []model.LedgerEvent
	for offset := 0; ; offset += pageSize {
		page, err := s.repo.GetEventsPage(ctx, stockID, pageSize, offset)
		if err != nil {
			slog.Error("got error from repo.GetEventsPage", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return nil, err
		}
		events = append(events, page...)
		if len(page) < pageSize {
			return events, nil
		}
	}
}

// splitBuyShares derives the per-strategy share quantities for a buy.
func splitBuyShares(stock model.Stock, price, investment decimal.Decimal, assignment model.Assignment) (swing, hold, total decimal.Decimal, warnings []wallet.Warning, err error) {
	switch assignment {
	case model.AssignSwing:
		swing, hold, total, warnings, err = wallet.BuySplit(investment, price, decimal.NewFromInt(100))
	case model.AssignHold:
		swing, hold, total, warnings, err = wallet.BuySplit(investment, price, decimal.Zero)
	default:
		swing, hold, total, warnings, err = wallet.BuySplit(investment, price, stock.SwingRatioPct)
	}
	return swing, hold, total, warnings, err
}

// legInvestments splits a buy's cash proportionally to the swing leg's share
// of the total, residual on the hold leg.
func legInvestments(investment, swingShares, totalShares decimal.Decimal) (swingInv, holdInv decimal.Decimal) {
	if !totalShares.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	swingInv = wallet.RoundCurrency(investment.Mul(swingShares).Div(totalShares))
	holdInv = wallet.RoundCurrency(investment.Sub(swingInv))
	return swingInv, holdInv
}

func relocateLeg(
	pool *wallet.Pool,
	strategy model.Strategy,
	oldPrice, newPrice, oldShares, newShares, oldInv, newInv decimal.Decimal,
	tpValue decimal.NullDecimal,
) error {
	if oldShares.IsPositive() {
		if _, err := pool.Contribute(strategy, oldPrice, oldShares.Neg(), oldInv.Neg(), decimal.NullDecimal{}); err != nil {
			return err
		}
	}
	if newShares.IsPositive() {
		if _, err := pool.Contribute(strategy, newPrice, newShares, newInv, tpValue); err != nil {
			return err
		}
	}
	return nil
}
