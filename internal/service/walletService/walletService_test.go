package walletService

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/repository"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/externalApi"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/quoteModel"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ndec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func requireDecEqual(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s got %s %v", want, got, msgAndArgs)
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu         sync.Mutex
	stocks     map[int64]model.Stock
	events     map[int64]model.LedgerEvent
	lots       map[int64]model.Lot
	nextID     int64
	failCreate error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		stocks: map[int64]model.Stock{},
		events: map[int64]model.LedgerEvent{},
		lots:   map[int64]model.Lot{},
		nextID: 1,
	}
}

func (r *fakeRepo) id() int64 {
	id := r.nextID
	r.nextID++
	return id
}

func (r *fakeRepo) CreateStock(_ context.Context, stock model.Stock) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stocks {
		if s.Symbol == stock.Symbol {
			return 0, repository.ErrAlreadyExists
		}
	}
	stock.StockID = r.id()
	r.stocks[stock.StockID] = stock
	return stock.StockID, nil
}

func (r *fakeRepo) GetStock(_ context.Context, stockID int64) (model.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stocks[stockID]
	if !ok {
		return model.Stock{}, repository.ErrNotFound
	}
	return stock, nil
}

func (r *fakeRepo) GetStockBySymbol(_ context.Context, symbol string) (model.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stocks {
		if s.Symbol == symbol {
			return s, nil
		}
	}
	return model.Stock{}, repository.ErrNotFound
}

func (r *fakeRepo) GetStocks(_ context.Context, includeArchived bool) ([]model.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Stock
	for _, s := range r.stocks {
		if s.Archived && !includeArchived {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *fakeRepo) UpdateStock(_ context.Context, stock model.Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stocks[stock.StockID]; !ok {
		return repository.ErrNotFound
	}
	r.stocks[stock.StockID] = stock
	return nil
}

func (r *fakeRepo) UpdateStockCash(_ context.Context, stockID int64, outOfPocket, cashBalance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stocks[stockID]
	if !ok {
		return repository.ErrNotFound
	}
	stock.OutOfPocket = outOfPocket
	stock.CashBalance = cashBalance
	r.stocks[stockID] = stock
	return nil
}

func (r *fakeRepo) ArchiveStock(_ context.Context, stockID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stocks[stockID]
	if !ok {
		return repository.ErrNotFound
	}
	stock.Archived = true
	r.stocks[stockID] = stock
	return nil
}

func (r *fakeRepo) CreateEvent(_ context.Context, ev model.LedgerEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return 0, r.failCreate
	}
	ev.EventID = r.id()
	r.events[ev.EventID] = ev
	return ev.EventID, nil
}

func (r *fakeRepo) GetEvent(_ context.Context, eventID int64) (model.LedgerEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventID]
	if !ok {
		return model.LedgerEvent{}, repository.ErrNotFound
	}
	return ev, nil
}

func (r *fakeRepo) GetEventsPage(_ context.Context, stockID int64, limit, offset int) ([]model.LedgerEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.LedgerEvent
	for _, ev := range r.events {
		if ev.StockID == stockID {
			all = append(all, ev)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].EventID < all[j].EventID
	})
	if offset >= len(all) {
		return []model.LedgerEvent{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *fakeRepo) UpdateEvent(_ context.Context, ev model.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[ev.EventID]; !ok {
		return repository.ErrNotFound
	}
	r.events[ev.EventID] = ev
	return nil
}

func (r *fakeRepo) DeleteEvent(_ context.Context, eventID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[eventID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.events, eventID)
	return nil
}

func (r *fakeRepo) MarkSplitApplied(_ context.Context, eventID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	ev.SplitApplied = true
	r.events[eventID] = ev
	return nil
}

func (r *fakeRepo) CreateLot(_ context.Context, lot model.Lot) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot.LotID = r.id()
	r.lots[lot.LotID] = lot
	return lot.LotID, nil
}

func (r *fakeRepo) GetLot(_ context.Context, lotID int64) (model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[lotID]
	if !ok {
		return model.Lot{}, repository.ErrNotFound
	}
	return lot, nil
}

func (r *fakeRepo) GetLots(_ context.Context, stockID int64) ([]model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Lot
	for _, lot := range r.lots {
		if lot.StockID == stockID {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotID < out[j].LotID })
	return out, nil
}

func (r *fakeRepo) UpdateLot(_ context.Context, lot model.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lots[lot.LotID]; !ok {
		return repository.ErrNotFound
	}
	r.lots[lot.LotID] = lot
	return nil
}

func (r *fakeRepo) DeleteLot(_ context.Context, lotID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lots[lotID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.lots, lotID)
	return nil
}

// fakeCache is an in-memory quote cache.
type fakeCache struct {
	mu     sync.Mutex
	quotes map[string]quoteModel.Quote
}

func newFakeCache() *fakeCache {
	return &fakeCache{quotes: map[string]quoteModel.Quote{}}
}

func (c *fakeCache) SetQuotes(_ context.Context, quotes []quoteModel.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range quotes {
		c.quotes[q.Symbol] = q
	}
	return nil
}

func (c *fakeCache) GetQuote(_ context.Context, symbol string) (quoteModel.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	if !ok {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}
	return q, nil
}

func (c *fakeCache) GetQuotes(_ context.Context, symbols []string) (map[string]quoteModel.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]quoteModel.Quote{}
	for _, s := range symbols {
		if q, ok := c.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

type fakePriceApi struct {
	mu     sync.Mutex
	quotes map[string]quoteModel.Quote
	calls  int
}

func newFakePriceApi() *fakePriceApi {
	return &fakePriceApi{quotes: map[string]quoteModel.Quote{}}
}

func (a *fakePriceApi) GetQuote(_ context.Context, symbol string) (quoteModel.Quote, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	q, ok := a.quotes[symbol]
	if !ok {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}
	return q, nil
}

func (a *fakePriceApi) GetQuotes(_ context.Context, symbols []string) ([]quoteModel.Quote, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	var out []quoteModel.Quote
	for _, s := range symbols {
		if q, ok := a.quotes[s]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeReportGen struct{}

func (fakeReportGen) GeneratePortfolioReport(_ context.Context, _ model.PortfolioOverview) (io.Reader, string, error) {
	return bytes.NewReader([]byte("xlsx")), "portfolio.xlsx", nil
}

type fakeCloudStorage struct {
	uploads int
}

func (s *fakeCloudStorage) UploadFile(_ context.Context, _ io.Reader, _ string) (string, error) {
	s.uploads++
	return "https://drive.google.com/file/d/report/view", nil
}

type fixture struct {
	repo    *fakeRepo
	cache   *fakeCache
	api     *fakePriceApi
	storage *fakeCloudStorage
	svc     *WalletService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	cache := newFakeCache()
	api := newFakePriceApi()
	storage := &fakeCloudStorage{}
	svc := New(repo, cache, api, fakeReportGen{}, storage, &config.Config{EventsPageSize: 2})
	return &fixture{repo: repo, cache: cache, api: api, storage: storage, svc: svc}
}

func (f *fixture) addStock(t *testing.T) int64 {
	t.Helper()
	stockID, err := f.repo.CreateStock(context.Background(), model.Stock{
		Symbol:        "AAPL",
		Name:          "Apple",
		SwingRatioPct: dec("50"),
		PriceDropPct:  dec("10"),
		SwingTpPct:    dec("10"),
		HoldTpPct:     dec("10"),
		CommissionPct: decimal.Zero,
		RiskBudget:    dec("1500"),
		OutOfPocket:   dec("1000"),
		CashBalance:   decimal.Zero,
	})
	require.NoError(t, err)
	return stockID
}

func TestRecordBuyCreatesLotsAndEvent(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	ev, warnings, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	requireDecEqual(t, "10", ev.Quantity)
	requireDecEqual(t, "5", ev.SwingShares)
	requireDecEqual(t, "5", ev.HoldShares)
	require.True(t, ev.DropTarget.Valid)
	requireDecEqual(t, "90", ev.DropTarget.Decimal)
	require.True(t, ev.TpTarget.Valid)
	requireDecEqual(t, "110", ev.TpTarget.Decimal)

	lots, err := f.repo.GetLots(ctx, stockID)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	swing, hold := lots[0], lots[1]
	require.Equal(t, model.StrategySwing, swing.Strategy)
	require.Equal(t, model.StrategyHold, hold.Strategy)
	requireDecEqual(t, "5", swing.TotalShares)
	requireDecEqual(t, "500", swing.TotalInvestment)
	require.True(t, swing.TpValue.Valid)
	requireDecEqual(t, "110", swing.TpValue.Decimal)
	requireDecEqual(t, "5", hold.RemainingShares)
}

func TestRecordBuyMergesIntoSamePriceLot(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	_, _, err = f.svc.RecordBuy(ctx, stockID, day("2026-01-06"), dec("100"), dec("500"), model.AssignSwing)
	require.NoError(t, err)

	lots, err := f.repo.GetLots(ctx, stockID)
	require.NoError(t, err)
	require.Len(t, lots, 1, "same quantized price merges into one lot")
	requireDecEqual(t, "15", lots[0].TotalShares)
	requireDecEqual(t, "1500", lots[0].TotalInvestment)
}

func TestRecordSellWorkedExample(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)

	lots, _ := f.repo.GetLots(ctx, stockID)
	swingLot := lots[0]
	require.Equal(t, model.StrategySwing, swingLot.Strategy)

	ev, err := f.svc.RecordSell(ctx, stockID, swingLot.LotID, day("2026-02-01"), dec("110"), dec("3"))
	require.NoError(t, err)

	require.True(t, ev.Profit.Valid)
	requireDecEqual(t, "30", ev.Profit.Decimal)
	require.True(t, ev.ProfitPct.Valid)
	requireDecEqual(t, "10", ev.ProfitPct.Decimal)
	require.Equal(t, model.StrategySwing, ev.Strategy)

	got, err := f.repo.GetLot(ctx, swingLot.LotID)
	require.NoError(t, err)
	requireDecEqual(t, "3", got.SharesSold)
	requireDecEqual(t, "2", got.RemainingShares)
	requireDecEqual(t, "30", got.RealizedPL)
	require.Equal(t, 1, got.SellTxnCount)
}

func TestRecordSellOverdrawLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)

	_, err = f.svc.RecordSell(ctx, stockID, lots[0].LotID, day("2026-02-01"), dec("110"), dec("11"))
	require.ErrorIs(t, err, wallet.ErrOverdrawnLot)

	events, _ := f.svc.allEvents(ctx, stockID)
	require.Len(t, events, 1, "only the buy is on the books")
	got, _ := f.repo.GetLot(ctx, lots[0].LotID)
	requireDecEqual(t, "10", got.RemainingShares)
}

func TestDeleteSellEventRestoresLot(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)
	before, _ := f.repo.GetLot(ctx, lots[0].LotID)

	sellEv, err := f.svc.RecordSell(ctx, stockID, lots[0].LotID, day("2026-02-01"), dec("110"), dec("3"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSellEvent(ctx, sellEv.EventID))

	after, _ := f.repo.GetLot(ctx, lots[0].LotID)
	requireDecEqual(t, before.SharesSold.String(), after.SharesSold)
	requireDecEqual(t, before.RemainingShares.String(), after.RemainingShares)
	requireDecEqual(t, before.RealizedPL.String(), after.RealizedPL)
	require.Equal(t, before.SellTxnCount, after.SellTxnCount)

	_, err = f.repo.GetEvent(ctx, sellEv.EventID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordStockSplitAdjustsLotsAndMarksApplied(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)

	ev, err := f.svc.RecordStockSplit(ctx, stockID, day("2026-02-01"), dec("4"))
	require.NoError(t, err)
	assert.True(t, ev.SplitApplied)

	stored, err := f.repo.GetEvent(ctx, ev.EventID)
	require.NoError(t, err)
	assert.True(t, stored.SplitApplied)

	lots, _ := f.repo.GetLots(ctx, stockID)
	for _, lot := range lots {
		requireDecEqual(t, "25", lot.BuyPrice)
		requireDecEqual(t, "20", lot.TotalShares)
		requireDecEqual(t, "500", lot.TotalInvestment, "currency amounts survive the split")
		require.True(t, lot.TpValue.Valid)
		requireDecEqual(t, "27.5", lot.TpValue.Decimal)
	}
}

func TestUpdateBuyEventRelocatesUncommittedLot(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	buyEv, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)

	updated, warnings, err := f.svc.UpdateBuyEvent(ctx, buyEv.EventID, day("2026-01-05"), dec("125"), dec("1000"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	requireDecEqual(t, "8", updated.Quantity)

	lots, _ := f.repo.GetLots(ctx, stockID)
	require.Len(t, lots, 2, "old lot zeroed out, new lot created")

	old, moved := lots[0], lots[1]
	requireDecEqual(t, "100", old.BuyPrice)
	requireDecEqual(t, "0", old.TotalShares)
	requireDecEqual(t, "0", old.RemainingShares)
	requireDecEqual(t, "125", moved.BuyPrice)
	requireDecEqual(t, "8", moved.TotalShares)
	requireDecEqual(t, "1000", moved.TotalInvestment)
}

func TestDeleteSellEventAfterSplitRestoresLot(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)
	lotID := lots[0].LotID

	sellEv, err := f.svc.RecordSell(ctx, stockID, lotID, day("2026-02-01"), dec("110"), dec("3"))
	require.NoError(t, err)
	_, err = f.svc.RecordStockSplit(ctx, stockID, day("2026-03-01"), dec("2"))
	require.NoError(t, err)

	// The lot is in post-split terms before the delete.
	mid, _ := f.repo.GetLot(ctx, lotID)
	requireDecEqual(t, "50", mid.BuyPrice)
	requireDecEqual(t, "6", mid.SharesSold)
	requireDecEqual(t, "30", mid.RealizedPL)

	require.NoError(t, f.svc.DeleteSellEvent(ctx, sellEv.EventID))

	// The sale is restated across the split before reversal, so the lot
	// comes back to its pre-sale post-split state exactly.
	after, _ := f.repo.GetLot(ctx, lotID)
	requireDecEqual(t, "20", after.TotalShares)
	requireDecEqual(t, "0", after.SharesSold)
	requireDecEqual(t, "20", after.RemainingShares)
	requireDecEqual(t, "0", after.RealizedPL)
	require.Equal(t, 0, after.SellTxnCount)
}

func TestUpdateBuyEventAfterSplitRelocates(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	buyEv, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	_, err = f.svc.RecordStockSplit(ctx, stockID, day("2026-02-01"), dec("2"))
	require.NoError(t, err)

	// The correction is entered in the buy's own pre-split terms; the lot
	// move happens in post-split terms.
	updated, warnings, err := f.svc.UpdateBuyEvent(ctx, buyEv.EventID, day("2026-01-05"), dec("80"), dec("1000"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	requireDecEqual(t, "12.5", updated.Quantity)

	lots, _ := f.repo.GetLots(ctx, stockID)
	require.Len(t, lots, 2)
	old, moved := lots[0], lots[1]
	requireDecEqual(t, "50", old.BuyPrice)
	requireDecEqual(t, "0", old.TotalShares)
	requireDecEqual(t, "40", moved.BuyPrice)
	requireDecEqual(t, "25", moved.TotalShares)
	requireDecEqual(t, "1000", moved.TotalInvestment)
}

func TestUpdateBuyEventCommittedLotSoftFails(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	buyEv, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)
	_, err = f.svc.RecordSell(ctx, stockID, lots[0].LotID, day("2026-02-01"), dec("110"), dec("3"))
	require.NoError(t, err)
	committed, _ := f.repo.GetLot(ctx, lots[0].LotID)

	updated, warnings, err := f.svc.UpdateBuyEvent(ctx, buyEv.EventID, day("2026-01-05"), dec("90"), dec("1000"))
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, wallet.WarnWalletNotUpdated, warnings[0].Code)

	// The event record carries the correction.
	requireDecEqual(t, "90", updated.Price)
	stored, _ := f.repo.GetEvent(ctx, buyEv.EventID)
	requireDecEqual(t, "90", stored.Price)

	// The committed lot is untouched.
	after, _ := f.repo.GetLot(ctx, lots[0].LotID)
	requireDecEqual(t, committed.BuyPrice.String(), after.BuyPrice)
	requireDecEqual(t, committed.TotalShares.String(), after.TotalShares)
	require.Equal(t, committed.SellTxnCount, after.SellTxnCount)
}

func TestDeleteEmptyLot(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignSwing)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)

	// Still holding shares: refused.
	err = f.svc.DeleteEmptyLot(ctx, stockID, lots[0].LotID)
	var vErr *wallet.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.RecordSell(ctx, stockID, lots[0].LotID, day("2026-02-01"), dec("110"), dec("10"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteEmptyLot(ctx, stockID, lots[0].LotID))
	_, err = f.repo.GetLot(ctx, lots[0].LotID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordDividendIsEventOnly(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	ev, err := f.svc.RecordDividend(ctx, stockID, day("2026-03-01"), dec("12.34"))
	require.NoError(t, err)
	requireDecEqual(t, "12.34", ev.Amount)

	lots, _ := f.repo.GetLots(ctx, stockID)
	assert.Empty(t, lots)
}

func TestStockOverviewWorkedExample(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)
	swingLot := lots[0]
	_, err = f.svc.RecordSell(ctx, stockID, swingLot.LotID, day("2026-02-01"), dec("110"), dec("3"))
	require.NoError(t, err)
	_, err = f.svc.RecordDividend(ctx, stockID, day("2026-02-15"), dec("5"))
	require.NoError(t, err)

	require.NoError(t, f.cache.SetQuotes(ctx, []quoteModel.Quote{{Symbol: "AAPL", Price: ndec("120")}}))

	ov, err := f.svc.StockOverview(ctx, stockID)
	require.NoError(t, err)

	requireDecEqual(t, "30", ov.Swing.Realized)
	require.True(t, ov.Swing.RealizedPct.Valid)
	requireDecEqual(t, "10", ov.Swing.RealizedPct.Decimal)
	require.True(t, ov.Swing.Unrealized.Valid)
	requireDecEqual(t, "40", ov.Swing.Unrealized.Decimal, "(120-100) x 2 remaining")
	require.True(t, ov.Hold.Unrealized.Valid)
	requireDecEqual(t, "100", ov.Hold.Unrealized.Decimal, "(120-100) x 5 held")
	requireDecEqual(t, "5", ov.Dividends)

	requireDecEqual(t, "700", ov.TiedUpInvestment)
	requireDecEqual(t, "0", ov.RiskInvestment, "both lots past their $110 targets at $120")
	require.True(t, ov.MarketValue.Valid)
	requireDecEqual(t, "840", ov.MarketValue.Decimal)
	requireDecEqual(t, "1000", ov.BudgetUsed)
	requireDecEqual(t, "500", ov.BudgetAvailable)

	assert.False(t, ov.Signals.DipBuy, "$120 is above the $90 drop target")
	assert.True(t, ov.Signals.SwingTakeProfit)
	assert.True(t, ov.Signals.HoldTakeProfit)

	assert.Equal(t, 1, ov.BuyCount)
	assert.Equal(t, 1, ov.SellCount)
	assert.Equal(t, 2, ov.OpenLots)
}

func TestStockOverviewWithoutPrice(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)

	ov, err := f.svc.StockOverview(ctx, stockID)
	require.NoError(t, err)

	assert.False(t, ov.CurrentPrice.Valid)
	assert.False(t, ov.Combined.Unrealized.Valid, "no price means unknown, not zero")
	assert.False(t, ov.MarketValue.Valid)
	requireDecEqual(t, "1000", ov.RiskInvestment, "everything held is at risk without a price")
	assert.False(t, ov.Signals.SwingTakeProfit)
}

func TestDipBuySignalAfterSplit(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)
	_, err = f.svc.RecordStockSplit(ctx, stockID, day("2026-02-01"), dec("2"))
	require.NoError(t, err)

	// $50 is flat in post-split terms; the pre-split $90 drop target must
	// not fire against it.
	require.NoError(t, f.cache.SetQuotes(ctx, []quoteModel.Quote{{Symbol: "AAPL", Price: ndec("50")}}))
	ov, err := f.svc.StockOverview(ctx, stockID)
	require.NoError(t, err)
	assert.False(t, ov.Signals.DipBuy)

	// The restated drop target is $45, 10% below the adjusted $50 buy.
	require.NoError(t, f.cache.SetQuotes(ctx, []quoteModel.Quote{{Symbol: "AAPL", Price: ndec("45")}}))
	ov, err = f.svc.StockOverview(ctx, stockID)
	require.NoError(t, err)
	assert.True(t, ov.Signals.DipBuy)
}

func TestPortfolioOverviewMissingPriceVoidsUnrealized(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	otherID, err := f.repo.CreateStock(ctx, model.Stock{
		Symbol: "MSFT", SwingRatioPct: dec("50"), SwingTpPct: dec("10"), HoldTpPct: dec("10"),
	})
	require.NoError(t, err)

	_, _, err = f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)
	_, _, err = f.svc.RecordBuy(ctx, otherID, day("2026-01-05"), dec("200"), dec("400"), model.AssignRatio)
	require.NoError(t, err)

	// Only AAPL has a quote.
	require.NoError(t, f.cache.SetQuotes(ctx, []quoteModel.Quote{{Symbol: "AAPL", Price: ndec("120")}}))

	ov, err := f.svc.PortfolioOverview(ctx)
	require.NoError(t, err)

	require.Len(t, ov.Stocks, 2)
	assert.Equal(t, []string{"MSFT"}, ov.MissingPrices)
	assert.False(t, ov.TotalUnrealized.Valid)
	assert.False(t, ov.MarketValue.Valid)
	assert.False(t, ov.CombinedPL.Valid)
	requireDecEqual(t, "1400", ov.TotalTiedUp)
}

func TestPortfolioOverviewTotals(t *testing.T) {
	f := newFixture(t)
	stockID := f.addStock(t)
	ctx := context.Background()

	_, _, err := f.svc.RecordBuy(ctx, stockID, day("2026-01-05"), dec("100"), dec("1000"), model.AssignRatio)
	require.NoError(t, err)
	lots, _ := f.repo.GetLots(ctx, stockID)
	_, err = f.svc.RecordSell(ctx, stockID, lots[0].LotID, day("2026-02-01"), dec("110"), dec("3"))
	require.NoError(t, err)
	_, err = f.svc.RecordLendingPayment(ctx, stockID, day("2026-02-10"), dec("2"))
	require.NoError(t, err)

	require.NoError(t, f.cache.SetQuotes(ctx, []quoteModel.Quote{{Symbol: "AAPL", Price: ndec("120")}}))

	ov, err := f.svc.PortfolioOverview(ctx)
	require.NoError(t, err)

	requireDecEqual(t, "30", ov.TotalRealized)
	require.True(t, ov.TotalUnrealized.Valid)
	requireDecEqual(t, "140", ov.TotalUnrealized.Decimal)
	requireDecEqual(t, "2", ov.TotalIncome)
	require.True(t, ov.CombinedPL.Valid)
	requireDecEqual(t, "172", ov.CombinedPL.Decimal, "30 + 140 + 2")
	require.True(t, ov.MarketValue.Valid)
	requireDecEqual(t, "840", ov.MarketValue.Decimal)
	require.True(t, ov.ROIC.Valid, "out-of-pocket is positive")
}

func TestRefreshQuotesFillsCache(t *testing.T) {
	f := newFixture(t)
	f.addStock(t)
	ctx := context.Background()

	f.api.quotes["AAPL"] = quoteModel.Quote{Symbol: "AAPL", Price: ndec("123.45")}

	require.NoError(t, f.svc.RefreshQuotes(ctx))

	q, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, q.Price.Valid)
	requireDecEqual(t, "123.45", q.Price.Decimal)
}

func TestExportPortfolioReport(t *testing.T) {
	f := newFixture(t)
	f.addStock(t)
	ctx := context.Background()

	link, err := f.svc.ExportPortfolioReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/report/view", link)
	assert.Equal(t, 1, f.storage.uploads)
}
