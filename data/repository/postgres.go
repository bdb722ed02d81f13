package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/converter/dbConverter"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/dbModel"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/shopspring/decimal"
)

type Postgres struct {
	db  *sqlx.DB
	cfg *config.Config
}

func NewPostgres(cfg *config.Config, db *sqlx.DB) *Postgres {
	return &Postgres{db: db, cfg: cfg}
}

func (r *Postgres) logStart(ctx context.Context, op, query string) {
	slog.Debug(op+" start", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("op", op), slog.String("query", query))
}

func (r *Postgres) logEnd(ctx context.Context, op string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	if err != nil {
		slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	} else {
		slog.Debug(op+" completed", slog.String("rqID", rqID), slog.String("op", op))
	}
}

func mapRowErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Postgres) CreateStock(ctx context.Context, stock model.Stock) (stockID int64, err error) {
	op := "Postgres.CreateStock"
	query := `
		INSERT INTO stocks(symbol, name, swing_ratio_pct, price_drop_pct, swing_tp_pct, hold_tp_pct, commission_pct, risk_budget, out_of_pocket, cash_balance)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING stock_id
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	err = r.db.QueryRowContext(ctx, query,
		stock.Symbol,
		stock.Name,
		stock.SwingRatioPct,
		stock.PriceDropPct,
		stock.SwingTpPct,
		stock.HoldTpPct,
		stock.CommissionPct,
		stock.RiskBudget,
		stock.OutOfPocket,
		stock.CashBalance,
	).Scan(&stockID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			err = ErrAlreadyExists
		}
		return 0, err
	}

	return stockID, nil
}

func (r *Postgres) GetStock(ctx context.Context, stockID int64) (stock model.Stock, err error) {
	op := "Postgres.GetStock"
	query := `
		SELECT stock_id, symbol, name, swing_ratio_pct, price_drop_pct, swing_tp_pct, hold_tp_pct, commission_pct, risk_budget, out_of_pocket, cash_balance, archived, dt_create
		FROM stocks
		WHERE stock_id = $1
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	dbStock := dbModel.Stock{}
	err = r.db.QueryRowxContext(ctx, query, stockID).StructScan(&dbStock)
	if err != nil {
		return model.Stock{}, mapRowErr(err)
	}

	return dbConverter.ConvertStock(dbStock), nil
}

func (r *Postgres) GetStockBySymbol(ctx context.Context, symbol string) (stock model.Stock, err error) {
	op := "Postgres.GetStockBySymbol"
	query := `
		SELECT stock_id, symbol, name, swing_ratio_pct, price_drop_pct, swing_tp_pct, hold_tp_pct, commission_pct, risk_budget, out_of_pocket, cash_balance, archived, dt_create
		FROM stocks
		WHERE symbol = $1
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	dbStock := dbModel.Stock{}
	err = r.db.QueryRowxContext(ctx, query, symbol).StructScan(&dbStock)
	if err != nil {
		return model.Stock{}, mapRowErr(err)
	}

	return dbConverter.ConvertStock(dbStock), nil
}

func (r *Postgres) GetStocks(ctx context.Context, includeArchived bool) (stocks []model.Stock, err error) {
	op := "Postgres.GetStocks"
	query := `
		SELECT stock_id, symbol, name, swing_ratio_pct, price_drop_pct, swing_tp_pct, hold_tp_pct, commission_pct, risk_budget, out_of_pocket, cash_balance, archived, dt_create
		FROM stocks
		WHERE archived = FALSE OR $1
		ORDER BY symbol
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	rows, err := r.db.QueryxContext(ctx, query, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var dbStock dbModel.Stock
		if err = rows.StructScan(&dbStock); err != nil {
			return nil, err
		}
		stocks = append(stocks, dbConverter.ConvertStock(dbStock))
	}

	return stocks, rows.Err()
}

func (r *Postgres) UpdateStock(ctx context.Context, stock model.Stock) (err error) {
	op := "Postgres.UpdateStock"
	query := `
		UPDATE stocks
		SET
			name = $1,
			swing_ratio_pct = $2,
			price_drop_pct = $3,
			swing_tp_pct = $4,
			hold_tp_pct = $5,
			commission_pct = $6,
			risk_budget = $7
		WHERE stock_id = $8
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query,
		stock.Name,
		stock.SwingRatioPct,
		stock.PriceDropPct,
		stock.SwingTpPct,
		stock.HoldTpPct,
		stock.CommissionPct,
		stock.RiskBudget,
		stock.StockID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateStockCash adjusts only the cumulative cash fields used by the
// budget calculation.
func (r *Postgres) UpdateStockCash(ctx context.Context, stockID int64, outOfPocket, cashBalance decimal.Decimal) (err error) {
	op := "Postgres.UpdateStockCash"
	query := `
		UPDATE stocks
		SET out_of_pocket = $1, cash_balance = $2
		WHERE stock_id = $3
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query, outOfPocket, cashBalance, stockID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// ArchiveStock soft-archives; stocks referenced by lots or events are never
// physically deleted.
func (r *Postgres) ArchiveStock(ctx context.Context, stockID int64) (err error) {
	op := "Postgres.ArchiveStock"
	query := `UPDATE stocks SET archived = TRUE WHERE stock_id = $1`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query, stockID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Postgres) CreateEvent(ctx context.Context, ev model.LedgerEvent) (eventID int64, err error) {
	op := "Postgres.CreateEvent"
	query := `
		INSERT INTO ledger_events(stock_id, kind, event_date, price, quantity, investment, assignment, swing_shares, hold_shares, drop_target, tp_target, lot_id, strategy, profit, profit_pct, amount, split_multiplier, split_applied)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING event_id
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	err = r.db.QueryRowContext(ctx, query,
		ev.StockID,
		string(ev.Kind),
		ev.Date,
		ev.Price,
		ev.Quantity,
		ev.Investment,
		string(ev.Assignment),
		ev.SwingShares,
		ev.HoldShares,
		ev.DropTarget,
		ev.TpTarget,
		ev.LotID,
		string(ev.Strategy),
		ev.Profit,
		ev.ProfitPct,
		ev.Amount,
		ev.SplitMultiplier,
		ev.SplitApplied,
	).Scan(&eventID)
	if err != nil {
		return 0, err
	}

	return eventID, nil
}

func (r *Postgres) GetEvent(ctx context.Context, eventID int64) (ev model.LedgerEvent, err error) {
	op := "Postgres.GetEvent"
	query := `
		SELECT event_id, stock_id, kind, event_date, price, quantity, investment, assignment, swing_shares, hold_shares, drop_target, tp_target, lot_id, strategy, profit, profit_pct, amount, split_multiplier, split_applied, dt_create
		FROM ledger_events
		WHERE event_id = $1
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	dbEvent := dbModel.LedgerEvent{}
	err = r.db.QueryRowxContext(ctx, query, eventID).StructScan(&dbEvent)
	if err != nil {
		return model.LedgerEvent{}, mapRowErr(err)
	}

	return dbConverter.ConvertLedgerEvent(dbEvent), nil
}

// GetEventsPage returns one chronological page of a stock's ledger. Callers
// that need the full history page through until a short page comes back;
// aggregating over a partial list produces wrong numbers.
func (r *Postgres) GetEventsPage(ctx context.Context, stockID int64, limit, offset int) (events []model.LedgerEvent, err error) {
	op := "Postgres.GetEventsPage"
	query := `
		SELECT event_id, stock_id, kind, event_date, price, quantity, investment, assignment, swing_shares, hold_shares, drop_target, tp_target, lot_id, strategy, profit, profit_pct, amount, split_multiplier, split_applied, dt_create
		FROM ledger_events
		WHERE stock_id = $1
		ORDER BY event_date, event_id
		LIMIT $2
		OFFSET $3
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	rows, err := r.db.QueryxContext(ctx, query, stockID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events = make([]model.LedgerEvent, 0, limit)
	for rows.Next() {
		var dbEvent dbModel.LedgerEvent
		if err = rows.StructScan(&dbEvent); err != nil {
			return nil, err
		}
		events = append(events, dbConverter.ConvertLedgerEvent(dbEvent))
	}

	return events, rows.Err()
}

func (r *Postgres) UpdateEvent(ctx context.Context, ev model.LedgerEvent) (err error) {
	op := "Postgres.UpdateEvent"
	query := `
		UPDATE ledger_events
		SET
			event_date = $1,
			price = $2,
			quantity = $3,
			investment = $4,
			assignment = $5,
			swing_shares = $6,
			hold_shares = $7,
			drop_target = $8,
			tp_target = $9,
			lot_id = $10,
			strategy = $11,
			profit = $12,
			profit_pct = $13,
			amount = $14
		WHERE event_id = $15
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query,
		ev.Date,
		ev.Price,
		ev.Quantity,
		ev.Investment,
		string(ev.Assignment),
		ev.SwingShares,
		ev.HoldShares,
		ev.DropTarget,
		ev.TpTarget,
		ev.LotID,
		string(ev.Strategy),
		ev.Profit,
		ev.ProfitPct,
		ev.Amount,
		ev.EventID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Postgres) DeleteEvent(ctx context.Context, eventID int64) (err error) {
	op := "Postgres.DeleteEvent"
	query := `DELETE FROM ledger_events WHERE event_id = $1`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkSplitApplied flips the idempotency marker on a stock-split event so a
// reprocessed event never adjusts the lots twice.
func (r *Postgres) MarkSplitApplied(ctx context.Context, eventID int64) (err error) {
	op := "Postgres.MarkSplitApplied"
	query := `UPDATE ledger_events SET split_applied = TRUE WHERE event_id = $1`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Postgres) CreateLot(ctx context.Context, lot model.Lot) (lotID int64, err error) {
	op := "Postgres.CreateLot"
	query := `
		INSERT INTO lots(stock_id, strategy, buy_price, total_shares, total_investment, shares_sold, remaining_shares, realized_pl, realized_pl_pct, tp_value, sell_txn_count)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING lot_id
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	err = r.db.QueryRowContext(ctx, query,
		lot.StockID,
		string(lot.Strategy),
		lot.BuyPrice,
		lot.TotalShares,
		lot.TotalInvestment,
		lot.SharesSold,
		lot.RemainingShares,
		lot.RealizedPL,
		lot.RealizedPLPct,
		lot.TpValue,
		lot.SellTxnCount,
	).Scan(&lotID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			err = ErrAlreadyExists
		}
		return 0, err
	}

	return lotID, nil
}

func (r *Postgres) GetLot(ctx context.Context, lotID int64) (lot model.Lot, err error) {
	op := "Postgres.GetLot"
	query := `
		SELECT lot_id, stock_id, strategy, buy_price, total_shares, total_investment, shares_sold, remaining_shares, realized_pl, realized_pl_pct, tp_value, sell_txn_count, dt_create
		FROM lots
		WHERE lot_id = $1
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	dbLot := dbModel.Lot{}
	err = r.db.QueryRowxContext(ctx, query, lotID).StructScan(&dbLot)
	if err != nil {
		return model.Lot{}, mapRowErr(err)
	}

	return dbConverter.ConvertLot(dbLot), nil
}

func (r *Postgres) GetLots(ctx context.Context, stockID int64) (lots []model.Lot, err error) {
	op := "Postgres.GetLots"
	query := `
		SELECT lot_id, stock_id, strategy, buy_price, total_shares, total_investment, shares_sold, remaining_shares, realized_pl, realized_pl_pct, tp_value, sell_txn_count, dt_create
		FROM lots
		WHERE stock_id = $1
		ORDER BY strategy, buy_price
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	rows, err := r.db.QueryxContext(ctx, query, stockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var dbLot dbModel.Lot
		if err = rows.StructScan(&dbLot); err != nil {
			return nil, err
		}
		lots = append(lots, dbConverter.ConvertLot(dbLot))
	}

	return lots, rows.Err()
}

func (r *Postgres) UpdateLot(ctx context.Context, lot model.Lot) (err error) {
	op := "Postgres.UpdateLot"
	query := `
		UPDATE lots
		SET
			strategy = $1,
			buy_price = $2,
			total_shares = $3,
			total_investment = $4,
			shares_sold = $5,
			remaining_shares = $6,
			realized_pl = $7,
			realized_pl_pct = $8,
			tp_value = $9,
			sell_txn_count = $10
		WHERE lot_id = $11
	`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query,
		string(lot.Strategy),
		lot.BuyPrice,
		lot.TotalShares,
		lot.TotalInvestment,
		lot.SharesSold,
		lot.RemainingShares,
		lot.RealizedPL,
		lot.RealizedPLPct,
		lot.TpValue,
		lot.SellTxnCount,
		lot.LotID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Postgres) DeleteLot(ctx context.Context, lotID int64) (err error) {
	op := "Postgres.DeleteLot"
	query := `DELETE FROM lots WHERE lot_id = $1`

	r.logStart(ctx, op, query)
	defer func() { r.logEnd(ctx, op, err) }()

	res, err := r.db.ExecContext(ctx, query, lotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}
