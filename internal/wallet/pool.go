package wallet

import (
	"sort"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// Pool is the in-memory working set of one stock's lots, hydrated from the
// store before a mutation and flushed back through Changes afterwards.
// Matching is an indexed lookup on (strategy, quantized buy price); lots
// created here carry negative IDs until the store assigns real ones.
//
// A Pool is not safe for concurrent use. Callers serialize all mutations
// for one stock (the service holds a per-stock mutex).
type Pool struct {
	stockID  int64
	lots     map[int64]*model.Lot
	index    map[string]int64
	nextID   int64
	created  map[int64]bool
	dirty    map[int64]bool
	removed  []int64
	warnings []Warning
}

// SaleResult reports the outcome of applying one sale to a lot.
type SaleResult struct {
	Profit    decimal.Decimal
	ProfitPct decimal.NullDecimal
	CostBasis decimal.Decimal
}

// PoolChanges lists what must be persisted after a mutation.
type PoolChanges struct {
	Created []model.Lot
	Updated []model.Lot
	Removed []int64
}

func NewPool(stockID int64, lots []model.Lot) *Pool {
	p := &Pool{
		stockID: stockID,
		lots:    make(map[int64]*model.Lot, len(lots)),
		index:   make(map[string]int64, len(lots)),
		nextID:  -1,
		created: make(map[int64]bool),
		dirty:   make(map[int64]bool),
	}
	for i := range lots {
		lot := lots[i]
		p.lots[lot.LotID] = &lot
		p.index[lotKey(lot.Strategy, lot.BuyPrice)] = lot.LotID
	}
	return p
}

func lotKey(strategy model.Strategy, price decimal.Decimal) string {
	return string(strategy) + "|" + PriceKey(price)
}

// Contribute adds (or, with negative deltas, removes) a buy contribution to
// the lot matching (strategy, buyPrice), creating the lot on first
// contribution. tpValue is set when the lot is created or has none yet.
// Removing a contribution from a committed lot is refused: its basis is
// frozen by the recorded sales.
func (p *Pool) Contribute(
	strategy model.Strategy,
	buyPrice, deltaShares, deltaInvestment decimal.Decimal,
	tpValue decimal.NullDecimal,
) (model.Lot, error) {
	if !buyPrice.IsPositive() {
		return model.Lot{}, validationErr("buyPrice", "must be positive")
	}
	deltaShares = RoundShares(deltaShares)
	deltaInvestment = RoundCurrency(deltaInvestment)
	if deltaShares.IsZero() {
		return model.Lot{}, validationErr("deltaShares", "must be non-zero")
	}

	key := lotKey(strategy, buyPrice)
	lotID, ok := p.index[key]
	if !ok {
		if deltaShares.IsNegative() {
			return model.Lot{}, ErrLotNotFound
		}
		lot := &model.Lot{
			LotID:           p.nextID,
			StockID:         p.stockID,
			Strategy:        strategy,
			BuyPrice:        RoundTarget(buyPrice),
			TotalShares:     deltaShares,
			TotalInvestment: deltaInvestment,
			SharesSold:      decimal.Zero,
			RemainingShares: deltaShares,
			RealizedPL:      decimal.Zero,
			RealizedPLPct:   decimal.Zero,
			TpValue:         tpValue,
		}
		p.nextID--
		p.lots[lot.LotID] = lot
		p.index[key] = lot.LotID
		p.created[lot.LotID] = true
		return *lot, nil
	}

	lot := p.lots[lotID]
	if deltaShares.IsNegative() && lot.Committed() {
		return model.Lot{}, ErrCommittedLotConflict
	}

	total := RoundShares(lot.TotalShares.Add(deltaShares))
	investment := RoundCurrency(lot.TotalInvestment.Add(deltaInvestment))
	if total.IsNegative() || investment.IsNegative() {
		return model.Lot{}, validationErr("deltaShares", "contribution removal exceeds lot totals")
	}

	lot.TotalShares = total
	lot.TotalInvestment = investment
	lot.RemainingShares = RoundShares(total.Sub(lot.SharesSold))
	if lot.RemainingShares.IsNegative() {
		return model.Lot{}, validationErr("deltaShares", "removal would leave fewer shares than already sold")
	}
	if !lot.TpValue.Valid && tpValue.Valid {
		lot.TpValue = tpValue
	}
	p.markDirty(lot.LotID)
	return *lot, nil
}

// ApplySale draws qty shares at price out of the lot, commission charged on
// the sell leg. Rejects overdraws beyond share precision; no partial
// application on failure.
func (p *Pool) ApplySale(lotID int64, qty, price, commissionPct decimal.Decimal) (SaleResult, error) {
	lot, ok := p.lots[lotID]
	if !ok {
		return SaleResult{}, ErrLotNotFound
	}
	qty = RoundShares(qty)
	if !qty.IsPositive() {
		return SaleResult{}, validationErr("quantity", "must be positive")
	}
	if !price.IsPositive() {
		return SaleResult{}, validationErr("price", "must be positive")
	}
	if qty.GreaterThan(lot.RemainingShares) {
		return SaleResult{}, ErrOverdrawnLot
	}

	profit := saleProfit(lot.BuyPrice, price, qty, commissionPct)
	costBasis := RoundCurrency(lot.BuyPrice.Mul(qty))

	lot.SharesSold = RoundShares(lot.SharesSold.Add(qty))
	lot.RemainingShares = RoundShares(lot.TotalShares.Sub(lot.SharesSold))
	lot.RealizedPL = RoundCurrency(lot.RealizedPL.Add(profit))
	lot.RealizedPLPct = realizedPct(lot.RealizedPL, lot.BuyPrice, lot.SharesSold)
	lot.SellTxnCount++
	p.markDirty(lotID)

	res := SaleResult{Profit: profit, CostBasis: costBasis}
	if costBasis.IsPositive() {
		res.ProfitPct = decimal.NewNullDecimal(RoundCurrency(profit.Div(costBasis).Mul(hundred)))
	}
	return res, nil
}

// ReverseSale subtracts a previously applied sale's contribution, restoring
// the lot to its pre-sale state for the same (qty, price, commission).
func (p *Pool) ReverseSale(lotID int64, qty, price, commissionPct decimal.Decimal) error {
	lot, ok := p.lots[lotID]
	if !ok {
		return ErrLotNotFound
	}
	qty = RoundShares(qty)
	if !qty.IsPositive() {
		return validationErr("quantity", "must be positive")
	}
	if lot.SellTxnCount == 0 {
		return validationErr("lotId", "lot has no sales to reverse")
	}
	if qty.GreaterThan(lot.SharesSold) {
		return validationErr("quantity", "exceeds shares sold from this lot")
	}

	profit := saleProfit(lot.BuyPrice, price, qty, commissionPct)

	lot.SharesSold = RoundShares(lot.SharesSold.Sub(qty))
	lot.RemainingShares = RoundShares(lot.TotalShares.Sub(lot.SharesSold))
	lot.RealizedPL = RoundCurrency(lot.RealizedPL.Sub(profit))
	lot.RealizedPLPct = realizedPct(lot.RealizedPL, lot.BuyPrice, lot.SharesSold)
	lot.SellTxnCount--
	p.markDirty(lotID)
	return nil
}

// ApplyStockSplit permanently restates every lot for a split: per-share
// prices divide, share quantities multiply, currency amounts (investment,
// realized P/L) stay put. Apply exactly once per split event; the caller
// tracks which events were applied.
func (p *Pool) ApplyStockSplit(multiplier decimal.Decimal) error {
	if !multiplier.IsPositive() {
		return validationErr("multiplier", "must be positive")
	}
	for id, lot := range p.lots {
		lot.BuyPrice = RoundTarget(lot.BuyPrice.Div(multiplier))
		lot.TotalShares = RoundShares(lot.TotalShares.Mul(multiplier))
		lot.SharesSold = RoundShares(lot.SharesSold.Mul(multiplier))
		lot.RemainingShares = RoundShares(lot.TotalShares.Sub(lot.SharesSold))
		if lot.TpValue.Valid {
			lot.TpValue = decimal.NewNullDecimal(RoundTarget(lot.TpValue.Decimal.Div(multiplier)))
		}
		p.markDirty(id)
	}
	p.reindex()
	return nil
}

// Relocate moves a buy event's contribution after a price or strategy edit.
// The originating lot must be uncommitted; the move is a negated
// contribution to the old key plus a positive one to the new key.
func (p *Pool) Relocate(
	oldStrategy, newStrategy model.Strategy,
	oldPrice, newPrice, shares, investment decimal.Decimal,
	tpValue decimal.NullDecimal,
) error {
	oldID, ok := p.index[lotKey(oldStrategy, oldPrice)]
	if !ok {
		return ErrLotNotFound
	}
	if p.lots[oldID].Committed() {
		return ErrCommittedLotConflict
	}
	if _, err := p.Contribute(oldStrategy, oldPrice, shares.Neg(), investment.Neg(), decimal.NullDecimal{}); err != nil {
		return err
	}
	if _, err := p.Contribute(newStrategy, newPrice, shares, investment, tpValue); err != nil {
		return err
	}
	return nil
}

// Remove deletes a lot. Only empty lots go, and only on explicit request.
func (p *Pool) Remove(lotID int64) error {
	lot, ok := p.lots[lotID]
	if !ok {
		return ErrLotNotFound
	}
	if !ZeroShares(lot.RemainingShares) {
		return validationErr("lotId", "lot still holds shares")
	}
	delete(p.lots, lotID)
	delete(p.index, lotKey(lot.Strategy, lot.BuyPrice))
	if p.created[lotID] {
		delete(p.created, lotID)
		delete(p.dirty, lotID)
		return nil
	}
	delete(p.dirty, lotID)
	p.removed = append(p.removed, lotID)
	return nil
}

// Lot returns a copy of one lot.
func (p *Pool) Lot(lotID int64) (model.Lot, bool) {
	lot, ok := p.lots[lotID]
	if !ok {
		return model.Lot{}, false
	}
	return *lot, true
}

// Lots returns copies of all lots ordered by strategy then buy price.
func (p *Pool) Lots() []model.Lot {
	out := make([]model.Lot, 0, len(p.lots))
	for _, lot := range p.lots {
		out = append(out, *lot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strategy != out[j].Strategy {
			return out[i].Strategy < out[j].Strategy
		}
		return out[i].BuyPrice.LessThan(out[j].BuyPrice)
	})
	return out
}

// Changes lists the lots to insert, update and delete in the store.
func (p *Pool) Changes() PoolChanges {
	var ch PoolChanges
	for id := range p.created {
		ch.Created = append(ch.Created, *p.lots[id])
	}
	for id := range p.dirty {
		if p.created[id] {
			continue
		}
		ch.Updated = append(ch.Updated, *p.lots[id])
	}
	ch.Removed = append([]int64(nil), p.removed...)
	sort.Slice(ch.Created, func(i, j int) bool { return ch.Created[i].LotID > ch.Created[j].LotID })
	sort.Slice(ch.Updated, func(i, j int) bool { return ch.Updated[i].LotID < ch.Updated[j].LotID })
	return ch
}

func (p *Pool) Warnings() []Warning {
	return p.warnings
}

func (p *Pool) markDirty(lotID int64) {
	if !p.created[lotID] {
		p.dirty[lotID] = true
	}
}

// reindex rebuilds the price index after a split. When two lots of the same
// strategy quantize to the same post-split price key, the lowest ID keeps the
// key and the clash is reported; the shadowed lot stays intact but stops
// matching new contributions.
func (p *Pool) reindex() {
	ids := make([]int64, 0, len(p.lots))
	for id := range p.lots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	p.index = make(map[string]int64, len(p.lots))
	for _, id := range ids {
		lot := p.lots[id]
		key := lotKey(lot.Strategy, lot.BuyPrice)
		if prev, ok := p.index[key]; ok {
			p.warnings = append(p.warnings, warnf(WarnDataInconsistency,
				"lots %d and %d quantize to the same %s buy price %s after the split", prev, id, lot.Strategy, PriceKey(lot.BuyPrice)))
			continue
		}
		p.index[key] = id
	}
}

// saleProfit is the one commission convention in the system: gross profit
// minus commission charged on the sell proceeds. Target pricing compensates
// on the buy side with the inverse adjustment, keeping the two consistent.
func saleProfit(buyPrice, price, qty, commissionPct decimal.Decimal) decimal.Decimal {
	gross := price.Sub(buyPrice).Mul(qty)
	if commissionPct.IsPositive() {
		gross = gross.Sub(price.Mul(qty).Mul(commissionPct).Div(hundred))
	}
	return RoundCurrency(gross)
}

func realizedPct(realizedPL, buyPrice, sharesSold decimal.Decimal) decimal.Decimal {
	basis := buyPrice.Mul(sharesSold)
	if !basis.IsPositive() {
		return decimal.Zero
	}
	return RoundCurrency(realizedPL.Div(basis).Mul(hundred))
}
