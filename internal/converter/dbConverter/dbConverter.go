package dbConverter

import (
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/dbModel"
)

func ConvertStock(dbStock dbModel.Stock) model.Stock {
	return model.Stock{
		StockID:       dbStock.StockID,
		Symbol:        dbStock.Symbol,
		Name:          dbStock.Name,
		SwingRatioPct: dbStock.SwingRatioPct,
		PriceDropPct:  dbStock.PriceDropPct,
		SwingTpPct:    dbStock.SwingTpPct,
		HoldTpPct:     dbStock.HoldTpPct,
		CommissionPct: dbStock.CommissionPct,
		RiskBudget:    dbStock.RiskBudget,
		OutOfPocket:   dbStock.OutOfPocket,
		CashBalance:   dbStock.CashBalance,
		Archived:      dbStock.Archived,
	}
}

func ConvertLedgerEvent(dbEvent dbModel.LedgerEvent) model.LedgerEvent {
	return model.LedgerEvent{
		EventID:         dbEvent.EventID,
		StockID:         dbEvent.StockID,
		Kind:            model.EventKind(dbEvent.Kind),
		Date:            dbEvent.EventDate,
		Price:           dbEvent.Price,
		Quantity:        dbEvent.Quantity,
		Investment:      dbEvent.Investment,
		Assignment:      model.Assignment(dbEvent.Assignment),
		SwingShares:     dbEvent.SwingShares,
		HoldShares:      dbEvent.HoldShares,
		DropTarget:      dbEvent.DropTarget,
		TpTarget:        dbEvent.TpTarget,
		LotID:           dbEvent.LotID,
		Strategy:        model.Strategy(dbEvent.Strategy),
		Profit:          dbEvent.Profit,
		ProfitPct:       dbEvent.ProfitPct,
		Amount:          dbEvent.Amount,
		SplitMultiplier: dbEvent.SplitMultiplier,
		SplitApplied:    dbEvent.SplitApplied,
	}
}

func ConvertLot(dbLot dbModel.Lot) model.Lot {
	return model.Lot{
		LotID:           dbLot.LotID,
		StockID:         dbLot.StockID,
		Strategy:        model.Strategy(dbLot.Strategy),
		BuyPrice:        dbLot.BuyPrice,
		TotalShares:     dbLot.TotalShares,
		TotalInvestment: dbLot.TotalInvestment,
		SharesSold:      dbLot.SharesSold,
		RemainingShares: dbLot.RemainingShares,
		RealizedPL:      dbLot.RealizedPL,
		RealizedPLPct:   dbLot.RealizedPLPct,
		TpValue:         dbLot.TpValue,
		SellTxnCount:    dbLot.SellTxnCount,
	}
}
