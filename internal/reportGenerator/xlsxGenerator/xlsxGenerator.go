package xlsxGenerator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) GeneratePortfolioReport(ctx context.Context, overview model.PortfolioOverview) (file io.Reader, filename string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.GeneratePortfolioReport"

	slog.Debug("GeneratePortfolioReport start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err = g.fillPositionsSheet(ctx, f, overview); err != nil {
		return nil, "", err
	}
	if err = g.fillSummarySheet(ctx, f, overview); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("GeneratePortfolioReport completed", slog.String("rqID", rqID), slog.String("op", op))

	filename = fmt.Sprintf("portfolio_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))

	return bytes.NewReader(buf.Bytes()), filename, nil
}

func (g *XLSXGenerator) fillPositionsSheet(ctx context.Context, f *excelize.File, overview model.PortfolioOverview) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.fillPositionsSheet"

	sheetName := "Positions"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = f.MergeCell(sheetName, "A1", "N1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Positions")
	if err = g.applyHeaderStyle(f, sheetName, "A1", "#cfe2f3"); err != nil {
		return err
	}

	headers := []string{
		"symbol", "name", "price", "open lots",
		"tied up", "at risk", "market value",
		"realized P/L", "unrealized P/L", "dividends", "lending income",
		"budget used", "budget available", "signals",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellStr(sheetName, cell, h)
	}

	for i, stock := range overview.Stocks {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), stock.Stock.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", row), stock.Stock.Name)
		setNullableCell(f, sheetName, fmt.Sprintf("C%d", row), stock.CurrentPrice)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("D%d", row), int64(stock.OpenLots))

		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), stock.TiedUpInvestment.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), stock.RiskInvestment.InexactFloat64())
		setNullableCell(f, sheetName, fmt.Sprintf("G%d", row), stock.MarketValue)

		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), stock.Combined.Realized.InexactFloat64())
		setNullableCell(f, sheetName, fmt.Sprintf("I%d", row), stock.Combined.Unrealized)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), stock.Dividends.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), stock.LendingIncome.InexactFloat64())

		_ = f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), stock.BudgetUsed.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("M%d", row), stock.BudgetAvailable.InexactFloat64())
		_ = f.SetCellStr(sheetName, fmt.Sprintf("N%d", row), signalText(stock.Signals))
	}

	return nil
}

func (g *XLSXGenerator) fillSummarySheet(ctx context.Context, f *excelize.File, overview model.PortfolioOverview) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.fillSummarySheet"

	sheetName := "Summary"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = f.MergeCell(sheetName, "A1", "B1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Portfolio summary")
	if err = g.applyHeaderStyle(f, sheetName, "A1", "#d9ead3"); err != nil {
		return err
	}

	rows := []struct {
		label string
		value decimal.NullDecimal
	}{
		{"tied up", decimal.NewNullDecimal(overview.TotalTiedUp)},
		{"at risk", decimal.NewNullDecimal(overview.TotalRisk)},
		{"realized P/L", decimal.NewNullDecimal(overview.TotalRealized)},
		{"unrealized P/L", overview.TotalUnrealized},
		{"dividend + lending income", decimal.NewNullDecimal(overview.TotalIncome)},
		{"combined P/L", overview.CombinedPL},
		{"market value", overview.MarketValue},
		{"ROIC %", overview.ROIC},
	}
	for i, r := range rows {
		row := i + 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), r.label)
		setNullableCell(f, sheetName, fmt.Sprintf("B%d", row), r.value)
	}

	rowNum := len(rows) + 3
	for _, symbol := range overview.MissingPrices {
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "price missing")
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), symbol)
		rowNum++
	}

	return nil
}

func (g *XLSXGenerator) applyHeaderStyle(f *excelize.File, sheetName, cell, color string) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, cell, cell, styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}
	return nil
}

// setNullableCell leaves the cell empty for a null value so "price
// unavailable" never reads as zero in the report.
func setNullableCell(f *excelize.File, sheetName, cell string, value decimal.NullDecimal) {
	if !value.Valid {
		return
	}
	_ = f.SetCellValue(sheetName, cell, value.Decimal.InexactFloat64())
}

func signalText(flags model.SignalFlags) string {
	out := ""
	if flags.DipBuy {
		out += "dip-buy "
	}
	if flags.SwingTakeProfit {
		out += "swing-TP "
	}
	if flags.HoldTakeProfit {
		out += "hold-TP"
	}
	return out
}
