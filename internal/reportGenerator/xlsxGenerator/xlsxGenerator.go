package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/utils"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders a portfolio statement: one sheet with the holdings and the
// portfolio rollup, one sheet with the full transaction history.
func (g *XLSXGenerator) Generate(ctx context.Context, summary model.PortfolioSummary, holdings []model.Holding, txs map[string][]model.Transaction) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillHoldingsSheet(f, summary, holdings); err != nil {
		return nil, "", err
	}
	if err := g.fillTransactionsSheet(f, holdings, txs); err != nil {
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

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillHoldingsSheet(f *excelize.File, summary model.PortfolioSummary, holdings []model.Holding) error {
	const sheetName = "Holdings"

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	headers := []string{"Type", "Symbol", "Name", "Quantity", "Avg Cost", "Total Cost", "Current Price", "Current Value", "Income", "Last Transaction"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	row := 2
	for _, h := range holdings {
		lastTx := ""
		if !h.LastTransactionDate.IsZero() {
			lastTx = h.LastTransactionDate.Format("2006-01-02")
		}

		values := []any{
			string(h.Type),
			h.Symbol,
			h.Name,
			h.TotalQuantity.String(),
			h.AvgCost.StringFixed(2),
			h.TotalCost.StringFixed(2),
			h.CurrentPrice.StringFixed(2),
			h.CurrentValue.StringFixed(2),
			h.TotalIncome.StringFixed(2),
			lastTx,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total cost")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), summary.TotalCost.StringFixed(2))
	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Current value")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), summary.CurrentValue.StringFixed(2))
	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total income")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), summary.TotalIncome.StringFixed(2))
	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total gain")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), summary.TotalGain.StringFixed(2))
	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total return %")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), summary.TotalReturn.StringFixed(2))

	return nil
}

func (g *XLSXGenerator) fillTransactionsSheet(f *excelize.File, holdings []model.Holding, txs map[string][]model.Transaction) error {
	const sheetName = "Transactions"

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	symbols := make(map[string]string, len(holdings))
	for _, h := range holdings {
		symbols[h.ID] = h.Symbol
	}

	headers := []string{"Symbol", "Date", "Type", "Quantity", "Price", "Amount"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	row := 2
	for _, h := range holdings {
		for _, tx := range txs[h.ID] {
			values := []any{
				symbols[tx.HoldingID],
				tx.Date.Format("2006-01-02"),
				string(tx.Type),
				tx.Quantity.String(),
				tx.Price.StringFixed(2),
				tx.Amount.StringFixed(2),
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				f.SetCellValue(sheetName, cell, v)
			}
			row++
		}
	}

	return nil
}
