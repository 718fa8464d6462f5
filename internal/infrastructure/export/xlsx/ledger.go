// Package xlsx renders ledger entries as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

const (
	ledgerSheet  = "Ledger"
	summarySheet = "Summary"
)

type LedgerExporter struct{}

func NewLedgerExporter() *LedgerExporter {
	return &LedgerExporter{}
}

func (e *LedgerExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write emits a Ledger sheet with one row per entry and a Summary sheet with
// per-category totals. Totals are summed as decimals before conversion.
func (e *LedgerExporter) Write(w io.Writer, entries []domain.LedgerEntry, currency domain.Currency) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("rename ledger sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}

	amountHeader := fmt.Sprintf("Amount (%s)", currency)
	if err := f.SetSheetRow(ledgerSheet, "A1", &[]any{"Date", "Description", "Category", amountHeader}); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	if err := f.SetCellStyle(ledgerSheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("style ledger header: %w", err)
	}

	totals := make(map[domain.Category]decimal.Decimal)
	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			entry.TransactionDate.Format("2006-01-02"),
			entry.Description,
			string(entry.Category),
			entry.Amount.InexactFloat64(),
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return fmt.Errorf("write ledger row %d: %w", i+1, err)
		}
		totals[entry.Category] = totals[entry.Category].Add(entry.Amount)
	}
	if len(entries) > 0 {
		last := fmt.Sprintf("D%d", len(entries)+1)
		if err := f.SetCellStyle(ledgerSheet, "D2", last, amountStyle); err != nil {
			return fmt.Errorf("style ledger amounts: %w", err)
		}
	}
	if err := f.SetColWidth(ledgerSheet, "B", "B", 40); err != nil {
		return fmt.Errorf("size description column: %w", err)
	}

	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"Category", amountHeader}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	row := 2
	for _, category := range append(append([]domain.Category{}, domain.CategoryPriority...), domain.CategoryOther) {
		total, ok := totals[category]
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &[]any{string(category), total.InexactFloat64()}); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
		row++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
