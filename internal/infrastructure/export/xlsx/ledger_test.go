package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

func TestWriteProducesLedgerAndSummarySheets(t *testing.T) {
	entries := []domain.LedgerEntry{
		{Category: domain.CategoryEssential, Description: "Grocery Store", Amount: decimal.RequireFromString("-45.67"), TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{Category: domain.CategoryEssential, Description: "Rent Payment", Amount: decimal.RequireFromString("-1200.00"), TransactionDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Category: domain.CategoryIncome, Description: "Monthly Salary", Amount: decimal.RequireFromString("2500.00"), TransactionDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	if err := NewLedgerExporter().Write(&buf, entries, domain.CurrencyEUR); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetRows(ledger) error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][3] != "Amount (EUR)" {
		t.Fatalf("unexpected amount header %q", rows[0][3])
	}
	if rows[1][0] != "2024-01-15" || rows[1][1] != "Grocery Store" || rows[1][2] != "ESSENTIAL" || rows[1][3] != "-45.67" {
		t.Fatalf("unexpected first row %v", rows[1])
	}

	summary, err := f.GetRows(summarySheet, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetRows(summary) error = %v", err)
	}
	if len(summary) != 3 {
		t.Fatalf("expected header + 2 categories, got %v", summary)
	}
	if summary[1][0] != "ESSENTIAL" || summary[1][1] != "-1245.67" {
		t.Fatalf("unexpected essential total %v", summary[1])
	}
	if summary[2][0] != "INCOME" || summary[2][1] != "2500" {
		t.Fatalf("unexpected income total %v", summary[2])
	}
}

func TestWriteHandlesEmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	if err := NewLedgerExporter().Write(&buf, nil, domain.CurrencyUSD); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}
