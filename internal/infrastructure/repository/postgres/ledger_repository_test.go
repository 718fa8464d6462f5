package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/infrastructure/resilience"
)

type decimalArg struct {
	want decimal.Decimal
}

func (a decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(a.want)
}

func sampleEntry() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:              "entry-1",
		OwnerID:         "42",
		Category:        domain.CategoryEssential,
		Description:     "Grocery Store",
		Amount:          decimal.RequireFromString("-45.67"),
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:       fixedNow,
	}
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Operations: map[string]resilience.RetryPolicy{
			resilience.OpLedgerInsert: {
				MaxAttempts:    3,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     2 * time.Millisecond,
				Multiplier:     2,
			},
		},
	})
}

func TestLedgerInsertWritesExactAmount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	entry := sampleEntry()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs("entry-1", "42", "ESSENTIAL", "Grocery Store", decimalArg{want: entry.Amount}, entry.TransactionDate, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewLedgerRepository(db).Insert(context.Background(), entry); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerInsertRetriesSerializationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewLedgerRepositoryWithExecutor(db, fastExecutor())
	if err := repo.Insert(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerInsertDoesNotRetryConstraintViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	violation := &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	mock.ExpectExec("INSERT INTO ledger_entries").WillReturnError(violation)

	repo := NewLedgerRepositoryWithExecutor(db, fastExecutor())
	err = repo.Insert(context.Background(), sampleEntry())
	if !errors.As(err, new(*pgconn.PgError)) {
		t.Fatalf("expected pg error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("constraint violation must not be temporary")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerInsertMarksExhaustedRetriesTemporary(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO ledger_entries").WillReturnError(&pgconn.PgError{Code: "08006"})
	}

	err = NewLedgerRepositoryWithExecutor(db, fastExecutor()).Insert(context.Background(), sampleEntry())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerListByOwnerScansDecimals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "category", "description", "amount", "transaction_date", "created_at"}).
		AddRow("e-2", "42", "INCOME", "Monthly Salary", "2500.00", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), fixedNow).
		AddRow("e-1", "42", "ESSENTIAL", "Grocery Store", "-45.67", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), fixedNow)
	mock.ExpectQuery("FROM ledger_entries").
		WithArgs("42", 50).
		WillReturnRows(rows)

	entries, err := NewLedgerRepository(db).ListByOwner(context.Background(), "42", 50)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[1].Amount.Equal(decimal.RequireFromString("-45.67")) || entries[1].Category != domain.CategoryEssential {
		t.Fatalf("unexpected entry %+v", entries[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
