package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/infrastructure/resilience"
)

type LedgerRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return NewLedgerRepositoryWithExecutor(db, nil)
}

// NewLedgerRepositoryWithExecutor retries transient insert failures through
// executor. Inserts are keyed by entry ID so a retried write lands once.
func NewLedgerRepositoryWithExecutor(db *sql.DB, executor *resilience.Executor) *LedgerRepository {
	return &LedgerRepository{db: db, executor: executor}
}

func (r *LedgerRepository) Insert(ctx context.Context, entry *domain.LedgerEntry) error {
	call := func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO ledger_entries (id, owner_id, category, description, amount, transaction_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`,
			entry.ID, entry.OwnerID, string(entry.Category), entry.Description, entry.Amount,
			entry.TransactionDate, entry.CreatedAt.UTC(),
		)
		return err
	}

	var err error
	if r.executor != nil {
		err = r.executor.Execute(ctx, resilience.OpLedgerInsert, call, classifyPostgresError)
	} else {
		err = call(ctx)
	}
	if err == nil {
		return nil
	}
	if class := classifyPostgresError(err); class.Retryable {
		return domain.WrapError(domain.ErrTemporary, "insert ledger entry", err)
	}
	return fmt.Errorf("insert ledger entry: %w", err)
}

func (r *LedgerRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, category, description, amount, transaction_date, created_at
FROM ledger_entries
WHERE owner_id = $1
ORDER BY transaction_date DESC, created_at DESC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var (
			entry    domain.LedgerEntry
			category string
		)
		if err := rows.Scan(
			&entry.ID, &entry.OwnerID, &category, &entry.Description, &entry.Amount,
			&entry.TransactionDate, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Category = domain.Category(category)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}

func classifyPostgresError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 40001/40P01: serialization failure and
		// deadlock, 57P03: cannot connect now.
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "57P03" {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
