package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

type ProfileRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db, now: time.Now}
}

const profileColumns = `owner_id, monthly_income, currency, budget_style, savings_goal_percentage, notification_email,
	statement_status, statement_claim_id, statement_error, statement_last_completed_at, statement_started_at, created_at, updated_at`

// EnsureProfile creates a profile with default preferences on first contact.
func (r *ProfileRepository) EnsureProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	fresh := domain.NewProfile(ownerID, r.now().UTC())
	prefs := fresh.Preferences
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (
	owner_id, currency, budget_style, savings_goal_percentage, notification_email, statement_status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (owner_id) DO NOTHING
`,
		ownerID, string(prefs.Currency), string(prefs.BudgetStyle), prefs.SavingsGoalPercentage,
		prefs.NotificationEmail, string(fresh.Job.Status), fresh.CreatedAt, fresh.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return r.GetProfile(ctx, ownerID)
}

func (r *ProfileRepository) GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+`
FROM profiles
WHERE owner_id = $1
`, ownerID)

	var (
		p         domain.Profile
		income    decimal.NullDecimal
		currency  string
		style     string
		status    string
		claimID   string
		errDetail sql.NullString
		completed sql.NullTime
		started   sql.NullTime
	)
	err := row.Scan(
		&p.OwnerID, &income, &currency, &style, &p.Preferences.SavingsGoalPercentage, &p.Preferences.NotificationEmail,
		&status, &claimID, &errDetail, &completed, &started, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProfileNotFound, "get profile", fmt.Errorf("owner=%s", ownerID))
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if income.Valid {
		v := income.Decimal
		p.Preferences.MonthlyIncome = &v
	}
	p.Preferences.Currency = domain.Currency(currency)
	p.Preferences.BudgetStyle = domain.BudgetStyle(style)
	p.Job = domain.ProcessingJob{
		Status:          domain.JobStatus(status),
		ClaimID:         claimID,
		ErrorDetail:     errDetail.String,
		LastCompletedAt: timePtr(completed),
		StartedAt:       timePtr(started),
	}
	return &p, nil
}

func (r *ProfileRepository) UpdatePreferences(ctx context.Context, ownerID string, prefs domain.Preferences) error {
	var income any
	if prefs.MonthlyIncome != nil {
		income = *prefs.MonthlyIncome
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE profiles
SET monthly_income = $2, currency = $3, budget_style = $4, savings_goal_percentage = $5, notification_email = $6, updated_at = $7
WHERE owner_id = $1
`, ownerID, income, string(prefs.Currency), string(prefs.BudgetStyle), prefs.SavingsGoalPercentage,
		prefs.NotificationEmail, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update preferences rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrProfileNotFound, "update preferences", fmt.Errorf("owner=%s", ownerID))
	}
	return nil
}

// SaveJob is a compare-and-swap on statement_status and statement_claim_id,
// so a run whose claim was re-taken can no longer write. A lost race reports
// ErrJobConflict; a missing profile reports ErrProfileNotFound.
func (r *ProfileRepository) SaveJob(ctx context.Context, ownerID string, expected, next domain.ProcessingJob) error {
	var errDetail any
	if next.ErrorDetail != "" {
		errDetail = next.ErrorDetail
	}
	expectedStatus := expected.Status
	if expectedStatus == "" {
		expectedStatus = domain.JobStatusNone
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE profiles
SET statement_status = $4, statement_claim_id = $5, statement_error = $6, statement_last_completed_at = $7,
	statement_started_at = $8, updated_at = $9
WHERE owner_id = $1 AND statement_status = $2 AND statement_claim_id = $3
`, ownerID, string(expectedStatus), expected.ClaimID, string(next.Status), next.ClaimID, errDetail,
		nullableTime(next.LastCompletedAt), nullableTime(next.StartedAt), r.now().UTC())
	if err != nil {
		return fmt.Errorf("save statement job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save statement job rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current, currentClaim string
	err = r.db.QueryRowContext(ctx, `SELECT statement_status, statement_claim_id FROM profiles WHERE owner_id = $1`, ownerID).
		Scan(&current, &currentClaim)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrProfileNotFound, "save statement job", fmt.Errorf("owner=%s", ownerID))
		}
		return fmt.Errorf("read statement status: %w", err)
	}
	return domain.WrapError(domain.ErrJobConflict, "save statement job",
		fmt.Errorf("expected %s/%s, found %s/%s", expectedStatus, expected.ClaimID, current, currentClaim))
}
