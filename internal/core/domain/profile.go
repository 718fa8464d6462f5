package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
)

type BudgetStyle string

const (
	BudgetStyle503020   BudgetStyle = "50-30-20"
	BudgetStyle702010   BudgetStyle = "70-20-10"
	BudgetStyleEnvelope BudgetStyle = "ENVELOPE"
	BudgetStyleCustom   BudgetStyle = "CUSTOM"
)

type Preferences struct {
	MonthlyIncome         *decimal.Decimal `json:"monthly_income"`
	Currency              Currency         `json:"currency"`
	BudgetStyle           BudgetStyle      `json:"budget_style"`
	SavingsGoalPercentage int              `json:"savings_goal_percentage"`
	NotificationEmail     bool             `json:"notification_email"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Currency:              CurrencyUSD,
		BudgetStyle:           BudgetStyle503020,
		SavingsGoalPercentage: 20,
		NotificationEmail:     true,
	}
}

func (p Preferences) Validate() error {
	if p.MonthlyIncome != nil && p.MonthlyIncome.IsNegative() {
		return WrapError(ErrInvalidInput, "validate preferences", fmt.Errorf("monthly income must not be negative"))
	}
	switch p.Currency {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY:
	default:
		return WrapError(ErrInvalidInput, "validate preferences", fmt.Errorf("unsupported currency %q", p.Currency))
	}
	switch p.BudgetStyle {
	case BudgetStyle503020, BudgetStyle702010, BudgetStyleEnvelope, BudgetStyleCustom:
	default:
		return WrapError(ErrInvalidInput, "validate preferences", fmt.Errorf("unsupported budget style %q", p.BudgetStyle))
	}
	if p.SavingsGoalPercentage < 0 || p.SavingsGoalPercentage > 100 {
		return WrapError(ErrInvalidInput, "validate preferences", fmt.Errorf("savings goal must be between 0 and 100 percent"))
	}
	return nil
}

type Profile struct {
	OwnerID     string        `json:"owner_id"`
	Preferences Preferences   `json:"preferences"`
	Job         ProcessingJob `json:"statement"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func NewProfile(ownerID string, now time.Time) *Profile {
	return &Profile{
		OwnerID:     ownerID,
		Preferences: DefaultPreferences(),
		Job:         NewProcessingJob(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
