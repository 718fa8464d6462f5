package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryEssential Category = "ESSENTIAL"
	CategoryWants     Category = "WANTS"
	CategoryIncome    Category = "INCOME"
	CategorySavings   Category = "SAVINGS"
	CategoryOther     Category = "OTHER"
)

// CategoryPriority is the tie-break order used when a description matches
// keywords from more than one category.
var CategoryPriority = []Category{
	CategoryEssential,
	CategoryWants,
	CategoryIncome,
	CategorySavings,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryEssential, CategoryWants, CategoryIncome, CategorySavings, CategoryOther:
		return true
	default:
		return false
	}
}

// RawTransaction is one parsed statement line. Date carries no time component.
type RawTransaction struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type LedgerEntry struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	Category        Category        `json:"category"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExtractionResult is the success variant of one extraction pipeline run.
type ExtractionResult struct {
	Transactions []RawTransaction
	Pages        int
	EmptyPages   int
}
