// Package regexparser finds transaction-shaped lines in statement text with a
// fixed date / description / amount pattern.
package regexparser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

const DateLayout = "01/02/2006"

// amountLimit is the first magnitude the ledger's NUMERIC(14,2) column
// cannot hold.
var amountLimit = decimal.New(1, 12)

// DefaultPattern matches "MM/DD/YYYY <description> <[-+][$]amount>". The
// amount always carries exactly two decimals and may use comma thousands
// separators.
var DefaultPattern = regexp.MustCompile(
	`(\d{2}/\d{2}/\d{4})\s+([A-Za-z0-9\s]+?)\s+([-+]?\$?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})`,
)

type Parser struct {
	pattern *regexp.Regexp
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	return NewWithPattern(DefaultPattern, logger)
}

// NewWithPattern builds a parser for another statement layout. The pattern
// must expose date, description and amount as its first three groups.
func NewWithPattern(pattern *regexp.Regexp, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{pattern: pattern, logger: logger}
}

// Parse scans left to right for non-overlapping matches. A match whose date
// does not parse is skipped and scanning resumes after it.
func (p *Parser) Parse(ctx context.Context, pageText string) []domain.RawTransaction {
	matches := p.pattern.FindAllStringSubmatch(pageText, -1)
	out := make([]domain.RawTransaction, 0, len(matches))
	for _, m := range matches {
		if len(m) < 4 {
			continue
		}
		tx, err := newTransaction(m[1], m[2], m[3])
		if err != nil {
			p.logger.DebugContext(ctx, "statement_match_skipped", "match", m[0], "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out
}

func newTransaction(dateRaw, descriptionRaw, amountRaw string) (domain.RawTransaction, error) {
	date, err := ParseDate(dateRaw)
	if err != nil {
		return domain.RawTransaction{}, err
	}
	amount, err := ParseAmount(amountRaw)
	if err != nil {
		return domain.RawTransaction{}, err
	}
	return domain.RawTransaction{
		Date:        date,
		Description: strings.TrimSpace(descriptionRaw),
		Amount:      amount,
	}, nil
}

// ParseDate parses MM/DD/YYYY strictly; out-of-range months or days fail.
func ParseDate(raw string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return date, nil
}

// ParseAmount strips the currency symbol and thousands separators and parses
// the rest as an exact signed decimal. Amounts of 10^12 or more are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: empty", raw)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if amount.Abs().GreaterThanOrEqual(amountLimit) {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: exceeds %s", raw, amountLimit)
	}
	return amount, nil
}
