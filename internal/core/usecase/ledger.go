package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

const (
	defaultLedgerLimit = 100
	maxLedgerLimit     = 1000
)

type LedgerUseCase struct {
	ledger   ports.LedgerStore
	profiles ports.ProfileStore
	exporter ports.LedgerExporter
}

func NewLedgerUseCase(ledger ports.LedgerStore, profiles ports.ProfileStore, exporter ports.LedgerExporter) *LedgerUseCase {
	return &LedgerUseCase{ledger: ledger, profiles: profiles, exporter: exporter}
}

func (uc *LedgerUseCase) ListEntries(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "list ledger", fmt.Errorf("owner identity is required"))
	}
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if limit > maxLedgerLimit {
		limit = maxLedgerLimit
	}
	entries, err := uc.ledger.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// ExportEntries writes up to the maximum page of entries in the owner's
// preferred currency. Owners without a profile export an empty ledger.
func (uc *LedgerUseCase) ExportEntries(ctx context.Context, ownerID string, w io.Writer) error {
	if uc.exporter == nil {
		return fmt.Errorf("ledger export is not configured")
	}
	entries, err := uc.ListEntries(ctx, ownerID, maxLedgerLimit)
	if err != nil {
		return err
	}

	currency := domain.DefaultPreferences().Currency
	profile, err := uc.profiles.GetProfile(ctx, ownerID)
	switch {
	case err == nil:
		currency = profile.Preferences.Currency
	case domain.IsKind(err, domain.ErrProfileNotFound):
	default:
		return fmt.Errorf("load profile: %w", err)
	}

	if err := uc.exporter.Write(w, entries, currency); err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}
	return nil
}

func (uc *LedgerUseCase) ExportContentType() string {
	if uc.exporter == nil {
		return "application/octet-stream"
	}
	return uc.exporter.ContentType()
}
