package ports

import (
	"context"
	"io"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

// StatementSubmitter is the inbound contract for statement upload orchestration.
type StatementSubmitter interface {
	Submit(ctx context.Context, ownerID string, file io.ReadSeeker, declaredSize int64) (*domain.ProcessingJob, error)
}

// StatementRunner executes one background extraction run.
type StatementRunner interface {
	Run(ctx context.Context, job domain.StatementJob) error
}

// StatementRunnerFunc adapts a plain function to StatementRunner.
type StatementRunnerFunc func(ctx context.Context, job domain.StatementJob) error

func (f StatementRunnerFunc) Run(ctx context.Context, job domain.StatementJob) error {
	return f(ctx, job)
}

// StatusReporter answers polling clients.
type StatusReporter interface {
	Status(ctx context.Context, ownerID string) (domain.StatusReport, error)
}

// ProfileService reads and updates profile preferences.
type ProfileService interface {
	GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error)
	UpdatePreferences(ctx context.Context, ownerID string, prefs domain.Preferences) (*domain.Profile, error)
}

// LedgerReader lists persisted ledger entries for an owner.
type LedgerReader interface {
	ListEntries(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error)
	ExportEntries(ctx context.Context, ownerID string, w io.Writer) error
	ExportContentType() string
}
