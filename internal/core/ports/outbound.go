package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

// ProfileStore persists profiles and their statement job state.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, ownerID string) (*domain.Profile, error)
	GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error)
	UpdatePreferences(ctx context.Context, ownerID string, prefs domain.Preferences) error
	// SaveJob writes next only if the stored status and claim still equal
	// those of expected. A lost race reports domain.ErrJobConflict.
	SaveJob(ctx context.Context, ownerID string, expected, next domain.ProcessingJob) error
}

// LedgerStore is the append-only transaction ledger.
type LedgerStore interface {
	Insert(ctx context.Context, entry *domain.LedgerEntry) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error)
}

// BlobStorage holds temporary statement documents.
type BlobStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PageIterator yields page text lazily. Next returns io.EOF after the last
// page; an empty string is a page without extractable text.
type PageIterator interface {
	Next() (string, error)
	Count() int
}

// DocumentTextExtractor opens a paginated document.
type DocumentTextExtractor interface {
	Open(ctx context.Context, doc io.ReaderAt, size int64) (PageIterator, error)
}

// StatementParser turns page text into transactions.
type StatementParser interface {
	Parse(ctx context.Context, pageText string) []domain.RawTransaction
}

// Categorizer assigns a budget category to a description.
type Categorizer interface {
	Categorize(description string) domain.Category
}

// LedgerExporter renders ledger entries as a downloadable document.
type LedgerExporter interface {
	ContentType() string
	Write(w io.Writer, entries []domain.LedgerEntry, currency domain.Currency) error
}

// JobDispatcher hands a claimed job to background execution without blocking.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job domain.StatementJob) error
}

// RunMetrics records background run observations.
type RunMetrics interface {
	StartRun()
	FinishRun(duration time.Duration, status domain.JobStatus)
	ObserveDispatchLag(lag time.Duration)
	RecordLedgerEntry(category domain.Category)
}
