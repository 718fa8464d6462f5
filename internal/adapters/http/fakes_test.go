package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/kakeibo/internal/config"
	"github.com/kirillkom/kakeibo/internal/core/domain"
)

type submitterFake struct {
	err      error
	owner    string
	received []byte
	size     int64
}

func (f *submitterFake) Submit(_ context.Context, ownerID string, file io.ReadSeeker, declaredSize int64) (*domain.ProcessingJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.owner = ownerID
	f.received = raw
	f.size = declaredSize

	job, err := domain.NewProcessingJob().Begin(time.Now(), time.Minute, "claim-1")
	if err != nil {
		return nil, err
	}
	return &job, nil
}

type statusFake struct {
	report domain.StatusReport
	err    error
}

func (f statusFake) Status(context.Context, string) (domain.StatusReport, error) {
	return f.report, f.err
}

type profileServiceFake struct {
	profile *domain.Profile
	updated *domain.Preferences
	err     error
}

func (f *profileServiceFake) GetProfile(_ context.Context, ownerID string) (*domain.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		f.profile = domain.NewProfile(ownerID, time.Now().UTC())
	}
	return f.profile, nil
}

func (f *profileServiceFake) UpdatePreferences(_ context.Context, ownerID string, prefs domain.Preferences) (*domain.Profile, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	f.updated = &prefs
	p := domain.NewProfile(ownerID, time.Now().UTC())
	p.Preferences = prefs
	return p, nil
}

type ledgerReaderFake struct {
	entries   []domain.LedgerEntry
	lastLimit int
	err       error
}

func (f *ledgerReaderFake) ListEntries(_ context.Context, _ string, limit int) ([]domain.LedgerEntry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

func (f *ledgerReaderFake) ExportEntries(_ context.Context, _ string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "PK-fake-workbook")
	return err
}

func (f *ledgerReaderFake) ExportContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

type routerDeps struct {
	submitter *submitterFake
	status    statusFake
	profiles  *profileServiceFake
	ledger    *ledgerReaderFake
}

func newTestRouter(cfg config.Config, deps routerDeps) http.Handler {
	if deps.submitter == nil {
		deps.submitter = &submitterFake{}
	}
	if deps.profiles == nil {
		deps.profiles = &profileServiceFake{}
	}
	if deps.ledger == nil {
		deps.ledger = &ledgerReaderFake{}
	}
	return NewRouter(cfg, deps.submitter, deps.status, deps.profiles, deps.ledger).Handler()
}
