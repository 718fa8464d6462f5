package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

type profileStoreFake struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	history  []domain.JobStatus
	saveErr  error
}

func newProfileStoreFake() *profileStoreFake {
	return &profileStoreFake{profiles: make(map[string]*domain.Profile)}
}

func (f *profileStoreFake) EnsureProfile(_ context.Context, ownerID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[ownerID]
	if !ok {
		p = domain.NewProfile(ownerID, time.Now().UTC())
		f.profiles[ownerID] = p
	}
	copyProfile := *p
	return &copyProfile, nil
}

func (f *profileStoreFake) GetProfile(_ context.Context, ownerID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[ownerID]
	if !ok {
		return nil, domain.WrapError(domain.ErrProfileNotFound, "get profile", fmt.Errorf("owner=%s", ownerID))
	}
	copyProfile := *p
	return &copyProfile, nil
}

func (f *profileStoreFake) UpdatePreferences(_ context.Context, ownerID string, prefs domain.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[ownerID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Preferences = prefs
	return nil
}

func (f *profileStoreFake) SaveJob(_ context.Context, ownerID string, expected, next domain.ProcessingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	p, ok := f.profiles[ownerID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	if p.Job.Status != expected.Status || p.Job.ClaimID != expected.ClaimID {
		return domain.WrapError(domain.ErrJobConflict, "save job",
			fmt.Errorf("expected %s/%s, found %s/%s", expected.Status, expected.ClaimID, p.Job.Status, p.Job.ClaimID))
	}
	p.Job = next
	f.history = append(f.history, next.Status)
	return nil
}

func (f *profileStoreFake) job(ownerID string) domain.ProcessingJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[ownerID]; ok {
		return p.Job
	}
	return domain.NewProcessingJob()
}

func (f *profileStoreFake) setJob(ownerID string, job domain.ProcessingJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[ownerID]
	if !ok {
		p = domain.NewProfile(ownerID, time.Now().UTC())
		f.profiles[ownerID] = p
	}
	p.Job = job
}

type ledgerFake struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
	// failAt is the 1-based insert that fails; zero never fails.
	failAt int
	calls  int
}

func (f *ledgerFake) Insert(_ context.Context, entry *domain.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return errors.New("ledger store unavailable")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *ledgerFake) ListByOwner(_ context.Context, ownerID string, limit int) ([]domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LedgerEntry, 0)
	for _, e := range f.entries {
		if e.OwnerID == ownerID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type blobFake struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	deleteCalls map[string]int
	saveErr     error
}

func newBlobFake() *blobFake {
	return &blobFake{
		blobs:       make(map[string][]byte),
		deleteCalls: make(map[string]int),
	}
}

func (f *blobFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = raw
	return nil
}

func (f *blobFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *blobFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls[key]++
	delete(f.blobs, key)
	return nil
}

func (f *blobFake) deletes(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls[key]
}

type extractorFake struct {
	mu      sync.Mutex
	pages   []string
	openErr error
	pageErr error
	calls   int
	// onOpen runs before each Open, outside the lock.
	onOpen func()
}

func (f *extractorFake) Open(context.Context, io.ReaderAt, int64) (ports.PageIterator, error) {
	if f.onOpen != nil {
		f.onOpen()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &pagesFake{pages: f.pages, err: f.pageErr}, nil
}

func (f *extractorFake) openCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type pagesFake struct {
	pages []string
	next  int
	err   error
}

func (p *pagesFake) Next() (string, error) {
	if p.next >= len(p.pages) {
		if p.err != nil {
			return "", p.err
		}
		return "", io.EOF
	}
	page := p.pages[p.next]
	p.next++
	return page, nil
}

func (p *pagesFake) Count() int { return len(p.pages) }

type dispatcherFake struct {
	mu   sync.Mutex
	jobs []domain.StatementJob
	err  error
}

func (f *dispatcherFake) Dispatch(_ context.Context, job domain.StatementJob) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *dispatcherFake) last() domain.StatementJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[len(f.jobs)-1]
}

func pdfPayload(body string) []byte {
	return []byte("%PDF-1.4\n" + body)
}

type exporterFake struct {
	entries  []domain.LedgerEntry
	currency domain.Currency
}

func (f *exporterFake) ContentType() string { return "application/test" }

func (f *exporterFake) Write(w io.Writer, entries []domain.LedgerEntry, currency domain.Currency) error {
	f.entries = entries
	f.currency = currency
	_, err := io.WriteString(w, "exported")
	return err
}
