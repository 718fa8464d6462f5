package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

const (
	DefaultRunTimeout = 5 * time.Minute
	DefaultStaleAfter = 15 * time.Minute

	// StatementBlobPrefix is the storage prefix holding temporary statements.
	StatementBlobPrefix = "statements"
)

type StatementOptions struct {
	RunTimeout time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger
	Metrics    ports.RunMetrics
	Now        func() time.Time
	// NewClaimID issues the token that ties a run to its job record.
	NewClaimID func() string
}

// StatementUseCase owns the statement job state machine: it claims a job on
// submit, hands it to background execution and drives the run to a terminal
// status.
type StatementUseCase struct {
	profiles    ports.ProfileStore
	ledger      ports.LedgerStore
	storage     ports.BlobStorage
	validator   *UploadValidator
	pipeline    *ExtractionPipeline
	categorizer ports.Categorizer
	dispatcher  ports.JobDispatcher

	runTimeout time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	metrics    ports.RunMetrics
	now        func() time.Time
	newClaimID func() string
}

func NewStatementUseCase(
	profiles ports.ProfileStore,
	ledger ports.LedgerStore,
	storage ports.BlobStorage,
	validator *UploadValidator,
	pipeline *ExtractionPipeline,
	categorizer ports.Categorizer,
	dispatcher ports.JobDispatcher,
	opts StatementOptions,
) *StatementUseCase {
	uc := &StatementUseCase{
		profiles:    profiles,
		ledger:      ledger,
		storage:     storage,
		validator:   validator,
		pipeline:    pipeline,
		categorizer: categorizer,
		dispatcher:  dispatcher,
		runTimeout:  opts.RunTimeout,
		staleAfter:  opts.StaleAfter,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
		newClaimID:  opts.NewClaimID,
	}
	if uc.validator == nil {
		uc.validator = NewUploadValidator(DefaultMaxUploadBytes)
	}
	if uc.runTimeout <= 0 {
		uc.runTimeout = DefaultRunTimeout
	}
	if uc.staleAfter <= 0 {
		uc.staleAfter = DefaultStaleAfter
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	if uc.metrics == nil {
		uc.metrics = noopMetrics{}
	}
	if uc.now == nil {
		uc.now = func() time.Time { return time.Now().UTC() }
	}
	if uc.newClaimID == nil {
		uc.newClaimID = uuid.NewString
	}
	return uc
}

// Submit validates an upload and, when accepted, starts a background run.
func (uc *StatementUseCase) Submit(
	ctx context.Context,
	ownerID string,
	file io.ReadSeeker,
	declaredSize int64,
) (*domain.ProcessingJob, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "submit statement", fmt.Errorf("owner identity is required"))
	}
	if err := uc.validator.Validate(file, declaredSize); err != nil {
		return nil, err
	}
	return uc.Start(ctx, ownerID, file)
}

// Start claims the owner's job, stores the document and dispatches the run.
// It never waits for extraction.
func (uc *StatementUseCase) Start(ctx context.Context, ownerID string, body io.Reader) (*domain.ProcessingJob, error) {
	profile, err := uc.profiles.EnsureProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	now := uc.now()
	claimed, err := profile.Job.Begin(now, uc.staleAfter, uc.newClaimID())
	if err != nil {
		return nil, fmt.Errorf("start statement job: %w", err)
	}
	if profile.Job.Status == domain.JobStatusProcessing {
		uc.logger.Warn("statement_stale_claim_retaken", "owner_id", ownerID, "previous_claim", profile.Job.ClaimID)
	}
	if err := uc.profiles.SaveJob(ctx, ownerID, profile.Job, claimed); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	key := statementBlobKey(ownerID, now)
	if err := uc.storage.Save(ctx, key, body); err != nil {
		saveErr := fmt.Errorf("store statement: %w", err)
		uc.abort(ctx, ownerID, claimed, saveErr)
		return nil, saveErr
	}

	job := domain.StatementJob{
		OwnerID:     ownerID,
		ClaimID:     claimed.ClaimID,
		BlobKey:     key,
		SubmittedAt: now,
	}
	if err := uc.dispatcher.Dispatch(ctx, job); err != nil {
		dispatchErr := fmt.Errorf("dispatch statement job: %w", err)
		uc.deleteBlob(ctx, key)
		uc.abort(ctx, ownerID, claimed, dispatchErr)
		return nil, dispatchErr
	}

	uc.logger.Info("statement_job_started", "owner_id", ownerID, "blob_key", key)
	return &claimed, nil
}

// abort moves a job that never reached the worker into ERROR.
func (uc *StatementUseCase) abort(ctx context.Context, ownerID string, claimed domain.ProcessingJob, cause error) {
	failed, err := claimed.Fail(cause.Error())
	if err != nil {
		return
	}
	if err := uc.profiles.SaveJob(context.WithoutCancel(ctx), ownerID, claimed, failed); err != nil {
		uc.logger.Error("statement_job_abort_failed", "owner_id", ownerID, "cause", cause, "error", err)
	}
}

// statementBlobKey is unique per owner and submission instant.
func statementBlobKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("%s/user_%s_%d.pdf", StatementBlobPrefix, sanitizeKeyPart(ownerID), now.UnixNano())
}

func sanitizeKeyPart(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		return "anonymous"
	}
	return name
}

type noopMetrics struct{}

func (noopMetrics) StartRun() {}
func (noopMetrics) FinishRun(time.Duration, domain.JobStatus) {}
func (noopMetrics) ObserveDispatchLag(time.Duration) {}
func (noopMetrics) RecordLedgerEntry(domain.Category) {}
