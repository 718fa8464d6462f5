package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

// runSuperseded labels runs whose claim was re-taken. It is a metrics label
// only and never persisted.
const runSuperseded domain.JobStatus = "SUPERSEDED"

// Run executes one background extraction. The temporary document is deleted
// exactly once on every exit path. A run whose claim was re-taken by a newer
// upload stops without touching the job record.
func (uc *StatementUseCase) Run(ctx context.Context, job domain.StatementJob) error {
	started := uc.now()
	logger := uc.logger.With("owner_id", job.OwnerID, "blob_key", job.BlobKey, "claim_id", job.ClaimID)

	uc.metrics.StartRun()
	uc.metrics.ObserveDispatchLag(started.Sub(job.SubmittedAt))
	finalStatus := domain.JobStatusError
	defer func() {
		uc.metrics.FinishRun(uc.now().Sub(started), finalStatus)
	}()
	defer uc.deleteBlob(ctx, job.BlobKey)

	if current, err := uc.currentJob(ctx, job.OwnerID); err == nil && !current.OwnedBy(job.ClaimID) {
		finalStatus = runSuperseded
		logger.Warn("statement_run_superseded", "stage", "start", "current_claim", current.ClaimID)
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, uc.runTimeout)
	defer cancel()

	result, err := uc.pipeline.Extract(runCtx, job.BlobKey)
	if err != nil {
		logger.Warn("statement_extraction_failed", "error", err)
		return uc.markFailed(ctx, job, err)
	}

	if err := uc.markCompleted(ctx, job); err != nil {
		if domain.IsKind(err, domain.ErrClaimSuperseded) {
			finalStatus = runSuperseded
			logger.Warn("statement_run_superseded", "stage", "complete", "error", err)
			return nil
		}
		return uc.markFailed(ctx, job, err)
	}
	finalStatus = domain.JobStatusCompleted

	if err := uc.persistTransactions(runCtx, job.OwnerID, result.Transactions); err != nil {
		finalStatus = domain.JobStatusError
		return uc.markFailed(ctx, job, err)
	}

	logger.Info("statement_run_completed",
		"pages", result.Pages,
		"empty_pages", result.EmptyPages,
		"transactions", len(result.Transactions),
		"duration_ms", float64(uc.now().Sub(started).Microseconds())/1000.0,
	)
	return nil
}

func (uc *StatementUseCase) persistTransactions(ctx context.Context, ownerID string, txs []domain.RawTransaction) error {
	for i, tx := range txs {
		entry := &domain.LedgerEntry{
			ID:              uuid.NewString(),
			OwnerID:         ownerID,
			Category:        uc.categorizer.Categorize(tx.Description),
			Description:     tx.Description,
			Amount:          tx.Amount,
			TransactionDate: tx.Date,
			CreatedAt:       uc.now(),
		}
		if err := uc.ledger.Insert(ctx, entry); err != nil {
			uc.logger.Error("ledger_write_failed",
				"owner_id", ownerID,
				"persisted", i,
				"total", len(txs),
				"error", err,
			)
			return fmt.Errorf("persist ledger entry %d of %d: %w", i+1, len(txs), err)
		}
		uc.metrics.RecordLedgerEntry(entry.Category)
	}
	return nil
}

func (uc *StatementUseCase) markCompleted(ctx context.Context, job domain.StatementJob) error {
	current, err := uc.currentJob(ctx, job.OwnerID)
	if err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	if !current.OwnedBy(job.ClaimID) {
		return domain.WrapError(domain.ErrClaimSuperseded, "set status=completed",
			fmt.Errorf("claim %s replaced by %s", job.ClaimID, current.ClaimID))
	}
	next, err := current.Complete(uc.now())
	if err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	if err := uc.profiles.SaveJob(context.WithoutCancel(ctx), job.OwnerID, current, next); err != nil {
		if domain.IsKind(err, domain.ErrJobConflict) {
			return domain.WrapError(domain.ErrClaimSuperseded, "set status=completed", err)
		}
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

// markFailed records runErr on the job and returns it, joined with any error
// hit while persisting the failure. A superseded run leaves the record alone.
func (uc *StatementUseCase) markFailed(ctx context.Context, job domain.StatementJob, runErr error) error {
	writeCtx := context.WithoutCancel(ctx)
	current, err := uc.currentJob(writeCtx, job.OwnerID)
	if err != nil {
		return fmt.Errorf("%w; mark failed status: %v", runErr, err)
	}
	if !current.OwnedBy(job.ClaimID) {
		uc.logger.Warn("statement_run_superseded",
			"owner_id", job.OwnerID,
			"claim_id", job.ClaimID,
			"current_claim", current.ClaimID,
			"stage", "fail",
			"error", runErr,
		)
		return runErr
	}
	next, err := current.Fail(runErr.Error())
	if err != nil {
		return fmt.Errorf("%w; mark failed status: %v", runErr, err)
	}
	if err := uc.profiles.SaveJob(writeCtx, job.OwnerID, current, next); err != nil {
		return fmt.Errorf("%w; mark failed status: %v", runErr, err)
	}
	return runErr
}

func (uc *StatementUseCase) currentJob(ctx context.Context, ownerID string) (domain.ProcessingJob, error) {
	profile, err := uc.profiles.GetProfile(ctx, ownerID)
	if err != nil {
		return domain.ProcessingJob{}, err
	}
	return profile.Job, nil
}

func (uc *StatementUseCase) deleteBlob(ctx context.Context, key string) {
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := uc.storage.Delete(deleteCtx, key); err != nil {
		uc.logger.Warn("statement_blob_delete_failed", "blob_key", key, "error", err)
	}
}
