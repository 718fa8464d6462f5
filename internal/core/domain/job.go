package domain

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusNone       JobStatus = "NONE"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusError      JobStatus = "ERROR"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusNone, JobStatusProcessing, JobStatusCompleted, JobStatusError:
		return true
	default:
		return false
	}
}

// ProcessingJob is the statement status record kept on a profile.
// ErrorDetail is non-empty iff Status is ERROR. ClaimID identifies the run
// that owns the record since the last Begin.
type ProcessingJob struct {
	Status          JobStatus  `json:"status"`
	ClaimID         string     `json:"-"`
	ErrorDetail     string     `json:"error,omitempty"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
}

func NewProcessingJob() ProcessingJob {
	return ProcessingJob{Status: JobStatusNone}
}

// Begin moves the job into PROCESSING under claimID. A job already
// PROCESSING is only re-claimable once its claim is older than staleAfter;
// staleAfter <= 0 never lets a running job be re-claimed.
func (j ProcessingJob) Begin(now time.Time, staleAfter time.Duration, claimID string) (ProcessingJob, error) {
	if claimID == "" {
		return j, fmt.Errorf("%w: empty claim id", ErrInvalidTransition)
	}
	switch j.Status {
	case JobStatusNone, JobStatusCompleted, JobStatusError, "":
	case JobStatusProcessing:
		if !j.isStale(now, staleAfter) {
			return j, ErrJobInProgress
		}
	default:
		return j, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, j.Status)
	}

	started := now.UTC()
	return ProcessingJob{
		Status:          JobStatusProcessing,
		ClaimID:         claimID,
		LastCompletedAt: j.LastCompletedAt,
		StartedAt:       &started,
	}, nil
}

func (j ProcessingJob) Complete(now time.Time) (ProcessingJob, error) {
	if j.Status != JobStatusProcessing {
		return j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	completed := now.UTC()
	return ProcessingJob{
		Status:          JobStatusCompleted,
		ClaimID:         j.ClaimID,
		LastCompletedAt: &completed,
	}, nil
}

// Fail records a run failure. COMPLETED may still fail when ledger writes
// break after the status flip.
func (j ProcessingJob) Fail(message string) (ProcessingJob, error) {
	if j.Status != JobStatusProcessing && j.Status != JobStatusCompleted {
		return j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusError)
	}
	if message == "" {
		message = "statement processing failed"
	}
	return ProcessingJob{
		Status:          JobStatusError,
		ClaimID:         j.ClaimID,
		ErrorDetail:     message,
		LastCompletedAt: j.LastCompletedAt,
	}, nil
}

// OwnedBy reports whether the run holding claimID still owns the record.
func (j ProcessingJob) OwnedBy(claimID string) bool {
	return claimID != "" && j.ClaimID == claimID
}

func (j ProcessingJob) isStale(now time.Time, staleAfter time.Duration) bool {
	if staleAfter <= 0 || j.StartedAt == nil {
		return false
	}
	return now.Sub(*j.StartedAt) > staleAfter
}

// StatusReport is the read model served to polling clients.
type StatusReport struct {
	Status JobStatus `json:"status"`
	Error  *string   `json:"error"`
}

func (j ProcessingJob) Report() StatusReport {
	status := j.Status
	if status == "" {
		status = JobStatusNone
	}
	report := StatusReport{Status: status}
	if status == JobStatusError {
		msg := j.ErrorDetail
		report.Error = &msg
	}
	return report
}

// StatementJob addresses one background run: who submitted it, which claim
// the run holds and where the temporary document lives.
type StatementJob struct {
	OwnerID     string    `json:"owner_id"`
	ClaimID     string    `json:"claim_id"`
	BlobKey     string    `json:"blob_key"`
	SubmittedAt time.Time `json:"submitted_at"`
}
