package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTemporary          = errors.New("temporary failure")
	ErrJobInProgress      = errors.New("statement processing already in progress")
	ErrJobConflict        = errors.New("processing job changed concurrently")
	ErrClaimSuperseded    = errors.New("statement job claim superseded")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrDocumentUnreadable = errors.New("document unreadable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type RejectReason string

const (
	RejectSizeExceeded RejectReason = "SizeExceeded"
	RejectTypeMismatch RejectReason = "TypeMismatch"
)

// ValidationError is returned synchronously to the uploader. It never changes job state.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// RejectionReason reports the validation reason carried by err, if any.
func RejectionReason(err error) (RejectReason, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Reason, true
	}
	return "", false
}
