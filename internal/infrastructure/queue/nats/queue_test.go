package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

func TestStatementJobRoundTripsThroughPayload(t *testing.T) {
	job := domain.StatementJob{
		OwnerID:     "42",
		ClaimID:     "6f1c2f8e-claim",
		BlobKey:     "statements/user_42_1700000000.pdf",
		SubmittedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	payload, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encodeJob() error = %v", err)
	}
	got, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if got.OwnerID != job.OwnerID || got.ClaimID != job.ClaimID || got.BlobKey != job.BlobKey || !got.SubmittedAt.Equal(job.SubmittedAt) {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestEncodeJobRejectsIncompleteJob(t *testing.T) {
	if _, err := encodeJob(domain.StatementJob{OwnerID: "42"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := encodeJob(domain.StatementJob{OwnerID: "42", BlobKey: "statements/x.pdf"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a job without claim, got %v", err)
	}
}

func TestDecodeJobRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"not json", `{"owner_id":"42"}`, `{}`} {
		if _, err := decodeJob([]byte(payload)); err == nil {
			t.Fatalf("expected decode error for %q", payload)
		}
	}
}

func TestClassifyPublishError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		retry  bool
		record bool
	}{
		{"closed connection", fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed), true, true},
		{"no servers", nats.ErrNoServers, true, true},
		{"circuit open", gobreaker.ErrOpenState, true, true},
		{"canceled upload", context.Canceled, false, false},
		{"bad subject", nats.ErrBadSubject, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyPublishError(tc.err)
			if class.Retryable != tc.retry || class.RecordFailure != tc.record {
				t.Fatalf("classifyPublishError(%v) = %+v", tc.err, class)
			}
		})
	}
}

func TestAsSubmitErrorMarksBrokerOutageTemporary(t *testing.T) {
	err := asSubmitError(fmt.Errorf("nats publish: %w", nats.ErrNoServers))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	permanent := errors.New("payload too large")
	if got := asSubmitError(permanent); got != permanent {
		t.Fatalf("permanent errors pass through unchanged, got %v", got)
	}
	if asSubmitError(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}
