package usecase

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

func TestValidateAcceptsPDFAndRewinds(t *testing.T) {
	v := NewUploadValidator(DefaultMaxUploadBytes)
	payload := pdfPayload(strings.Repeat("x", 4096))
	reader := bytes.NewReader(payload)

	if err := v.Validate(reader, int64(len(payload))); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	rest, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(rest, payload) {
		t.Fatalf("expected reader rewound to byte 0")
	}
}

func TestValidateRejections(t *testing.T) {
	v := NewUploadValidator(1024)
	cases := []struct {
		name    string
		payload []byte
		size    int64
		reason  domain.RejectReason
	}{
		{name: "declared size over cap", payload: pdfPayload("x"), size: 1025, reason: domain.RejectSizeExceeded},
		{name: "plain text", payload: []byte("hello statement"), size: 15, reason: domain.RejectTypeMismatch},
		{name: "zip renamed to pdf", payload: []byte("PK\x03\x04\x14\x00\x00\x00"), size: 8, reason: domain.RejectTypeMismatch},
		{name: "png", payload: []byte("\x89PNG\x0D\x0A\x1A\x0A"), size: 8, reason: domain.RejectTypeMismatch},
		{name: "empty", payload: []byte{}, size: 0, reason: domain.RejectTypeMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(bytes.NewReader(tc.payload), tc.size)
			reason, ok := domain.RejectionReason(err)
			if !ok || reason != tc.reason {
				t.Fatalf("expected %s, got %v", tc.reason, err)
			}
		})
	}
}

func TestValidateAllowsExactCap(t *testing.T) {
	v := NewUploadValidator(16)
	payload := pdfPayload("")
	if err := v.Validate(bytes.NewReader(payload), 16); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
