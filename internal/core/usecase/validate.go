package usecase

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

const (
	DefaultMaxUploadBytes int64 = 10 << 20
	StatementContentType        = "application/pdf"

	sniffWindow = 1024
)

// UploadValidator inspects a submission before any job state changes.
type UploadValidator struct {
	maxBytes    int64
	allowedType string
}

func NewUploadValidator(maxBytes int64) *UploadValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadValidator{
		maxBytes:    maxBytes,
		allowedType: StatementContentType,
	}
}

func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate rejects oversized payloads and payloads whose sniffed content type
// is not a PDF. The reader is rewound to byte 0 before returning.
func (v *UploadValidator) Validate(file io.ReadSeeker, declaredSize int64) error {
	if declaredSize > v.maxBytes {
		return &domain.ValidationError{
			Reason: domain.RejectSizeExceeded,
			Detail: fmt.Sprintf("%d bytes exceeds limit of %d", declaredSize, v.maxBytes),
		}
	}
	if file == nil {
		return &domain.ValidationError{Reason: domain.RejectTypeMismatch, Detail: "empty upload"}
	}

	head := make([]byte, sniffWindow)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read upload header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	detected := http.DetectContentType(head[:n])
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		mediaType = detected
	}
	if mediaType != v.allowedType {
		return &domain.ValidationError{
			Reason: domain.RejectTypeMismatch,
			Detail: fmt.Sprintf("detected %s, want %s", mediaType, v.allowedType),
		}
	}
	return nil
}
