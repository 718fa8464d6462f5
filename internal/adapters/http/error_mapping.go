package httpadapter

import (
	"net/http"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	if reason, ok := domain.RejectionReason(err); ok {
		switch reason {
		case domain.RejectSizeExceeded:
			return http.StatusRequestEntityTooLarge
		case domain.RejectTypeMismatch:
			return http.StatusUnsupportedMediaType
		}
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrProfileNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrJobInProgress), domain.IsKind(err, domain.ErrJobConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
