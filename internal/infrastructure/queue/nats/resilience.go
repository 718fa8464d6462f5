package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/infrastructure/resilience"
)

// Connection-level failures a reconnecting client may recover from.
var brokerUnavailable = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

func brokerDown(err error) bool {
	if resilience.IsCircuitOpen(err) {
		return true
	}
	for _, target := range brokerUnavailable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyPublishError keeps a canceled upload from counting against the
// breaker and retries only while the broker looks unreachable.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case brokerDown(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// asSubmitError marks an unreachable broker as temporary so the upload is
// answered with 503.
func asSubmitError(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || !brokerDown(err) {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, "publish statement job", err)
}
