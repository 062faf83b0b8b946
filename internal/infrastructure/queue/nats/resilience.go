package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
)

// transientErrors are connection states a reconnecting client recovers from.
var transientErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrSlowConsumer,
	nats.ErrConnectionReconnecting,
}

// malformedErrors describe a bad message, not a bad server.
var malformedErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
}

func isAnyOf(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case isAnyOf(err, malformedErrors):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAnyOf(err, transientErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishError maps a failed publish onto a domain error kind.
func publishError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary):
		return err
	case isAnyOf(err, malformedErrors):
		return domain.WrapError(domain.ErrInvalidInput, "nats publish", err)
	case classifyNATSError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	default:
		return err
	}
}
