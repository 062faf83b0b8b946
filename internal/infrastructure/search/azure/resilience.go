package azure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "search status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifySearchError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	var netErr net.Error
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case errors.As(err, &statusErr):
		retryable := isRetryableHTTPStatus(statusErr.StatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func wrapKind(operation string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{domain.ErrTemporary, domain.ErrUnauthorized, domain.ErrConfiguration, domain.ErrInvalidInput} {
		if domain.IsKind(err, kind) {
			return err
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(domain.ErrUnauthorized, operation, err)
		case http.StatusNotFound:
			return domain.WrapError(domain.ErrConfiguration, operation, err)
		case http.StatusBadRequest:
			return domain.WrapError(domain.ErrInvalidInput, operation, err)
		}
	}
	if classifySearchError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
