package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestDoRetriesTemporaryFailure(t *testing.T) {
	retries := 0
	cfg := fastConfig()
	cfg.OnRetry = func(string, int, error) { retries++ }
	exec := NewExecutor(cfg)

	attempts := 0
	got, err := Do(context.Background(), exec, "search titles", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", domain.WrapError(domain.ErrTemporary, "search titles", errors.New("503"))
		}
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got != "ok" || attempts != 3 || retries != 2 {
		t.Fatalf("unexpected result %q attempts=%d retries=%d", got, attempts, retries)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	errPermanent := domain.InvalidInput("search titles", "bad filter")
	err := exec.Execute(context.Background(), "search titles", func(context.Context) error {
		attempts++
		return errPermanent
	}, nil)
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteReturnsLastErrorWhenBudgetIsSpent(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return context.DeadlineExceeded
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) || attempts != 3 {
		t.Fatalf("expected three timed out attempts, got %d: %v", attempts, err)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("index unavailable")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errDown
		}, nil)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected failure on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary open state error, got %v", err)
	}
}

func TestSearchConfigBackoffBounds(t *testing.T) {
	cfg := SearchConfig().WithRetry(0, 0, 0)
	if cfg.RetryMaxAttempts != 3 || cfg.RetryInitialBackoff != 2*time.Second || cfg.RetryMaxBackoff != 10*time.Second {
		t.Fatalf("unexpected search retry policy %+v", cfg)
	}
	if got := NewExecutor(Config{}.WithRetry(5, 0, 0)).Config().RetryMaxAttempts; got != 5 {
		t.Fatalf("expected 5 attempts, got %d", got)
	}
}
