package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
)

func fastExecutor(attempts int) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
}

func TestGenerateJSONRequestsJSONFormat(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"Sure: {\"type\":\"final\",\"answer\":\"ok\"} done","done":true}`))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "llama3.1", Options{Executor: fastExecutor(1)})
	got, err := client.GenerateJSONFromPrompt(context.Background(), "plan")
	if err != nil {
		t.Fatalf("GenerateJSONFromPrompt() error = %v", err)
	}
	if got != `{"type":"final","answer":"ok"}` {
		t.Fatalf("unexpected json %q", got)
	}
	if captured.Format != "json" || captured.Model != "llama3.1" || captured.Stream {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestGenerateRetriesUnavailableModel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":" answer "}`))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "gen", Options{Executor: fastExecutor(3)})
	got, err := client.GenerateFromPrompt(context.Background(), "q")
	if err != nil {
		t.Fatalf("GenerateFromPrompt() error = %v", err)
	}
	if got != "answer" || calls.Load() != 2 {
		t.Fatalf("expected trimmed answer after one retry, got %q calls=%d", got, calls.Load())
	}
}

func TestGenerateExhaustedRetriesIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "gen", Options{Executor: fastExecutor(2)})
	_, err := client.GenerateFromPrompt(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.Body == "" {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestPingRequiresModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest"}]}`))
	}))
	defer server.Close()

	if err := New(server.URL, "llama3.1").Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	err := New(server.URL, "qwen2.5").Ping(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
