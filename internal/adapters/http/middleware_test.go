package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddlewareKeepsValidCallerID(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-42.a_b")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "trace-42.a_b" {
		t.Fatalf("expected caller request id in context, got %q", seen)
	}
	if got := rec.Header().Get(requestIDHeader); got != "trace-42.a_b" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestRequestIDMiddlewareReplacesUnsafeID(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"spaces":     "has spaces",
		"newline":    "abc\r\nX-Injected: 1",
		"too long":   strings.Repeat("a", maxRequestIDLength+1),
		"non-ascii":  "идентификатор",
		"slash path": "../etc/passwd",
	}
	for name, incoming := range cases {
		t.Run(name, func(t *testing.T) {
			handler := requestIDMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if incoming != "" {
				req.Header[requestIDHeader] = []string{incoming}
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(requestIDHeader)
			if got == incoming || !validRequestID(got) {
				t.Fatalf("expected a generated request id, got %q", got)
			}
		})
	}
}

func TestRecoverMiddlewareReturnsJSON500(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestRecoverMiddlewareRepanicsAbortHandler(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
