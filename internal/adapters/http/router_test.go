package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/permit-assistant/internal/adapters/tools"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

type permitToolsFake struct {
	contentErr error
	lastIssue  domain.IssueYearQuery
}

func (f *permitToolsFake) DocumentsByIssueYear(_ context.Context, q domain.IssueYearQuery) (string, error) {
	f.lastIssue = q
	return "No documents found issued in this year.", nil
}

func (f *permitToolsFake) DocumentsByExpirationYear(context.Context, domain.ExpirationYearQuery) (string, error) {
	return "expiring", nil
}

func (f *permitToolsFake) DocumentsAlreadyExpired(context.Context, domain.AlreadyExpiredQuery) (string, error) {
	return "expired", nil
}

func (f *permitToolsFake) DocumentsByExpirationInterval(context.Context, domain.ExpirationIntervalQuery) (string, error) {
	return "interval", nil
}

func (f *permitToolsFake) AllDocumentsByOrganization(context.Context, domain.OrganizationDocumentsQuery) (string, error) {
	return "all", nil
}

func (f *permitToolsFake) DocumentContent(_ context.Context, keyword string) (string, error) {
	if f.contentErr != nil {
		return "", f.contentErr
	}
	return "[docs/a.pdf, Page 1]: " + keyword, nil
}

type agentFake struct {
	result *domain.AgentRunResult
	err    error
}

func (f agentFake) Complete(context.Context, domain.AgentChatRequest) (*domain.AgentRunResult, error) {
	return f.result, f.err
}

type observerFake struct {
	runs     []string
	rejected []string
}

func (o *observerFake) Middleware(next http.Handler) http.Handler { return next }
func (o *observerFake) RecordRejected(reason string) { o.rejected = append(o.rejected, reason) }
func (o *observerFake) RecordAgentRun(status string, _, _ int) { o.runs = append(o.runs, status) }

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, tools.NewDispatcher(&permitToolsFake{}, nil), agentFake{}, nil).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestListToolsIncludesSchemas(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var body struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"input_schema"`
		} `json:"tools"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode tools: %v", err)
	}
	if len(body.Tools) != 6 {
		t.Fatalf("expected 6 tools, got %d", len(body.Tools))
	}
	for _, tool := range body.Tools {
		if tool.InputSchema["type"] != "object" {
			t.Fatalf("tool %s: expected object schema, got %v", tool.Name, tool.InputSchema)
		}
	}
}

func TestInvokeToolReturnsOutput(t *testing.T) {
	svc := &permitToolsFake{}
	handler := NewRouter(config.Config{}, tools.NewDispatcher(svc, nil), nil, nil).Handler()

	res := postJSON(t, handler, "/v1/tools/"+domain.ToolDocumentsByIssueYear, map[string]any{
		"permit_type": "kkpr",
		"year":        "2023",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["output"] != "No documents found issued in this year." || body["tool"] != domain.ToolDocumentsByIssueYear {
		t.Fatalf("unexpected body %v", body)
	}
	if svc.lastIssue.PermitType != domain.PermitTypeKKPR || svc.lastIssue.Year == nil || *svc.lastIssue.Year != 2023 {
		t.Fatalf("expected coerced arguments, got %+v", svc.lastIssue)
	}
}

func TestInvokeToolMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		path string
		args map[string]any
		svc  *permitToolsFake
		want int
	}{
		{
			name: "unknown tool",
			path: "/v1/tools/drop_everything",
			svc:  &permitToolsFake{},
			want: http.StatusNotFound,
		},
		{
			name: "invalid arguments",
			path: "/v1/tools/" + domain.ToolDocumentsByIssueYear,
			args: map[string]any{"month": 13},
			svc:  &permitToolsFake{},
			want: http.StatusBadRequest,
		},
		{
			name: "missing required",
			path: "/v1/tools/" + domain.ToolDocumentContent,
			args: map[string]any{},
			svc:  &permitToolsFake{},
			want: http.StatusBadRequest,
		},
		{
			name: "retrieval failure",
			path: "/v1/tools/" + domain.ToolDocumentContent,
			args: map[string]any{"keyword": "pipa"},
			svc:  &permitToolsFake{contentErr: domain.WrapError(domain.ErrRetrieval, "search content", errors.New("index down"))},
			want: http.StatusBadGateway,
		},
		{
			name: "temporary failure",
			path: "/v1/tools/" + domain.ToolDocumentContent,
			args: map[string]any{"keyword": "pipa"},
			svc:  &permitToolsFake{contentErr: domain.WrapError(domain.ErrTemporary, "search content", errors.New("circuit open"))},
			want: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, tools.NewDispatcher(tc.svc, nil), nil, nil).Handler()
			res := postJSON(t, handler, tc.path, tc.args)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, res.Code, res.Body.String())
			}
		})
	}
}

func TestInvokeToolRejectsGet(t *testing.T) {
	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/tools/"+domain.ToolDocumentContent, nil)
	newTestHandler(config.Config{}).ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestChatReturnsAgentResult(t *testing.T) {
	observer := &observerFake{}
	agent := agentFake{result: &domain.AgentRunResult{
		Answer:     "Izin PLO Pipa sudah kedaluwarsa.\n\n[doc1]",
		Iterations: 2,
		Citations:  []domain.Citation{{Title: "PLO Pipa.pdf", Marker: "[doc1]"}},
	}}
	handler := NewRouter(config.Config{}, tools.NewDispatcher(&permitToolsFake{}, nil), agent, observer).Handler()

	res := postJSON(t, handler, "/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "izin PLO yang sudah habis?"}},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "[doc1]") {
		t.Fatalf("expected cited answer, got %s", res.Body.String())
	}
	if len(observer.runs) != 1 || observer.runs[0] != "ok" {
		t.Fatalf("expected one ok agent run, got %v", observer.runs)
	}
}

func TestChatValidatesRequest(t *testing.T) {
	handler := newTestHandler(config.Config{})

	if res := postJSON(t, handler, "/v1/chat", map[string]any{}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty messages, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}
}

func TestChatMapsAgentErrors(t *testing.T) {
	observer := &observerFake{}
	agent := agentFake{err: domain.WrapError(domain.ErrInvalidInput, "agent complete", errors.New("user message is required"))}
	handler := NewRouter(config.Config{}, tools.NewDispatcher(&permitToolsFake{}, nil), agent, observer).Handler()

	res := postJSON(t, handler, "/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "assistant", "content": "hi"}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(observer.runs) != 1 || observer.runs[0] != "error" {
		t.Fatalf("expected error run, got %v", observer.runs)
	}
}
