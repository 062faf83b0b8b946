package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/permit-assistant/internal/adapters/tools"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

const (
	maxBodyBytes            = 1 << 20
	defaultMaxInFlight      = 64
	defaultBackpressureWait = 250 * time.Millisecond
)

// ToolService is the tool surface the router exposes over HTTP.
type ToolService interface {
	Definitions() []tools.Definition
	Schema(name string) (*openapi3.Schema, bool)
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Observer receives request and agent observations. Nil disables metrics.
type Observer interface {
	Middleware(next http.Handler) http.Handler
	RecordRejected(reason string)
	RecordAgentRun(status string, iterations, citations int)
}

type Router struct {
	cfg      config.Config
	tools    ToolService
	agent    ports.AgentService
	observer Observer
	metrics  http.Handler
}

func NewRouter(cfg config.Config, toolService ToolService, agent ports.AgentService, observer Observer) *Router {
	return &Router{
		cfg:      cfg,
		tools:    toolService,
		agent:    agent,
		observer: observer,
	}
}

// WithMetricsHandler mounts a scrape endpoint at /metrics.
func (rt *Router) WithMetricsHandler(h http.Handler) *Router {
	rt.metrics = h
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/tools", rt.listTools)
	mux.HandleFunc("/v1/tools/", rt.invokeTool)
	mux.HandleFunc("/v1/chat", rt.chat)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}

	maxInFlight := rt.cfg.APIMaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}

	var handler http.Handler = recoverMiddleware(mux)
	handler = newBackpressureGate(maxInFlight, defaultBackpressureWait, rt.rejected("backpressure")).wrap(handler)
	handler = newRateLimiter(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limit")).wrap(handler)
	if rt.observer != nil {
		handler = rt.observer.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type toolDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema *openapi3.Schema `json:"input_schema"`
}

func (rt *Router) listTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	defs := rt.tools.Definitions()
	out := make([]toolDescriptor, 0, len(defs))
	for _, def := range defs {
		schema, _ := rt.tools.Schema(def.Name)
		out = append(out, toolDescriptor{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (rt *Router) invokeTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/tools/")
	if _, ok := rt.tools.Schema(name); !ok {
		rt.writeError(w, r, "tool_not_found", domain.WrapError(domain.ErrToolNotFound, "invoke tool", fmt.Errorf("unknown tool %q", name)))
		return
	}

	args := map[string]any{}
	if err := decodeBody(w, r, &args); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	output, err := rt.tools.Invoke(r.Context(), name, args)
	if err != nil {
		rt.writeError(w, r, "tool_call_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tool": name, "output": output})
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.agent == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "chat is not configured"})
		return
	}

	var req domain.AgentChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages are required"})
		return
	}

	result, err := rt.agent.Complete(r.Context(), req)
	if err != nil {
		rt.recordAgentRun("error", 0, 0)
		rt.writeError(w, r, "agent_run_failed", err)
		return
	}

	status := "ok"
	if result.FallbackReason != "" {
		status = "fallback"
	}
	rt.recordAgentRun(status, result.Iterations, len(result.Citations))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordAgentRun(status string, iterations, citations int) {
	if rt.observer != nil {
		rt.observer.RecordAgentRun(status, iterations, citations)
	}
}

func (rt *Router) rejected(reason string) func() {
	if rt.observer == nil {
		return nil
	}
	return func() { rt.observer.RecordRejected(reason) }
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(event, "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
