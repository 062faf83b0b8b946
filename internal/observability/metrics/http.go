package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rateLimited     *prometheus.CounterVec

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	agentRunsTotal  *prometheus.CounterVec
	agentIterations *prometheus.HistogramVec
	agentCitations  *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "paa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rateLimited := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paa",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control.",
		},
		[]string{"service", "reason"},
	)
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paa",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total permit tool calls by status.",
		},
		[]string{"service", "tool", "status"},
	)
	toolCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paa",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Permit tool call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "tool"},
	)
	agentRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paa",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total completed agent runs by status.",
		},
		[]string{"service", "status"},
	)
	agentIterations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paa",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Distribution of agent loop iterations per run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"service"},
	)
	agentCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paa",
			Subsystem: "agent",
			Name:      "citations",
			Help:      "Distribution of citations attached to agent answers.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rateLimited,
		toolCallsTotal,
		toolCallDuration,
		agentRunsTotal,
		agentIterations,
		agentCitations,
	)

	return &HTTPServerMetrics{
		service:          service,
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		rateLimited:      rateLimited,
		toolCallsTotal:   toolCallsTotal,
		toolCallDuration: toolCallDuration,
		agentRunsTotal:   agentRunsTotal,
		agentIterations:  agentIterations,
		agentCitations:   agentCitations,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps tool names as a label and collapses anything unknown.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/tools/"):
		name := strings.TrimPrefix(path, "/v1/tools/")
		if name == "" || strings.Contains(name, "/") || !strings.HasPrefix(name, "get_") {
			return "/v1/tools/{name}"
		}
		return path
	case path == "/v1/tools", path == "/v1/chat", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

// RecordRejected counts requests turned away by rate limiting or backpressure.
func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rateLimited.WithLabelValues(m.service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordToolCall(tool, status string, duration time.Duration) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.toolCallsTotal.WithLabelValues(m.service, tool, status).Inc()
	m.toolCallDuration.WithLabelValues(m.service, tool).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordAgentRun(status string, iterations, citations int) {
	if status == "" {
		status = "unknown"
	}
	m.agentRunsTotal.WithLabelValues(m.service, status).Inc()
	if iterations > 0 {
		m.agentIterations.WithLabelValues(m.service).Observe(float64(iterations))
	}
	m.agentCitations.WithLabelValues(m.service).Observe(float64(citations))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
