package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	permitRecords  prometheus.Counter
	queueLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paa",
			Subsystem: "worker",
			Name:      "permit_ingest_total",
			Help:      "Total ingested permit documents by status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paa",
			Subsystem: "worker",
			Name:      "permit_ingest_duration_seconds",
			Help:      "Permit document ingestion duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "paa",
			Subsystem: "worker",
			Name:      "permit_ingest_in_flight",
			Help:      "Number of permit documents being ingested.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	permitRecords := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paa",
			Subsystem: "worker",
			Name:      "permit_records_total",
			Help:      "Total permit records stored by successful ingestions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paa",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between publishing a permit document and ingesting it.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, permitRecords, queueLag)

	return &WorkerMetrics{
		service:        service,
		registry:       registry,
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		permitRecords:  permitRecords,
		queueLag:       queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(records int, duration time.Duration, err error) {
	m.ingestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	} else if records > 0 {
		m.permitRecords.Add(float64(records))
	}

	m.ingestTotal.WithLabelValues(m.service, status).Inc()
	m.ingestDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}
