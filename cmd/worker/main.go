package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/permit-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/observability/logging"
	"github.com/kirillkom/permit-assistant/internal/observability/metrics"
)

const ingestTimeout = time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("permit-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("permit-worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Metadata:         true,
		Queue:            true,
		QueueLagObserver: workerMetrics.ObserveQueueLag,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribePermitDocuments(ctx, func(handlerCtx context.Context, doc *domain.PermitDocument) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, ingestTimeout)
		defer cancel()

		started := time.Now()
		workerMetrics.StartDocument()
		err := app.IngestUC.Ingest(ingestCtx, doc)
		workerMetrics.FinishDocument(len(doc.Permits), time.Since(started), err)
		if err != nil {
			return err
		}
		slog.Info("permit_document_ingested",
			"document_id", doc.ID,
			"organization", doc.Organization,
			"records", len(doc.Permits),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
