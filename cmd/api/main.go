package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/permit-assistant/internal/adapters/http"
	"github.com/kirillkom/permit-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/observability/logging"
	"github.com/kirillkom/permit-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("permit-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiMetrics := metrics.NewHTTPServerMetrics("permit-api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Metadata:     true,
		Search:       true,
		LLM:          true,
		ToolRecorder: apiMetrics,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Dispatcher, app.AgentUC, apiMetrics).
		WithMetricsHandler(apiMetrics.Handler()).
		Handler()
	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.AgentTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("api listen error: %v", err)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "addr", listener.Addr().String(), "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
