package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/permit-assistant/internal/adapters/mcp"
	"github.com/kirillkom/permit-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries MCP frames in stdio mode.
	slog.SetDefault(logging.NewStderrJSONLogger("permit-mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Metadata: true, Search: true})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	s := mcpadapter.NewServer(app.Dispatcher, version)

	if cfg.MCPHTTPAddr == "" {
		slog.Info("mcp_serving", "transport", "stdio")
		if err := server.ServeStdio(s); err != nil {
			log.Fatalf("mcp stdio error: %v", err)
		}
		return
	}

	httpServer := server.NewStreamableHTTPServer(s)
	go func() {
		slog.Info("mcp_serving", "transport", "streamable_http", "addr", cfg.MCPHTTPAddr)
		if err := httpServer.Start(cfg.MCPHTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("mcp http error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("mcp_shutdown_failed", "error", err)
	}
}
