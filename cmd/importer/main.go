package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/permit-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/usecase"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/register/xlsx"
	"github.com/kirillkom/permit-assistant/internal/observability/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		publish bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "permit-importer <register.xlsx>",
		Short: "Import a permit register workbook",
		Long: `Reads a permit register (one row per permit record, grouped into
documents by id or title) and stores it in the metadata database.

With --publish the documents are sent to the ingestion queue and stored by
the worker instead.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			slog.SetDefault(logging.NewJSONLogger("permit-importer", cfg.LogLevel))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			docs, err := xlsx.ReadFile(args[0])
			if err != nil {
				return err
			}

			ingest, closeFn, err := selectIngest(ctx, cfg, publish, dryRun)
			if err != nil {
				return err
			}
			defer closeFn()

			summary, err := importDocuments(ctx, docs, ingest)
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "publish documents to NATS instead of writing them directly")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the register without storing anything")
	cmd.MarkFlagsMutuallyExclusive("publish", "dry-run")
	return cmd
}

type ingestFunc func(ctx context.Context, doc *domain.PermitDocument) error

func selectIngest(ctx context.Context, cfg config.Config, publish, dryRun bool) (ingestFunc, func(), error) {
	if dryRun {
		uc := usecase.NewIngestPermitUseCase(discardWriter{}, nil)
		return uc.Ingest, func() {}, nil
	}

	// The register being imported must not also be seeded.
	cfg.MetadataSeedXLSX = ""
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Metadata: !publish, Queue: publish})
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	if publish {
		return app.IngestUC.Submit, app.Close, nil
	}
	return app.IngestUC.Ingest, app.Close, nil
}

type discardWriter struct{}

func (discardWriter) UpsertPermitDocument(context.Context, *domain.PermitDocument) error { return nil }
