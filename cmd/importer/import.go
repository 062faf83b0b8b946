package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

type importSummary struct {
	Documents int
	Records   int
	Failed    int
}

func (s importSummary) String() string {
	return fmt.Sprintf("imported %d documents (%d permit records), %d failed", s.Documents, s.Records, s.Failed)
}

// importDocuments hands every document to ingest, continuing past failures.
// The returned error reports how many documents were rejected.
func importDocuments(ctx context.Context, docs []domain.PermitDocument, ingest ingestFunc) (importSummary, error) {
	var summary importSummary
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		doc := &docs[i]
		if err := ingest(ctx, doc); err != nil {
			summary.Failed++
			slog.Error("permit_import_failed", "document_title", doc.DocumentTitle, "error", err)
			continue
		}
		summary.Documents++
		summary.Records += len(doc.Permits)
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d documents failed to import", summary.Failed, len(docs))
	}
	return summary, nil
}
