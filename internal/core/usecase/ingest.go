package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

// IngestPermitUseCase stores permit documents, either directly or through
// the ingestion queue.
type IngestPermitUseCase struct {
	writer ports.PermitDocumentWriter
	queue  ports.MessageQueue
}

func NewIngestPermitUseCase(writer ports.PermitDocumentWriter, queue ports.MessageQueue) *IngestPermitUseCase {
	return &IngestPermitUseCase{
		writer: writer,
		queue:  queue,
	}
}

// Ingest validates doc and upserts it with its permit records.
func (uc *IngestPermitUseCase) Ingest(ctx context.Context, doc *domain.PermitDocument) error {
	if err := prepareDocument(doc); err != nil {
		return err
	}
	if err := uc.writer.UpsertPermitDocument(ctx, doc); err != nil {
		return fmt.Errorf("upsert permit document %s: %w", doc.ID, err)
	}
	return nil
}

// Submit validates doc and publishes it for a worker to ingest.
func (uc *IngestPermitUseCase) Submit(ctx context.Context, doc *domain.PermitDocument) error {
	if uc.queue == nil {
		return domain.WrapError(domain.ErrConfiguration, "submit permit document", fmt.Errorf("message queue is not configured"))
	}
	if err := prepareDocument(doc); err != nil {
		return err
	}
	if err := uc.queue.PublishPermitDocument(ctx, doc); err != nil {
		return fmt.Errorf("publish permit document %s: %w", doc.ID, err)
	}
	return nil
}

func prepareDocument(doc *domain.PermitDocument) error {
	if doc == nil {
		return domain.InvalidInput("ingest permit document", "document is nil")
	}
	doc.DocumentTitle = strings.TrimSpace(doc.DocumentTitle)
	doc.Organization = strings.TrimSpace(doc.Organization)
	doc.Filepath = strings.TrimSpace(doc.Filepath)
	if err := doc.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = uuid.NewString()
	}
	for i := range doc.Permits {
		doc.Permits[i].IssueDate = domain.DateOnly(doc.Permits[i].IssueDate)
		doc.Permits[i].ExpirationDate = domain.DateOnly(doc.Permits[i].ExpirationDate)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}
