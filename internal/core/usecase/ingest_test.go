package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

type ingestWriterFake struct {
	stored *domain.PermitDocument
	err    error
}

func (f *ingestWriterFake) UpsertPermitDocument(_ context.Context, doc *domain.PermitDocument) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.stored = &copyDoc
	return nil
}

type ingestQueueFake struct {
	published *domain.PermitDocument
	err       error
}

func (f *ingestQueueFake) PublishPermitDocument(_ context.Context, doc *domain.PermitDocument) error {
	if f.err != nil {
		return f.err
	}
	f.published = doc
	return nil
}

func (f *ingestQueueFake) SubscribePermitDocuments(context.Context, func(context.Context, *domain.PermitDocument) error) error {
	return errors.New("not implemented")
}

func validPermitDocument() *domain.PermitDocument {
	return &domain.PermitDocument{
		DocumentTitle: " PLO Pipa.pdf ",
		Organization:  "PGN",
		PermitType:    "plo",
		Permits: []domain.PermitRecord{{
			IssueDate:      "2021-01-10T00:00:00Z",
			ExpirationDate: "2026-01-10",
			PermitNumber:   "PLO-1",
		}},
	}
}

func TestIngestNormalizesAndStores(t *testing.T) {
	writer := &ingestWriterFake{}
	uc := NewIngestPermitUseCase(writer, nil)

	if err := uc.Ingest(context.Background(), validPermitDocument()); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	got := writer.stored
	if got == nil {
		t.Fatalf("expected document to be stored")
	}
	if got.ID == "" || got.UpdatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", got)
	}
	if got.DocumentTitle != "PLO Pipa.pdf" || got.PermitType != domain.PermitTypePLO {
		t.Fatalf("unexpected normalized document %+v", got)
	}
	if got.Permits[0].IssueDate != "2021-01-10" {
		t.Fatalf("expected date-only issue date, got %q", got.Permits[0].IssueDate)
	}
}

func TestIngestRejectsPLOWithoutExpiration(t *testing.T) {
	writer := &ingestWriterFake{}
	doc := validPermitDocument()
	doc.Permits[0].ExpirationDate = ""

	err := NewIngestPermitUseCase(writer, nil).Ingest(context.Background(), doc)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if writer.stored != nil {
		t.Fatalf("invalid document must not be stored")
	}
}

func TestIngestPropagatesWriterError(t *testing.T) {
	writer := &ingestWriterFake{err: errors.New("db down")}
	doc := validPermitDocument()
	doc.ID = "doc-1"

	err := NewIngestPermitUseCase(writer, nil).Ingest(context.Background(), doc)
	if err == nil || err.Error() != "upsert permit document doc-1: db down" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSubmitPublishesPreparedDocument(t *testing.T) {
	queue := &ingestQueueFake{}
	uc := NewIngestPermitUseCase(&ingestWriterFake{}, queue)

	if err := uc.Submit(context.Background(), validPermitDocument()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if queue.published == nil || queue.published.ID == "" {
		t.Fatalf("expected published document with id, got %+v", queue.published)
	}
}

func TestSubmitWithoutQueueIsConfigurationError(t *testing.T) {
	err := NewIngestPermitUseCase(&ingestWriterFake{}, nil).Submit(context.Background(), validPermitDocument())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
