package ports

import (
	"context"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// PermitMetadataStore executes permit queries against the metadata store.
type PermitMetadataStore interface {
	QueryPermits(ctx context.Context, query domain.PermitQuery) ([]domain.PermitRow, error)
}

// OrganizationSource lists distinct organization names for the catalog.
type OrganizationSource interface {
	ListOrganizations(ctx context.Context, limit int) ([]string, error)
}

// PermitDocumentWriter persists permit documents.
type PermitDocumentWriter interface {
	UpsertPermitDocument(ctx context.Context, doc *domain.PermitDocument) error
}

// TitleSearcher runs searches against the document title index.
type TitleSearcher interface {
	// SearchTitles is a full-text search over title and titleWithExtension.
	SearchTitles(ctx context.Context, keyword string, top int) ([]domain.TitleHit, error)
	// SearchDocuments is a semantic search returning title and filepath.
	SearchDocuments(ctx context.Context, keyword string, top int) ([]domain.TitleHit, error)
}

// ContentSearcher runs semantic searches against the chunk content index.
// An empty scope searches the whole index.
type ContentSearcher interface {
	SearchContent(ctx context.Context, keyword string, top int, scope []string) ([]domain.ContentHit, error)
}

// AnswerGenerator drives the LLM.
type AnswerGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// MessageQueue publishes/consumes permit ingestion events.
type MessageQueue interface {
	PublishPermitDocument(ctx context.Context, doc *domain.PermitDocument) error
	SubscribePermitDocuments(ctx context.Context, handler func(context.Context, *domain.PermitDocument) error) error
}
