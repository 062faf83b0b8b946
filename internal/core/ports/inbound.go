package ports

import (
	"context"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// PermitToolService is the inbound contract behind the permit tools.
// Every method returns human-readable text.
type PermitToolService interface {
	DocumentsByIssueYear(ctx context.Context, query domain.IssueYearQuery) (string, error)
	DocumentsByExpirationYear(ctx context.Context, query domain.ExpirationYearQuery) (string, error)
	DocumentsAlreadyExpired(ctx context.Context, query domain.AlreadyExpiredQuery) (string, error)
	DocumentsByExpirationInterval(ctx context.Context, query domain.ExpirationIntervalQuery) (string, error)
	AllDocumentsByOrganization(ctx context.Context, query domain.OrganizationDocumentsQuery) (string, error)
	DocumentContent(ctx context.Context, keyword string) (string, error)
}

// ToolInvoker calls a named tool with loosely typed arguments. Failures come
// back as descriptive text with ok set to false.
type ToolInvoker interface {
	Call(ctx context.Context, name string, args map[string]any) (output string, ok bool)
}

// PermitIngestor is the inbound contract for storing permit documents.
type PermitIngestor interface {
	Ingest(ctx context.Context, doc *domain.PermitDocument) error
}

// AgentService answers a chat turn using the permit tools.
type AgentService interface {
	Complete(ctx context.Context, req domain.AgentChatRequest) (*domain.AgentRunResult, error)
}
