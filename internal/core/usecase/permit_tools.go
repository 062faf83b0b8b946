package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

const maxMonthsAhead = 120

// PermitToolUseCase answers the permit metadata and content tools.
type PermitToolUseCase struct {
	store    ports.PermitMetadataStore
	resolver *OrganizationResolver
	content  *ContentSearchUseCase
	caps     ResultCaps
	now      func() time.Time
}

func NewPermitToolUseCase(
	store ports.PermitMetadataStore,
	resolver *OrganizationResolver,
	content *ContentSearchUseCase,
	caps ResultCaps,
) *PermitToolUseCase {
	return &PermitToolUseCase{
		store:    store,
		resolver: resolver,
		content:  content,
		caps:     caps,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for "today" and default years.
func (uc *PermitToolUseCase) WithClock(now func() time.Time) *PermitToolUseCase {
	if now != nil {
		uc.now = now
	}
	return uc
}

func (uc *PermitToolUseCase) DocumentsByIssueYear(ctx context.Context, params domain.IssueYearQuery) (string, error) {
	if params.Month != nil && (*params.Month < 1 || *params.Month > 12) {
		return "", domain.InvalidInput("documents by issue year", "month must be between 1 and 12, got %d", *params.Month)
	}
	now := uc.now()
	rows, err := uc.queryWithFallback(ctx, params.Organization, func(org domain.OrgFilter) domain.PermitQuery {
		return buildIssueYearQuery(params, org, now)
	})
	if err != nil {
		return "", err
	}
	ranked := rankRows(rows, domain.FieldIssueDate, params.OrderBy, uc.caps.IssuedByYear)
	return renderRows(ranked, len(rows), issuedByYearLayout()), nil
}

func (uc *PermitToolUseCase) DocumentsByExpirationYear(ctx context.Context, params domain.ExpirationYearQuery) (string, error) {
	now := uc.now()
	rows, err := uc.queryWithFallback(ctx, params.Organization, func(org domain.OrgFilter) domain.PermitQuery {
		return buildExpirationYearQuery(params, org, now)
	})
	if err != nil {
		return "", err
	}
	ranked := rankRows(rows, domain.FieldExpirationDate, params.OrderBy, uc.caps.ExpiringByYear)
	return renderRows(ranked, len(rows), expiringByYearLayout()), nil
}

func (uc *PermitToolUseCase) DocumentsAlreadyExpired(ctx context.Context, params domain.AlreadyExpiredQuery) (string, error) {
	today := uc.now().Format(domain.DateLayout)
	org, err := uc.resolver.Resolve(ctx, params.Organization)
	if err != nil {
		return "", err
	}
	rows, err := uc.execute(ctx, buildAlreadyExpiredQuery(org, today))
	if err != nil {
		return "", err
	}
	ranked := rankRows(rows, domain.FieldExpirationDate, params.OrderBy, uc.caps.AlreadyExpired)
	return renderRows(ranked, len(rows), alreadyExpiredLayout(today)), nil
}

func (uc *PermitToolUseCase) DocumentsByExpirationInterval(ctx context.Context, params domain.ExpirationIntervalQuery) (string, error) {
	if params.MonthsAhead == 0 {
		params.MonthsAhead = domain.DefaultMonthsAhead
	}
	if params.MonthsAhead < 1 || params.MonthsAhead > maxMonthsAhead {
		return "", domain.InvalidInput("documents by expiration interval", "months_ahead must be between 1 and %d, got %d", maxMonthsAhead, params.MonthsAhead)
	}
	org, err := uc.resolver.Resolve(ctx, params.Organization)
	if err != nil {
		return "", err
	}
	rows, err := uc.execute(ctx, buildExpirationIntervalQuery(params, org))
	if err != nil {
		return "", err
	}
	ranked := rankRows(rows, domain.FieldExpirationDate, domain.OrderEarliest, uc.caps.ExpirationInterval)
	return renderRows(ranked, len(rows), expirationIntervalLayout(params.MonthsAhead)), nil
}

func (uc *PermitToolUseCase) AllDocumentsByOrganization(ctx context.Context, params domain.OrganizationDocumentsQuery) (string, error) {
	const op = "all documents by organization"
	organization := strings.TrimSpace(params.Organization)
	if organization == "" {
		return "", domain.InvalidInput(op, "organization is required")
	}
	if strings.TrimSpace(params.Keyword) == "" {
		return "", domain.InvalidInput(op, "keyword is required")
	}

	org, err := uc.resolver.Resolve(ctx, organization)
	if err != nil {
		return "", err
	}
	rows, err := uc.execute(ctx, buildOrganizationDocumentsQuery(params, org))
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return emptyAllByOrganization, nil
	}
	ranked := rankRows(rows, domain.FieldIssueDate, domain.OrderLatest, uc.caps.AllByOrganization)
	metadata := renderRows(ranked, len(rows), allByOrganizationLayout(organization))

	// Metadata rows are still returned when both content stages fail.
	var content string
	hits, err := uc.content.Search(ctx, params.Keyword, 0)
	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil:
		slog.Warn("organization_content_unavailable", "organization", organization, "error", err)
		content = contentUnavailable(params.Keyword)
	default:
		content = compositeContent(params.Keyword, hits)
	}
	return formatCompositeResult(content, metadata), nil
}

func (uc *PermitToolUseCase) DocumentContent(ctx context.Context, keyword string) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", domain.InvalidInput("document content", "keyword is required")
	}
	hits, err := uc.content.Search(ctx, keyword, 0)
	if err != nil {
		return "", err
	}
	return formatContentHits(keyword, hits), nil
}

// queryWithFallback runs build with the resolved organization. When an exact
// catalog match returns nothing, it retries once with the title allow list.
func (uc *PermitToolUseCase) queryWithFallback(
	ctx context.Context,
	organization string,
	build func(domain.OrgFilter) domain.PermitQuery,
) ([]domain.PermitRow, error) {
	org, err := uc.resolver.Resolve(ctx, organization)
	if err != nil {
		return nil, err
	}
	rows, err := uc.execute(ctx, build(org))
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 || org.Kind != domain.OrgFilterExact {
		return rows, nil
	}

	fuzzy, err := uc.resolver.ResolveByTitle(ctx, organization)
	if err != nil {
		return nil, err
	}
	slog.Info("organization_title_fallback", "organization", org.Organization, "titles", len(fuzzy.Titles))
	return uc.execute(ctx, build(fuzzy))
}

func (uc *PermitToolUseCase) execute(ctx context.Context, query domain.PermitQuery) ([]domain.PermitRow, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("build permit query: %w", err)
	}
	rows, err := uc.store.QueryPermits(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "query permits", err)
	}
	slog.Debug("permit_query", "query", query.String(), "rows", len(rows))
	return rows, nil
}
