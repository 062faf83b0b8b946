package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

const DefaultTitleSearchTop = 10

// OrganizationResolver turns a free-form organization name into a filter:
// an exact organization match when the name is a catalog member, otherwise
// an allow list of document titles found by full-text search.
type OrganizationResolver struct {
	catalog *OrganizationCatalog
	titles  ports.TitleSearcher
	top     int
}

func NewOrganizationResolver(catalog *OrganizationCatalog, titles ports.TitleSearcher, top int) *OrganizationResolver {
	if top <= 0 {
		top = DefaultTitleSearchTop
	}
	return &OrganizationResolver{catalog: catalog, titles: titles, top: top}
}

// Resolve returns the zero filter for a blank name.
func (r *OrganizationResolver) Resolve(ctx context.Context, organization string) (domain.OrgFilter, error) {
	name := strings.TrimSpace(organization)
	if name == "" {
		return domain.OrgFilter{}, nil
	}

	member, err := r.catalog.Contains(ctx, name)
	if err != nil {
		return domain.OrgFilter{}, domain.WrapError(domain.ErrRetrieval, "resolve organization", err)
	}
	if member {
		slog.Debug("organization_resolved", "organization", name, "mode", domain.OrgFilterExact.String())
		return domain.ExactOrganization(name), nil
	}
	return r.ResolveByTitle(ctx, name)
}

// ResolveByTitle skips the catalog and builds the title allow list directly.
func (r *OrganizationResolver) ResolveByTitle(ctx context.Context, organization string) (domain.OrgFilter, error) {
	name := strings.TrimSpace(organization)
	if name == "" {
		return domain.OrgFilter{}, nil
	}

	hits, err := r.titles.SearchTitles(ctx, name, r.top)
	if err != nil {
		return domain.OrgFilter{}, domain.WrapError(domain.ErrRetrieval, "search organization titles", err)
	}

	titles := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		title := strings.TrimSpace(hit.TitleWithExtension)
		if title == "" {
			title = strings.TrimSpace(hit.Title)
		}
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}

	slog.Debug("organization_resolved",
		"organization", name,
		"mode", domain.OrgFilterTitles.String(),
		"titles", len(titles),
	)
	return domain.TitleAllowList(name, titles), nil
}
