package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

type ContentSearchLimits struct {
	TopK            int
	TitleCandidates int
	MaxScopeTitles  int
}

func DefaultContentSearchLimits() ContentSearchLimits {
	return ContentSearchLimits{TopK: 10, TitleCandidates: 20, MaxScopeTitles: 10}
}

// ContentSearchUseCase narrows the content index to documents whose titles
// match the keyword, then searches chunk text within them.
type ContentSearchUseCase struct {
	titles  ports.TitleSearcher
	content ports.ContentSearcher
	limits  ContentSearchLimits
}

func NewContentSearchUseCase(titles ports.TitleSearcher, content ports.ContentSearcher, limits ContentSearchLimits) *ContentSearchUseCase {
	def := DefaultContentSearchLimits()
	if limits.TopK <= 0 {
		limits.TopK = def.TopK
	}
	if limits.TitleCandidates <= 0 {
		limits.TitleCandidates = def.TitleCandidates
	}
	if limits.MaxScopeTitles <= 0 {
		limits.MaxScopeTitles = def.MaxScopeTitles
	}
	return &ContentSearchUseCase{titles: titles, content: content, limits: limits}
}

// Search runs the scoped search. Any failure falls back once to an unscoped
// content search; an error from that fallback is returned.
func (uc *ContentSearchUseCase) Search(ctx context.Context, keyword string, topK int) ([]domain.ContentHit, error) {
	if topK <= 0 {
		topK = uc.limits.TopK
	}

	hits, err := uc.scopedSearch(ctx, keyword, topK)
	if err != nil {
		slog.Warn("content_search_fallback", "keyword", keyword, "error", err)
		hits, err = uc.content.SearchContent(ctx, keyword, topK, nil)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, "content search", err)
		}
	}
	return completeHits(hits), nil
}

func (uc *ContentSearchUseCase) scopedSearch(ctx context.Context, keyword string, topK int) ([]domain.ContentHit, error) {
	docs, err := uc.titles.SearchDocuments(ctx, keyword, uc.limits.TitleCandidates)
	if err != nil {
		return nil, err
	}
	scope := distinctDocumentKeys(docs)
	if len(scope) > uc.limits.MaxScopeTitles {
		scope = scope[:uc.limits.MaxScopeTitles]
	}
	return uc.content.SearchContent(ctx, keyword, topK, scope)
}

// distinctDocumentKeys keeps the first occurrence of each filepath, using the
// title when a hit has no filepath.
func distinctDocumentKeys(hits []domain.TitleHit) []string {
	out := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		key := strings.TrimSpace(hit.Filepath)
		if key == "" {
			key = strings.TrimSpace(hit.Title)
		}
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func completeHits(hits []domain.ContentHit) []domain.ContentHit {
	out := make([]domain.ContentHit, 0, len(hits))
	for _, hit := range hits {
		if strings.TrimSpace(hit.Title) == "" || strings.TrimSpace(hit.Content) == "" {
			continue
		}
		out = append(out, hit)
	}
	return out
}
