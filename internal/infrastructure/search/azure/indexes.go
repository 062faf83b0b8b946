package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// SemanticOptions configures semantic ranking on an index.
type SemanticOptions struct {
	Configuration  string
	ScoringProfile string
	QueryLanguage  string
	VectorFields   string
}

func (o SemanticOptions) request(keyword string, top int) SearchRequest {
	req := SearchRequest{
		Search:                keyword,
		QueryType:             "semantic",
		SemanticConfiguration: o.Configuration,
		ScoringProfile:        o.ScoringProfile,
		QueryLanguage:         o.QueryLanguage,
		Captions:              "extractive",
		Count:                 true,
		Top:                   top,
	}
	if o.VectorFields != "" {
		req.VectorQueries = []VectorQuery{{Kind: "text", Text: keyword, Fields: o.VectorFields, K: top}}
	}
	return req
}

type titleDocument struct {
	Title              string `json:"title"`
	TitleWithExtension string `json:"titleWithExtension"`
	Filepath           string `json:"filepath"`
}

// TitleIndex searches the per-document title index.
type TitleIndex struct {
	client   *Client
	index    string
	semantic SemanticOptions
}

func NewTitleIndex(client *Client, index string, semantic SemanticOptions) *TitleIndex {
	return &TitleIndex{client: client, index: index, semantic: semantic}
}

// SearchTitles is a full-text match on document titles, used for fuzzy
// organization resolution.
func (t *TitleIndex) SearchTitles(ctx context.Context, keyword string, top int) ([]domain.TitleHit, error) {
	var docs []titleDocument
	err := t.client.Search(ctx, t.index, SearchRequest{
		Search:       keyword,
		QueryType:    "full",
		Count:        true,
		Top:          top,
		Select:       "title, titleWithExtension",
		SearchFields: "title, titleWithExtension",
	}, &docs)
	if err != nil {
		return nil, err
	}
	return toTitleHits(docs), nil
}

// SearchDocuments ranks documents semantically against keyword.
func (t *TitleIndex) SearchDocuments(ctx context.Context, keyword string, top int) ([]domain.TitleHit, error) {
	req := t.semantic.request(keyword, top)
	req.Select = "title, filepath"

	var docs []titleDocument
	if err := t.client.Search(ctx, t.index, req, &docs); err != nil {
		return nil, err
	}
	return toTitleHits(docs), nil
}

func (t *TitleIndex) Ping(ctx context.Context) error {
	return t.client.Ping(ctx, t.index)
}

func toTitleHits(docs []titleDocument) []domain.TitleHit {
	out := make([]domain.TitleHit, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.TitleHit{
			Title:              d.Title,
			TitleWithExtension: d.TitleWithExtension,
			Filepath:           d.Filepath,
		})
	}
	return out
}

type contentDocument struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Filepath   string `json:"filepath"`
	ChunkingID any    `json:"chunkingId"`
}

// ContentIndex searches document chunks.
type ContentIndex struct {
	client   *Client
	index    string
	semantic SemanticOptions
}

func NewContentIndex(client *Client, index string, semantic SemanticOptions) *ContentIndex {
	return &ContentIndex{client: client, index: index, semantic: semantic}
}

// SearchContent returns up to top chunks. A non-empty scope restricts the
// search to the listed file paths.
func (c *ContentIndex) SearchContent(ctx context.Context, keyword string, top int, scope []string) ([]domain.ContentHit, error) {
	req := c.semantic.request(keyword, top)
	req.Select = "title, content, filepath, chunkingId"
	req.SearchFields = "content, title"
	req.Filter = filepathFilter(scope)

	var docs []contentDocument
	if err := c.client.Search(ctx, c.index, req, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.ContentHit, 0, len(docs))
	for _, d := range docs {
		hit := domain.ContentHit{Title: d.Title, Content: d.Content, Filepath: d.Filepath}
		if d.ChunkingID != nil {
			hit.ChunkID = fmt.Sprint(d.ChunkingID)
		}
		out = append(out, hit)
	}
	return out, nil
}

func (c *ContentIndex) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, c.index)
}

// filepathFilter renders an OData disjunction over file paths with single
// quotes doubled.
func filepathFilter(paths []string) string {
	conditions := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("filepath eq '%s'", strings.ReplaceAll(p, "'", "''")))
	}
	return strings.Join(conditions, " or ")
}
