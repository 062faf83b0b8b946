package azure

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
)

const DefaultAPIVersion = "2025-05-01-preview"

type Config struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
	Executor   *resilience.Executor
}

// Client talks to one search service. Index names are chosen per call.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Executor == nil {
		cfg.Executor = resilience.NewExecutor(resilience.SearchConfig())
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   cfg.Executor,
	}
}

// SearchRequest is the docs/search request body.
type SearchRequest struct {
	Search                string        `json:"search"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	ScoringProfile        string        `json:"scoringProfile,omitempty"`
	QueryLanguage         string        `json:"queryLanguage,omitempty"`
	Captions              string        `json:"captions,omitempty"`
	Count                 bool          `json:"count"`
	Top                   int           `json:"top,omitempty"`
	Select                string        `json:"select,omitempty"`
	SearchFields          string        `json:"searchFields,omitempty"`
	Filter                string        `json:"filter,omitempty"`
	VectorQueries         []VectorQuery `json:"vectorQueries,omitempty"`
}

type VectorQuery struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Fields string `json:"fields"`
	K      int    `json:"k,omitempty"`
}

// Search runs req against index and decodes the "value" array into out,
// which must point to a slice.
func (c *Client) Search(ctx context.Context, index string, req SearchRequest, out any) error {
	envelope := searchResponse{Value: out}
	err := c.executor.Execute(ctx, "search."+index, func(callCtx context.Context) error {
		return c.do(callCtx, http.MethodPost, c.indexURL(index, "/docs/search"), req, &envelope, "search "+index)
	}, classifySearchError)
	return wrapKind("search "+index, err)
}

// Ping checks the index exists and the key can read it.
func (c *Client) Ping(ctx context.Context, index string) error {
	err := c.do(ctx, http.MethodGet, c.indexURL(index, ""), nil, nil, "probe "+index)
	return wrapKind("probe index "+index, err)
}

func (c *Client) indexURL(index, suffix string) string {
	return c.endpoint + "/indexes/" + index + suffix + "?api-version=" + c.apiVersion
}

type searchResponse struct {
	Value any `json:"value"`
}
