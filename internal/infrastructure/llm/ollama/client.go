package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
)

type Options struct {
	Timeout    time.Duration
	MaxRetries int
	Executor   *resilience.Executor
}

// Client generates completions through the Ollama HTTP API.
type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string) *Client {
	return NewWithOptions(baseURL, genModel, Options{})
}

func NewWithOptions(baseURL, genModel string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Second
	}
	if opts.Executor == nil {
		cfg := resilience.DefaultConfig()
		if opts.MaxRetries >= 0 {
			cfg.RetryMaxAttempts = opts.MaxRetries + 1
		}
		opts.Executor = resilience.NewExecutor(cfg)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

func (c *Client) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, generateRequest{Model: c.genModel, Prompt: prompt})
}

// GenerateJSONFromPrompt asks for JSON output and returns the outermost
// object found in the response.
func (c *Client) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	raw, err := c.generate(ctx, generateRequest{Model: c.genModel, Prompt: prompt, Format: "json"})
	if err != nil {
		return "", err
	}
	return extractJSONObject(raw), nil
}

// Ping checks that the server answers and the generation model is pulled.
func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &response, "tags"); err != nil {
		return wrapTemporaryIfNeeded("ollama ping", err)
	}
	for _, model := range response.Models {
		if model.Name == c.genModel || strings.TrimSuffix(model.Name, ":latest") == c.genModel {
			return nil
		}
	}
	return domain.WrapError(domain.ErrConfiguration, "ollama ping", fmt.Errorf("model %q is not available", c.genModel))
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	var response generateResponse
	err := c.executor.Execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		return c.do(callCtx, http.MethodPost, "/api/generate", req, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}
