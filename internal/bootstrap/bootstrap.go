package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/permit-assistant/internal/adapters/tools"
	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
	"github.com/kirillkom/permit-assistant/internal/core/usecase"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/register/xlsx"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/search/azure"
)

// MetadataStore is everything the app needs from the permit metadata backend.
type MetadataStore interface {
	ports.PermitMetadataStore
	ports.OrganizationSource
	ports.PermitDocumentWriter
}

// Options selects which backends New connects to. Each command only opens
// what it uses.
type Options struct {
	Metadata bool
	Search   bool
	LLM      bool
	Queue    bool

	// ToolRecorder observes every tool call made through the dispatcher.
	ToolRecorder tools.Recorder
	// QueueLagObserver receives publish-to-receive delays of ingestion events.
	QueueLagObserver func(time.Duration)
}

type App struct {
	Config config.Config

	Store      MetadataStore
	Queue      ports.MessageQueue
	Catalog    *usecase.OrganizationCatalog
	PermitUC   *usecase.PermitToolUseCase
	IngestUC   *usecase.IngestPermitUseCase
	AgentUC    *usecase.AgentChatUseCase
	Dispatcher *tools.Dispatcher

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	if opts.Metadata {
		store, err := app.openMetadata(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Store = store
	}

	if opts.Queue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			LagObserver: opts.QueueLagObserver,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	var writer ports.PermitDocumentWriter
	if app.Store != nil {
		writer = app.Store
	}
	app.IngestUC = usecase.NewIngestPermitUseCase(writer, app.Queue)

	if app.Store != nil && cfg.MetadataSeedXLSX != "" {
		if err := app.seed(ctx, cfg.MetadataSeedXLSX); err != nil {
			app.Close()
			return nil, err
		}
	}

	if opts.Search {
		if app.Store == nil {
			app.Close()
			return nil, domain.WrapError(domain.ErrConfiguration, "bootstrap", fmt.Errorf("search tools need a metadata store"))
		}
		if err := app.wireTools(ctx, opts.ToolRecorder); err != nil {
			app.Close()
			return nil, err
		}
	}

	if opts.LLM {
		if app.Dispatcher == nil {
			app.Close()
			return nil, domain.WrapError(domain.ErrConfiguration, "bootstrap", fmt.Errorf("agent needs the permit tools"))
		}
		app.wireAgent(ctx)
	}

	return app, nil
}

func (a *App) openMetadata(ctx context.Context) (MetadataStore, error) {
	switch a.Config.MetadataBackend {
	case "memory":
		slog.Info("metadata_backend", "mode", "memory")
		return memory.NewPermitStore(), nil
	case "postgres", "":
		db, err := postgres.OpenDB(ctx, a.Config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		slog.Info("metadata_backend", "mode", "postgres")
		return postgres.NewPermitRepository(db), nil
	default:
		return nil, domain.WrapError(
			domain.ErrConfiguration,
			"open metadata store",
			fmt.Errorf("unknown METADATA_BACKEND %q", a.Config.MetadataBackend),
		)
	}
}

func (a *App) seed(ctx context.Context, path string) error {
	docs, err := xlsx.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed register: %w", err)
	}
	for i := range docs {
		if err := a.IngestUC.Ingest(ctx, &docs[i]); err != nil {
			return fmt.Errorf("seed permit register: %w", err)
		}
	}
	slog.Info("metadata_seeded", "path", path, "documents", len(docs))
	return nil
}

func (a *App) wireTools(ctx context.Context, recorder tools.Recorder) error {
	cfg := a.Config

	searchPolicy := resilience.SearchConfig()
	searchPolicy.OnRetry = logRetry
	client := azure.NewClient(azure.Config{
		Endpoint:   cfg.SearchEndpoint,
		APIKey:     cfg.SearchAPIKey,
		APIVersion: cfg.SearchAPIVersion,
		Timeout:    time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
		Executor:   resilience.NewExecutor(searchPolicy),
	})
	semantic := azure.SemanticOptions{
		Configuration:  cfg.SearchSemanticConfig,
		ScoringProfile: cfg.SearchScoringProfile,
		QueryLanguage:  cfg.SearchQueryLanguage,
		VectorFields:   cfg.SearchVectorFields,
	}
	titles := azure.NewTitleIndex(client, cfg.SearchTitleIndex, semantic)
	content := azure.NewContentIndex(client, cfg.SearchContentIndex, semantic)

	if !cfg.SearchSkipStartupProbe {
		if err := titles.Ping(ctx); err != nil {
			return fmt.Errorf("probe title index %s: %w", cfg.SearchTitleIndex, err)
		}
		if err := content.Ping(ctx); err != nil {
			return fmt.Errorf("probe content index %s: %w", cfg.SearchContentIndex, err)
		}
	}

	a.Catalog = usecase.NewOrganizationCatalog(a.Store, cfg.OrgCatalogSize)
	resolver := usecase.NewOrganizationResolver(a.Catalog, titles, cfg.OrgTitleSearchTop)
	contentSearch := usecase.NewContentSearchUseCase(titles, content, usecase.ContentSearchLimits{
		TopK:            cfg.ContentTopK,
		TitleCandidates: cfg.ContentTitleCandidates,
		MaxScopeTitles:  cfg.ContentFilterMaxTitles,
	})
	a.PermitUC = usecase.NewPermitToolUseCase(a.Store, resolver, contentSearch, usecase.ResultCaps{
		IssuedByYear:       cfg.CapIssuedByYear,
		ExpiringByYear:     cfg.CapExpiringByYear,
		AlreadyExpired:     cfg.CapAlreadyExpired,
		ExpirationInterval: cfg.CapExpirationInterval,
		AllByOrganization:  cfg.CapAllByOrganization,
	})
	a.Dispatcher = tools.NewDispatcher(a.PermitUC, recorder)
	return nil
}

func (a *App) wireAgent(ctx context.Context) {
	cfg := a.Config

	llmPolicy := resilience.DefaultConfig().WithRetry(cfg.LLMMaxRetries+1, 0, 0)
	llmPolicy.OnRetry = logRetry
	llm := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
		Timeout:  time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		Executor: resilience.NewExecutor(llmPolicy),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := llm.Ping(pingCtx); err != nil {
		slog.Warn("llm_unavailable", "model", cfg.OllamaGenModel, "error", err)
	}

	a.AgentUC = usecase.NewAgentChatUseCase(llm, a.Dispatcher, a.Dispatcher.PlannerCatalog(), domain.AgentLimits{
		MaxIterations:  cfg.AgentMaxIterations,
		Timeout:        time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		PlannerTimeout: time.Duration(cfg.AgentPlannerTimeoutSeconds) * time.Second,
		ToolTimeout:    time.Duration(cfg.AgentToolTimeoutSeconds) * time.Second,
	})
}

func logRetry(operation string, attempt int, err error) {
	slog.Warn("backend_retry", "operation", operation, "attempt", attempt, "error", err)
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
