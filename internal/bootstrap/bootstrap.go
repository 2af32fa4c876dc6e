// Package bootstrap wires the infrastructure behind the core ports.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/pldubois/ragdoc/internal/config"
	"github.com/pldubois/ragdoc/internal/core/ports"
	"github.com/pldubois/ragdoc/internal/core/usecase"
	"github.com/pldubois/ragdoc/internal/infrastructure/chunking"
	"github.com/pldubois/ragdoc/internal/infrastructure/extractor"
	"github.com/pldubois/ragdoc/internal/infrastructure/index/flat"
	"github.com/pldubois/ragdoc/internal/infrastructure/llm/ollama"
	"github.com/pldubois/ragdoc/internal/infrastructure/llm/openai"
	"github.com/pldubois/ragdoc/internal/infrastructure/queue/nats"
	"github.com/pldubois/ragdoc/internal/infrastructure/repository/postgres"
	"github.com/pldubois/ragdoc/internal/infrastructure/resilience"
	"github.com/pldubois/ragdoc/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository
	Index ports.VectorIndex

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, generator, err := buildLLMProvider(cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}

	index, err := flat.Open(cfg.IndexPath, cfg.VectorDimension)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	segmenter, err := chunking.New(chunking.Config{
		ChunkSize:    cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		MinChunkSize: cfg.MinChunkSize,
		Measure:      chunking.MeasureByName(cfg.ChunkMeasure),
	})
	if err != nil {
		return nil, fmt.Errorf("init segmenter: %w", err)
	}

	textExtractor := extractor.NewDispatcher(storage)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, textExtractor, segmenter, embedder, index)
	queryUC := usecase.NewQueryUseCase(embedder, index, generator, cfg.RAGTopK)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Index:  index,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func buildLLMProvider(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.AnswerGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithResilience(executor)
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	case "openai":
		provider, err := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel, cfg.OpenAIChatModel)
		if err != nil {
			return nil, nil, err
		}
		return provider, provider, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider: %q", cfg.LLMProvider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
