package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmtemkin/needham-navigator-sub000/internal/config"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/ports"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/usecase"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/chunking"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/llm/ollama"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/queue/nats"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/repository/postgres"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/rerank/httprerank"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/resilience"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/storage/localfs"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/vector/qdrant"
	"github.com/cmtemkin/needham-navigator-sub000/internal/observability/logging"
)

// App wires configuration into the use cases a binary needs. Both the
// API and the worker build the full graph; unused edges are cheap.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue      ports.MessageQueue
	Repo       ports.DocumentRepository
	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	RetrieveUC ports.PassageRetriever

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

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

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaRewriteModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	rewriter := ollama.NewRewriter(ollamaClient)

	var crossEncoder ports.CrossEncoder
	if cfg.RerankURL != "" {
		crossEncoder = httprerank.New(cfg.RerankURL, cfg.RerankModel, executor)
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAuxiliaryCollection, executor)

	tokenizer, err := chunking.NewTiktokenTokenizer(cfg.TokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	chunker := chunking.New(tokenizer)

	rules, err := config.LoadExpansionRules(cfg.ExpansionRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load expansion rules: %w", err)
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, chunker, embedder, vectorDB)
	retrieveUC, err := usecase.NewRetrieveUseCase(
		embedder,
		vectorDB,
		rewriter,
		crossEncoder,
		rules,
		retrievalDefaults(cfg),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("init retrieval: %w", err)
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:      queue,
		Repo:       repo,
		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		RetrieveUC: retrieveUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func retrievalDefaults(cfg config.Config) domain.RetrievalConfig {
	rewrite := cfg.RewriteEnabled
	crossEncoder := cfg.CrossEncoderEnabled
	siblings := cfg.SiblingExpansion
	return domain.RetrievalConfig{
		MaxResults:          cfg.RetrievalMaxResults,
		PerSearchLimit:      cfg.RetrievalPerSearchLimit,
		PerDocumentCap:      cfg.RetrievalPerDocumentCap,
		SimilarityFloor:     cfg.RetrievalFloor,
		SearchThreshold:     cfg.RetrievalThreshold,
		RerankTimeout:       cfg.RetrievalRerankTimeout,
		RewriteEnabled:      &rewrite,
		CrossEncoderEnabled: &crossEncoder,
		SiblingExpansion:    &siblings,
	}.Normalize()
}
