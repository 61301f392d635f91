package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-poi-discovery/app/db"
	"github.com/FACorreiaa/go-poi-discovery/app/resilience"
	"github.com/FACorreiaa/go-poi-discovery/config"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/discovery"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/followup"
	generativeAI "github.com/FACorreiaa/go-poi-discovery/internal/api/generative_ai"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/hours"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/intent"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/search"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/session"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	SessionStore     *session.Store
	SearchBreaker    *resilience.Breaker
	VectorStore      search.Store
	DiscoveryHandler *discovery.HandlerImpl
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	// Initialize database
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// Session store with Postgres write-through
	sessionRepo := session.NewPostgresRepository(pool, logger)
	sessionStore := session.NewStore(sessionRepo, logger, session.WithTTL(cfg.Discovery.SessionTTL))

	// Vector store behind the circuit breaker. A startup connection failure
	// is fatal; per-call failures are the breaker's job.
	vectorStore := search.NewPgvectorStore(pool, logger)
	if err := vectorStore.Connect(ctx); err != nil {
		logger.Error("Failed to connect vector store", slog.Any("error", err))
		return nil, err
	}

	breaker := resilience.NewBreaker(resilience.Settings{
		Name:                "embedding-store",
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		VolumeThreshold:     cfg.Breaker.VolumeThreshold,
		SuccessThreshold:    cfg.Breaker.SuccessThreshold,
		ResetTimeout:        cfg.Breaker.ResetTimeout,
		ExecutionTimeout:    cfg.Breaker.ExecutionTimeout,
		MaintenanceInterval: cfg.Breaker.MaintenanceInterval,
	}, logger)

	// Gemini collaborators: embeddings are required, the reranker is
	// best-effort and the pipeline runs without one.
	embeddingService, err := generativeAI.NewEmbeddingService(ctx, logger)
	if err != nil {
		logger.Error("Failed to create embedding service", slog.Any("error", err))
		return nil, err
	}
	var reranker search.Reranker
	if r, err := generativeAI.NewReranker(ctx, logger); err != nil {
		logger.Warn("Reranker unavailable, using natural ordering", slog.Any("error", err))
	} else {
		reranker = r
	}

	resultCache := search.NewResultCache(cfg.Discovery.CacheTTL, cfg.Discovery.CacheCleanupInterval)
	pipeline := search.NewPipeline(vectorStore, reranker, resultCache, breaker, search.PipelineConfig{
		RerankThreshold:    cfg.Discovery.RerankThreshold,
		DefaultResultCount: cfg.Discovery.DefaultResultCount,
	}, logger)

	classifier := intent.NewClassifier()
	resolver := followup.NewResolver(logger)
	hoursEngine := hours.NewEngine(logger)

	discoveryService := discovery.NewServiceImpl(
		sessionStore,
		classifier,
		resolver,
		hoursEngine,
		pipeline,
		embeddingService,
		discovery.Config{
			DefaultCollection:  cfg.Discovery.DefaultCollection,
			DefaultResultCount: cfg.Discovery.DefaultResultCount,
		},
		logger,
	)
	discoveryHandler := discovery.NewHandlerImpl(discoveryService, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		SessionStore:     sessionStore,
		SearchBreaker:    breaker,
		VectorStore:      vectorStore,
		DiscoveryHandler: discoveryHandler,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations(connectionURL string) error {
	return database.RunMigrations(connectionURL, c.Logger)
}
