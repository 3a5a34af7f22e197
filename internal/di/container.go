package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"scholarship-rag/internal/adapter/chat_http"
	"scholarship-rag/internal/adapter/conversation"
	"scholarship-rag/internal/adapter/loader"
	"scholarship-rag/internal/adapter/ollama"
	"scholarship-rag/internal/adapter/vectorindex"
	"scholarship-rag/internal/domain"
	"scholarship-rag/internal/infra"
	"scholarship-rag/internal/infra/config"
	"scholarship-rag/internal/infra/httpclient"
	"scholarship-rag/internal/infra/metrics"
	"scholarship-rag/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Adapters
	Encoder     domain.VectorEncoder
	ChatClient  domain.ChatClient
	VectorIndex domain.VectorIndex
	Store       domain.ConversationStore

	// Usecases
	ChatUsecase   usecase.ChatUsecase
	HealthUsecase usecase.HealthUsecase
	IngestUsecase usecase.IngestDocumentUsecase

	Handler *chat_http.Handler

	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewApplicationComponents opens the configured backends and wires the pipelines.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, error) {
	c := &ApplicationComponents{}

	// Vector index
	switch cfg.Vector.Backend {
	case "memory":
		c.VectorIndex = vectorindex.NewMemoryIndex()
	default:
		pool, err := infra.NewPostgresDB(ctx, cfg.DB.DSN(), infra.PoolConfig{
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.pool = pool
		c.VectorIndex = vectorindex.NewPgvectorIndex(pool)
	}
	log.Info("vector_index_configured",
		slog.String("backend", cfg.Vector.Backend),
		slog.String("index", cfg.Vector.IndexName))

	// Conversation memory
	switch cfg.Conversation.Backend {
	case "redis":
		client, err := infra.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.redis = client
		c.Store = conversation.NewRedisStore(client, cfg.Conversation.TTL)
	default:
		c.Store = conversation.NewMemoryStore(cfg.Conversation.MaxSession, cfg.Conversation.TTL)
	}
	log.Info("conversation_store_configured",
		slog.String("backend", cfg.Conversation.Backend),
		slog.Duration("ttl", cfg.Conversation.TTL))

	// Model clients share one pooled transport
	ollamaHTTP := httpclient.NewPooledClient(time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second)
	encoder := ollama.NewEmbedder(cfg.Ollama.URL, cfg.Ollama.EmbeddingModel, cfg.Ollama.TimeoutSeconds, ollamaHTTP, log)
	chatClient := ollama.NewChatClient(cfg.Ollama.URL, cfg.Ollama.ChatModel, cfg.Ollama.TimeoutSeconds, ollamaHTTP, log)
	c.Encoder = encoder
	c.ChatClient = chatClient

	observer := metrics.Observer{}

	rewriter := usecase.NewQueryRewriter(chatClient, cfg.RAG.MinRewriteRunes, log)
	generator := usecase.NewAnswerGenerator(chatClient, cfg.RAG.HistoryWindow)
	c.ChatUsecase = usecase.NewChatUsecase(
		rewriter, encoder, c.VectorIndex, c.Store, generator,
		usecase.NewSessionLocker(), observer,
		usecase.ChatConfig{
			IndexName:     cfg.Vector.IndexName,
			TopK:          cfg.RAG.TopK,
			HistoryWindow: cfg.RAG.HistoryWindow,
			MaxTurns:      cfg.RAG.MaxTurns,
			SourceCount:   cfg.RAG.SourceCount,
			Timeout:       cfg.Server.ChatTimeout,
		},
		log,
	)
	c.HealthUsecase = usecase.NewHealthUsecase(encoder, c.VectorIndex, cfg.Vector.IndexName, log)

	splitter, err := domain.NewRecursiveSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("configure splitter: %w", err)
	}
	c.IngestUsecase = usecase.NewIngestDocumentUsecase(
		loader.NewDefault(), splitter, encoder, c.VectorIndex, observer,
		usecase.IngestConfig{
			BatchSize:         cfg.Ingest.BatchSize,
			BatchInterval:     cfg.Ingest.BatchInterval,
			ReadyPollInterval: cfg.Ingest.ReadyPollInterval,
			ReadyTimeout:      cfg.Ingest.ReadyTimeout,
			EmbeddingModel:    cfg.Ollama.EmbeddingModel,
		},
		log,
	)

	c.Handler = chat_http.NewHandler(c.ChatUsecase, c.HealthUsecase, log)
	return c, nil
}

// Close releases the backend connections.
func (c *ApplicationComponents) Close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
}
