package ollama

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"scholarship-rag/internal/domain"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embedder turns texts into vectors through /api/embed.
type Embedder struct {
	endpoint
	model string
}

// NewEmbedder creates an embedder. A nil client gets a dedicated one with the given timeout.
func NewEmbedder(baseURL, model string, timeoutSeconds int, client *http.Client, logger *slog.Logger) *Embedder {
	return &Embedder{
		endpoint: newEndpoint(baseURL, client, 30*time.Second, timeoutSeconds, logger),
		model:    model,
	}
}

func (e *Embedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	var resp embedResponse
	if err := e.postJSON(ctx, "ollama_embed", "/api/embed", embedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "ollama_embed_completed",
		slog.String("model", e.model),
		slog.Int("text_count", len(texts)),
		slog.Int("embedding_count", len(resp.Embeddings)),
		slog.Duration("elapsed", time.Since(start)))
	return resp.Embeddings, nil
}

// Version is the embedding model tag recorded on the index.
func (e *Embedder) Version() string {
	return e.model
}

var _ domain.VectorEncoder = (*Embedder)(nil)
