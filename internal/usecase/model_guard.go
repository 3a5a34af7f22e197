package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scholarship-rag/internal/domain"
)

// CheckEmbeddingModel fails when the index was built with a different embedding model.
// A missing index or one without a recorded model passes.
func CheckEmbeddingModel(ctx context.Context, index domain.VectorIndex, indexName, model string, logger *slog.Logger) error {
	desc, err := index.Describe(ctx, indexName)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			logger.WarnContext(ctx, "vector_index_missing", slog.String("index", indexName))
			return nil
		}
		return fmt.Errorf("describe index %s: %w", indexName, err)
	}
	if desc.EmbeddingModel != "" && desc.EmbeddingModel != model {
		return fmt.Errorf("%w: index %s was built with %q, configured model is %q",
			domain.ErrModelMismatch, indexName, desc.EmbeddingModel, model)
	}
	return nil
}
