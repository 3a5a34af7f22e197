package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scholarship-rag/internal/domain"
)

const healthProbeText = "health check"

// HealthStatus is the result of probing the embedding service.
type HealthStatus struct {
	Healthy   bool
	Dimension int
	Err       error
	CheckedAt time.Time
}

// Readiness reports whether the retrieval path can serve queries.
type Readiness struct {
	Ready       bool
	Index       string
	State       string
	VectorCount int64
	Err         error
}

// HealthUsecase probes the dependencies of the chat pipeline.
type HealthUsecase interface {
	// Check issues one embedding call. It does not touch the index or the chat model.
	Check(ctx context.Context) HealthStatus
	// Ready describes the vector index.
	Ready(ctx context.Context) Readiness
}

type healthUsecase struct {
	encoder   domain.VectorEncoder
	index     domain.VectorIndex
	indexName string
	now       func() time.Time
	logger    *slog.Logger
}

func NewHealthUsecase(encoder domain.VectorEncoder, index domain.VectorIndex, indexName string, logger *slog.Logger) HealthUsecase {
	return &healthUsecase{
		encoder:   encoder,
		index:     index,
		indexName: indexName,
		now:       time.Now,
		logger:    logger,
	}
}

func (u *healthUsecase) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{CheckedAt: u.now().UTC()}

	vectors, err := u.encoder.Encode(ctx, []string{healthProbeText})
	switch {
	case err != nil:
		status.Err = fmt.Errorf("%w: %w", domain.ErrUpstreamEmbedding, err)
	case len(vectors) == 0 || len(vectors[0]) == 0:
		status.Err = fmt.Errorf("%w: %w", domain.ErrUpstreamEmbedding, domain.ErrEmptyEmbedding)
	default:
		status.Healthy = true
		status.Dimension = len(vectors[0])
	}

	if status.Err != nil {
		u.logger.WarnContext(ctx, "health_check_failed", slog.String("error", status.Err.Error()))
	}
	return status
}

func (u *healthUsecase) Ready(ctx context.Context) Readiness {
	r := Readiness{Index: u.indexName}

	desc, err := u.index.Describe(ctx, u.indexName)
	if err != nil {
		r.Err = err
		if errors.Is(err, domain.ErrIndexNotFound) {
			r.State = "NotFound"
		}
		return r
	}
	r.Ready = desc.Ready
	r.State = desc.State
	r.VectorCount = desc.VectorCount
	return r
}
