// Package metrics provides Prometheus metrics for the chat and ingestion pipelines.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"scholarship-rag/internal/domain"
)

const namespace = "scholarship_rag"

var (
	// ChatRequestsTotal counts chat requests by outcome.
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"status"},
	)

	// StageDuration measures each chat pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of chat pipeline stages in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// UpstreamErrorsTotal counts stage failures by upstream kind.
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of failed pipeline stages",
		},
		[]string{"stage", "kind"},
	)

	// IngestedChunksTotal counts chunks written to the vector index.
	IngestedChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Total number of chunks upserted into the vector index",
		},
	)
)

// Observer records pipeline events into the package collectors.
type Observer struct{}

func (Observer) ObserveStage(stage string, elapsed time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		UpstreamErrorsTotal.WithLabelValues(stage, ErrorKind(err)).Inc()
	}
}

func (Observer) ObserveChat(status string) {
	ChatRequestsTotal.WithLabelValues(status).Inc()
}

func (Observer) ObserveIngestedChunks(n int) {
	IngestedChunksTotal.Add(float64(n))
}

// ErrorKind maps an error to a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyEmbedding):
		return "empty_embedding"
	case errors.Is(err, domain.ErrUpstreamEmbedding):
		return "embedding"
	case errors.Is(err, domain.ErrUpstreamRetrieval):
		return "retrieval"
	case errors.Is(err, domain.ErrUpstreamGeneration):
		return "generation"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrIndexNotFound):
		return "index_not_found"
	default:
		return "other"
	}
}
