package domain

import "context"

// MetricCosine is the only similarity metric the pipeline creates indexes with.
const MetricCosine = "cosine"

// IndexSpec describes an index to be created.
type IndexSpec struct {
	Name           string
	Dimension      int
	Metric         string
	EmbeddingModel string
}

// IndexDescription reports the state of an existing index.
type IndexDescription struct {
	Name           string
	Dimension      int
	Metric         string
	EmbeddingModel string
	Ready          bool
	State          string
	VectorCount    int64
}

// VectorIndex stores passage vectors and answers nearest-neighbour queries.
type VectorIndex interface {
	// Describe returns ErrIndexNotFound when the index does not exist.
	Describe(ctx context.Context, name string) (*IndexDescription, error)

	// Create creates an empty index. Creating an existing index is an error.
	Create(ctx context.Context, spec IndexSpec) error

	// Drop removes the index and all its vectors. Dropping a missing index is a no-op.
	Drop(ctx context.Context, name string) error

	// Upsert inserts or replaces chunks by id.
	Upsert(ctx context.Context, name string, chunks []PassageChunk) error

	// Query returns the topK chunks closest to vector by cosine similarity, score-descending.
	Query(ctx context.Context, name string, vector []float32, topK int) (*RetrievalResult, error)
}
