package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"scholarship-rag/internal/domain"
)

type memoryIndex struct {
	spec   domain.IndexSpec
	chunks map[string]domain.PassageChunk
}

// MemoryIndex is an in-process VectorIndex with exact cosine search.
// It backs local development (ingest-on-start) and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

// NewMemoryIndex creates an empty in-memory index set.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{indexes: make(map[string]*memoryIndex)}
}

func (m *MemoryIndex) Describe(ctx context.Context, name string) (*domain.IndexDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
	}
	return &domain.IndexDescription{
		Name:           name,
		Dimension:      idx.spec.Dimension,
		Metric:         idx.spec.Metric,
		EmbeddingModel: idx.spec.EmbeddingModel,
		Ready:          true,
		State:          "Ready",
		VectorCount:    int64(len(idx.chunks)),
	}, nil
}

func (m *MemoryIndex) Create(ctx context.Context, spec domain.IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	if spec.Metric != domain.MetricCosine {
		return fmt.Errorf("unsupported metric %q", spec.Metric)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.indexes[spec.Name]; ok {
		return fmt.Errorf("index %s already exists", spec.Name)
	}
	m.indexes[spec.Name] = &memoryIndex{spec: spec, chunks: make(map[string]domain.PassageChunk)}
	return nil
}

func (m *MemoryIndex) Drop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.indexes, name)
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, name string, chunks []domain.PassageChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
	}
	for _, c := range chunks {
		if len(c.Vector) != idx.spec.Dimension {
			return fmt.Errorf("%w: chunk %s has %d values, index expects %d",
				domain.ErrDimensionMismatch, c.ID, len(c.Vector), idx.spec.Dimension)
		}
	}
	for _, c := range chunks {
		stored := c
		stored.Vector = append([]float32(nil), c.Vector...)
		idx.chunks[c.ID] = stored
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, name string, vector []float32, topK int) (*domain.RetrievalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
	}
	if len(vector) != idx.spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			domain.ErrDimensionMismatch, len(vector), idx.spec.Dimension)
	}

	type scored struct {
		chunk domain.PassageChunk
		score float32
	}
	results := make([]scored, 0, len(idx.chunks))
	for _, c := range idx.chunks {
		results = append(results, scored{chunk: c, score: cosineSimilarity(vector, c.Vector)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunk.ChunkIndex < results[j].chunk.ChunkIndex
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}

	out := &domain.RetrievalResult{
		Chunks: make([]domain.PassageChunk, len(results)),
		Scores: make([]float32, len(results)),
	}
	for i, r := range results {
		out.Chunks[i] = r.chunk
		out.Scores[i] = r.score
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ domain.VectorIndex = (*MemoryIndex)(nil)
