package domain

import "fmt"

// PassageChunk is one embedded slice of a source document stored in the vector index.
type PassageChunk struct {
	ID         string
	Vector     []float32
	Text       string
	Source     string
	Page       *int // nil when the source has no page structure
	ChunkIndex int
}

// RetrievalResult holds the nearest chunks for one query, score-descending.
// Scores[i] belongs to Chunks[i].
type RetrievalResult struct {
	Chunks []PassageChunk
	Scores []float32
}

// ChunkID returns the deterministic id of the chunk at the given global position.
func ChunkID(globalIndex int) string {
	return fmt.Sprintf("doc_chunk_%d", globalIndex)
}

// Citation renders "<source> (page <page>)" or just the source when no page is known.
func (c PassageChunk) Citation() string {
	if c.Page == nil {
		return c.Source
	}
	return fmt.Sprintf("%s (page %d)", c.Source, *c.Page)
}
