package usecase

import (
	"fmt"
	"strings"

	"scholarship-rag/internal/domain"
)

// ContextSeparator joins context blocks.
const ContextSeparator = "\n\n---\n\n"

// AssembleContext formats retrieved passages as numbered, cited blocks in retrieval order.
// Passages with blank text are skipped and do not consume a number.
func AssembleContext(result *domain.RetrievalResult) string {
	if result == nil {
		return ""
	}

	blocks := make([]string, 0, len(result.Chunks))
	for _, chunk := range result.Chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Chunk %d — %s\n%s", len(blocks)+1, chunk.Citation(), chunk.Text))
	}
	return strings.Join(blocks, ContextSeparator)
}
