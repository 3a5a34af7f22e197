// Package loader turns source documents on disk into sections for ingestion.
package loader

import (
	"context"
	"fmt"

	"scholarship-rag/internal/domain"
)

// Composite dispatches to the first loader that supports the path.
type Composite struct {
	loaders []domain.DocumentLoader
}

// NewComposite creates a loader over the given loaders, tried in order.
func NewComposite(loaders ...domain.DocumentLoader) *Composite {
	return &Composite{loaders: loaders}
}

// NewDefault supports PDF, plain text and markdown.
func NewDefault() *Composite {
	return NewComposite(NewPDFLoader(), NewTextLoader())
}

func (c *Composite) Supports(path string) bool {
	for _, l := range c.loaders {
		if l.Supports(path) {
			return true
		}
	}
	return false
}

func (c *Composite) Load(ctx context.Context, path string) (*domain.Document, error) {
	for _, l := range c.loaders {
		if l.Supports(path) {
			return l.Load(ctx, path)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, path)
}

var _ domain.DocumentLoader = (*Composite)(nil)
