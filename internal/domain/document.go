package domain

import "context"

// Section is one page or logical section of a loaded document.
type Section struct {
	Text string
	Page *int
}

// Document is a loaded source document split into sections.
type Document struct {
	Source   string
	Sections []Section
}

// DocumentLoader reads a source document from a path.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (*Document, error)
	Supports(path string) bool
}
