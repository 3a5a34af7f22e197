package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scholarship-rag/internal/domain"
)

// pageBreak separates pages in plain-text exports of paged documents.
const pageBreak = "\f"

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// TextLoader reads plain text and markdown files.
// Form feeds split the file into numbered pages; a file without them is one
// section with no page number.
type TextLoader struct{}

// NewTextLoader creates a text loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Supports(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

func (l *TextLoader) Load(ctx context.Context, path string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := &domain.Document{Source: filepath.Base(path)}
	text := string(content)
	if !strings.Contains(text, pageBreak) {
		doc.Sections = []domain.Section{{Text: text}}
		return doc, nil
	}

	for i, pageText := range strings.Split(text, pageBreak) {
		page := i + 1
		doc.Sections = append(doc.Sections, domain.Section{Text: pageText, Page: &page})
	}
	return doc, nil
}

var _ domain.DocumentLoader = (*TextLoader)(nil)
