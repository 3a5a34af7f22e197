package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"scholarship-rag/internal/domain"
)

// PDFLoader extracts plain text from a PDF, one section per page.
type PDFLoader struct{}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

func (l *PDFLoader) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Load reads every page. Pages without extractable text are kept as empty
// sections so that page numbers stay aligned with the source.
func (l *PDFLoader) Load(ctx context.Context, path string) (*domain.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	doc := &domain.Document{Source: filepath.Base(path)}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := i
		p := reader.Page(i)
		if p.V.IsNull() {
			doc.Sections = append(doc.Sections, domain.Section{Page: &page})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		doc.Sections = append(doc.Sections, domain.Section{Text: text, Page: &page})
	}

	return doc, nil
}

var _ domain.DocumentLoader = (*PDFLoader)(nil)
