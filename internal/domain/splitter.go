package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SplitterVersion identifies the chunking algorithm an index was built with.
type SplitterVersion string

// SplitterVersionRecursiveV1 is the separator-recursive character splitter.
const SplitterVersionRecursiveV1 SplitterVersion = "recursive-v1"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how many trailing characters of a chunk are repeated
	// at the start of the next one, so that answers spanning a boundary survive.
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts a section of text into overlapping chunks.
type Splitter interface {
	Split(text string) []string
	Version() SplitterVersion
}

type recursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewRecursiveSplitter creates a splitter that prefers the coarsest separator that
// keeps chunks under chunkSize, recursing into finer separators for oversized pieces.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &recursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

func (s *recursiveSplitter) Version() SplitterVersion {
	return SplitterVersionRecursiveV1
}

// Split normalizes newlines and returns trimmed, non-empty chunks in document order.
func (s *recursiveSplitter) Split(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	if strings.TrimSpace(normalized) == "" {
		return nil
	}
	return s.split(normalized, s.separators)
}

func (s *recursiveSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var final, pending []string
	for _, piece := range splitOn(text, separator) {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			final = append(final, s.merge(pending, separator)...)
			pending = nil
		}
		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				final = append(final, trimmed)
			}
			continue
		}
		final = append(final, s.split(piece, finer)...)
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending, separator)...)
	}
	return final
}

// merge packs small pieces into chunks no longer than chunkSize, carrying up to
// chunkOverlap characters of the previous chunk into the next.
func (s *recursiveSplitter) merge(pieces []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if total+pieceLen+joinLen(len(current), sepLen) > s.chunkSize {
			if len(current) > 0 {
				if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
					chunks = append(chunks, chunk)
				}
				for total > s.chunkOverlap || (total > 0 && total+pieceLen+joinLen(len(current), sepLen) > s.chunkSize) {
					total -= utf8.RuneCountInString(current[0]) + joinLen(len(current)-1, sepLen)
					current = current[1:]
				}
			}
		}
		total += pieceLen + joinLen(len(current), sepLen)
		current = append(current, piece)
	}

	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// joinLen is the separator cost of adding one more piece to a chunk holding n pieces.
func joinLen(n, sepLen int) int {
	if n > 0 {
		return sepLen
	}
	return 0
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, part := range strings.Split(text, separator) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
