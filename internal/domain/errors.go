package domain

import "errors"

// Error taxonomy shared by the chat and ingestion pipelines.
// Callers wrap these with fmt.Errorf("...: %w") and classify with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamEmbedding   = errors.New("embedding service failed")
	ErrUpstreamRetrieval   = errors.New("vector index failed")
	ErrUpstreamGeneration  = errors.New("language model failed")
	ErrEmptyEmbedding      = errors.New("embedding service returned an empty vector")
	ErrDimensionMismatch   = errors.New("vector index dimension mismatch")
	ErrModelMismatch       = errors.New("vector index embedding model mismatch")
	ErrIndexNotFound       = errors.New("vector index not found")
	ErrUnsupportedDocument = errors.New("unsupported document type")
)
