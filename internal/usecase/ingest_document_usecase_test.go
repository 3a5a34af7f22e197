package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scholarship-rag/internal/adapter/vectorindex"
	"scholarship-rag/internal/domain"
	"scholarship-rag/internal/usecase"
)

type stubLoader struct {
	doc *domain.Document
	err error
}

func (l *stubLoader) Load(context.Context, string) (*domain.Document, error) {
	return l.doc, l.err
}

func (l *stubLoader) Supports(string) bool {
	return true
}

// policyDocument has one short page per topic so each page becomes exactly one chunk.
func policyDocument(pages int) *domain.Document {
	doc := &domain.Document{Source: "policy.pdf"}
	for i := 0; i < pages; i++ {
		page := i + 1
		text := fmt.Sprintf("Section %d covers general campus administration, parking permits and office hours.", i)
		if i == 7 {
			text = "The merit scholarship application deadline is March 1. Merit awards require a 3.5 GPA."
		}
		doc.Sections = append(doc.Sections, domain.Section{Text: text, Page: &page})
	}
	return doc
}

func newSplitter(t *testing.T) domain.Splitter {
	t.Helper()
	s, err := domain.NewRecursiveSplitter(domain.DefaultChunkSize, domain.DefaultChunkOverlap)
	require.NoError(t, err)
	return s
}

func TestIngest_RoundTripRetrievesIngestedChunk(t *testing.T) {
	ctx := context.Background()
	enc := &bagOfWordsEncoder{dim: 256}
	idx := vectorindex.NewMemoryIndex()

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(30)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{BatchSize: 8, EmbeddingModel: enc.Version()}, discardLogger())

	report, err := uc.Execute(ctx, usecase.IngestInput{Path: "policy.pdf", IndexName: testIndex})
	require.NoError(t, err)
	assert.Equal(t, 30, report.Sections)
	assert.Equal(t, 30, report.Chunks)
	assert.Equal(t, 4, report.Batches)
	assert.Equal(t, 256, report.Dimension)
	// probe + one call per batch
	assert.Equal(t, 5, enc.Calls())

	desc, err := idx.Describe(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, int64(30), desc.VectorCount)
	assert.Equal(t, domain.MetricCosine, desc.Metric)
	assert.Equal(t, "bag-of-words", desc.EmbeddingModel)

	query, err := enc.Encode(ctx, []string{"When is the merit scholarship application deadline?"})
	require.NoError(t, err)
	result, err := idx.Query(ctx, testIndex, query[0], 10)
	require.NoError(t, err)

	var ids []string
	for _, c := range result.Chunks {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "doc_chunk_7")
	assert.Equal(t, "doc_chunk_7", result.Chunks[0].ID)
	assert.Equal(t, 8, *result.Chunks[0].Page)
	assert.Equal(t, "policy.pdf", result.Chunks[0].Source)
}

func TestIngest_AssignsGlobalChunkIDsAcrossBatches(t *testing.T) {
	enc := &bagOfWordsEncoder{dim: 2}
	idx := new(mockVectorIndex)

	idx.On("Describe", mock.Anything, testIndex).Return(nil, domain.ErrIndexNotFound).Once()
	idx.On("Create", mock.Anything, domain.IndexSpec{Name: testIndex, Dimension: 2, Metric: domain.MetricCosine, EmbeddingModel: "nomic-embed-text"}).Return(nil).Once()
	idx.On("Describe", mock.Anything, testIndex).Return(&domain.IndexDescription{Ready: true, State: "Ready"}, nil)

	var upserted [][]string
	idx.On("Upsert", mock.Anything, testIndex, mock.Anything).Run(func(args mock.Arguments) {
		var ids []string
		for _, c := range args.Get(2).([]domain.PassageChunk) {
			ids = append(ids, c.ID)
		}
		upserted = append(upserted, ids)
	}).Return(nil)

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(5)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{BatchSize: 2, EmbeddingModel: "nomic-embed-text"}, discardLogger())
	report, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	require.NoError(t, err)
	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, [][]string{
		{"doc_chunk_0", "doc_chunk_1"},
		{"doc_chunk_2", "doc_chunk_3"},
		{"doc_chunk_4"},
	}, upserted)
	idx.AssertExpectations(t)
}

func TestIngest_DimensionMismatchAborts(t *testing.T) {
	enc := &bagOfWordsEncoder{dim: 16}
	idx := new(mockVectorIndex)
	idx.On("Describe", mock.Anything, testIndex).
		Return(&domain.IndexDescription{Dimension: 768, Ready: true}, nil)

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(3)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	idx.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_ModelMismatchAborts(t *testing.T) {
	enc := &bagOfWordsEncoder{dim: 16}
	idx := new(mockVectorIndex)
	idx.On("Describe", mock.Anything, testIndex).
		Return(&domain.IndexDescription{Dimension: 16, Ready: true, EmbeddingModel: "mxbai-embed-large"}, nil)

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(3)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{EmbeddingModel: "nomic-embed-text"}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	assert.ErrorIs(t, err, domain.ErrModelMismatch)
}

func TestIngest_EmptyVectorAborts(t *testing.T) {
	enc := new(mockEncoder)
	idx := vectorindex.NewMemoryIndex()
	enc.On("Encode", mock.Anything, []string{"dimension probe"}).Return([][]float32{{1, 2}}, nil).Once()
	enc.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{1, 2}, {}, {3, 4}}, nil).Once()

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(3)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	assert.ErrorIs(t, err, domain.ErrEmptyEmbedding)
	desc, derr := idx.Describe(context.Background(), testIndex)
	require.NoError(t, derr)
	assert.Equal(t, int64(0), desc.VectorCount)
}

func TestIngest_EmptyProbeAborts(t *testing.T) {
	enc := new(mockEncoder)
	idx := new(mockVectorIndex)
	enc.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{}}, nil)

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(1)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	assert.ErrorIs(t, err, domain.ErrEmptyEmbedding)
	idx.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngest_UpsertErrorAborts(t *testing.T) {
	enc := &bagOfWordsEncoder{dim: 8}
	idx := new(mockVectorIndex)
	idx.On("Describe", mock.Anything, testIndex).Return(&domain.IndexDescription{Dimension: 8, Ready: true}, nil)
	idx.On("Upsert", mock.Anything, testIndex, mock.Anything).Return(errors.New("quota exceeded")).Once()

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(4)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{BatchSize: 2}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamRetrieval)
	assert.True(t, strings.Contains(err.Error(), "batch 1"))
	idx.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestIngest_DryRunSkipsEmbedding(t *testing.T) {
	enc := new(mockEncoder)
	idx := new(mockVectorIndex)

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(4)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{}, discardLogger())
	report, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex, DryRun: true})

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, 0, report.Batches)
	enc.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything)
	idx.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything)
}

func TestIngest_RecreateDropsFirst(t *testing.T) {
	ctx := context.Background()
	enc := &bagOfWordsEncoder{dim: 32}
	idx := vectorindex.NewMemoryIndex()
	require.NoError(t, idx.Create(ctx, domain.IndexSpec{Name: testIndex, Dimension: 768, Metric: domain.MetricCosine}))

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(3)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{}, discardLogger())
	report, err := uc.Execute(ctx, usecase.IngestInput{IndexName: testIndex, Recreate: true})

	require.NoError(t, err)
	assert.Equal(t, 32, report.Dimension)
	desc, err := idx.Describe(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 32, desc.Dimension)
	assert.Equal(t, int64(3), desc.VectorCount)
}

func TestIngest_EmptyDocument(t *testing.T) {
	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: &domain.Document{Source: "blank.pdf"}}, newSplitter(t),
		new(mockEncoder), new(mockVectorIndex), nil, usecase.IngestConfig{}, discardLogger())

	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	assert.Error(t, err)
}

func TestIngest_GivesUpWhenIndexNeverBecomesReady(t *testing.T) {
	enc := &bagOfWordsEncoder{dim: 4}
	idx := new(mockVectorIndex)
	idx.On("Describe", mock.Anything, testIndex).Return(nil, domain.ErrIndexNotFound).Once()
	idx.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	idx.On("Describe", mock.Anything, testIndex).Return(&domain.IndexDescription{State: "Initializing"}, nil)

	uc := usecase.NewIngestDocumentUsecase(&stubLoader{doc: policyDocument(2)}, newSplitter(t), enc, idx, nil,
		usecase.IngestConfig{ReadyPollInterval: 5 * time.Millisecond, ReadyTimeout: 40 * time.Millisecond}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.IngestInput{IndexName: testIndex})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	idx.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}
