package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"scholarship-rag/internal/domain"
)

// Ingestion defaults.
const (
	DefaultIngestBatchSize     = 50
	DefaultIngestBatchInterval = 500 * time.Millisecond
	DefaultReadyPollInterval   = 2 * time.Second
	DefaultReadyTimeout        = 5 * time.Minute

	dimensionProbeText = "dimension probe"
)

// IngestInput selects the document and target index.
type IngestInput struct {
	Path      string
	IndexName string
	// DryRun loads and splits only.
	DryRun bool
	// Recreate drops the index before ingesting.
	Recreate bool
}

// IngestReport summarizes a run.
type IngestReport struct {
	Source    string
	Index     string
	Sections  int
	Chunks    int
	Batches   int
	Dimension int
	DryRun    bool
	Elapsed   time.Duration
}

// IngestConfig tunes the ingestion run. Zero values fall back to the defaults.
// ReadyTimeout bounds the wait for a freshly created index to become queryable.
type IngestConfig struct {
	BatchSize         int
	BatchInterval     time.Duration
	ReadyPollInterval time.Duration
	ReadyTimeout      time.Duration
	EmbeddingModel    string
}

// IngestDocumentUsecase chunks a document, embeds the chunks and fills the vector index.
// A failed run is not resumable; rerun it with Recreate.
type IngestDocumentUsecase interface {
	Execute(ctx context.Context, input IngestInput) (*IngestReport, error)
}

type ingestDocumentUsecase struct {
	loader   domain.DocumentLoader
	splitter domain.Splitter
	encoder  domain.VectorEncoder
	index    domain.VectorIndex
	observer PipelineObserver
	cfg      IngestConfig
	logger   *slog.Logger
}

type pendingChunk struct {
	text string
	page *int
}

func NewIngestDocumentUsecase(
	loader domain.DocumentLoader,
	splitter domain.Splitter,
	encoder domain.VectorEncoder,
	index domain.VectorIndex,
	observer PipelineObserver,
	cfg IngestConfig,
	logger *slog.Logger,
) IngestDocumentUsecase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIngestBatchSize
	}
	if cfg.BatchInterval < 0 {
		cfg.BatchInterval = 0
	}
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = DefaultReadyPollInterval
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &ingestDocumentUsecase{
		loader:   loader,
		splitter: splitter,
		encoder:  encoder,
		index:    index,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
	}
}

func (u *ingestDocumentUsecase) Execute(ctx context.Context, input IngestInput) (*IngestReport, error) {
	start := time.Now()

	doc, err := u.loader.Load(ctx, input.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", input.Path, err)
	}

	var pending []pendingChunk
	for _, section := range doc.Sections {
		for _, text := range u.splitter.Split(section.Text) {
			pending = append(pending, pendingChunk{text: text, page: section.Page})
		}
	}
	report := &IngestReport{
		Source:   doc.Source,
		Index:    input.IndexName,
		Sections: len(doc.Sections),
		Chunks:   len(pending),
		DryRun:   input.DryRun,
	}
	u.logger.InfoContext(ctx, "ingest_document_split",
		slog.String("source", doc.Source),
		slog.Int("sections", report.Sections),
		slog.Int("chunks", report.Chunks),
		slog.String("splitter", string(u.splitter.Version())))

	if len(pending) == 0 {
		return nil, fmt.Errorf("document %s produced no text chunks", input.Path)
	}
	if input.DryRun {
		report.Elapsed = time.Since(start)
		return report, nil
	}

	dimension, err := u.probeDimension(ctx)
	if err != nil {
		return nil, err
	}
	report.Dimension = dimension

	if err := u.ensureIndex(ctx, input, dimension); err != nil {
		return nil, err
	}

	interval := rate.Inf
	if u.cfg.BatchInterval > 0 {
		interval = rate.Every(u.cfg.BatchInterval)
	}
	limiter := rate.NewLimiter(interval, 1)

	for offset := 0; offset < len(pending); offset += u.cfg.BatchSize {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for batch slot: %w", err)
		}
		end := min(offset+u.cfg.BatchSize, len(pending))
		if err := u.ingestBatch(ctx, input.IndexName, doc.Source, pending[offset:end], offset, dimension); err != nil {
			return nil, fmt.Errorf("batch %d (chunks %d-%d): %w", report.Batches+1, offset, end-1, err)
		}
		report.Batches++
		u.observer.ObserveIngestedChunks(end - offset)
		u.logger.InfoContext(ctx, "ingest_batch_upserted",
			slog.Int("batch", report.Batches),
			slog.Int("upserted", end),
			slog.Int("total", len(pending)))
	}

	report.Elapsed = time.Since(start)
	u.logger.InfoContext(ctx, "ingest_completed",
		slog.String("source", report.Source),
		slog.String("index", report.Index),
		slog.Int("chunks", report.Chunks),
		slog.Int("batches", report.Batches),
		slog.Int("dimension", report.Dimension),
		slog.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (u *ingestDocumentUsecase) probeDimension(ctx context.Context) (int, error) {
	vectors, err := u.encoder.Encode(ctx, []string{dimensionProbeText})
	if err != nil {
		return 0, fmt.Errorf("%w: probe dimension: %w", domain.ErrUpstreamEmbedding, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("probe dimension: %w", domain.ErrEmptyEmbedding)
	}
	return len(vectors[0]), nil
}

func (u *ingestDocumentUsecase) ensureIndex(ctx context.Context, input IngestInput, dimension int) error {
	if input.Recreate {
		if err := u.index.Drop(ctx, input.IndexName); err != nil {
			return fmt.Errorf("drop index %s: %w", input.IndexName, err)
		}
		u.logger.InfoContext(ctx, "ingest_index_dropped", slog.String("index", input.IndexName))
	}

	desc, err := u.index.Describe(ctx, input.IndexName)
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		spec := domain.IndexSpec{
			Name:           input.IndexName,
			Dimension:      dimension,
			Metric:         domain.MetricCosine,
			EmbeddingModel: u.cfg.EmbeddingModel,
		}
		if err := u.index.Create(ctx, spec); err != nil {
			return fmt.Errorf("create index %s: %w", input.IndexName, err)
		}
		u.logger.InfoContext(ctx, "ingest_index_created",
			slog.String("index", input.IndexName),
			slog.Int("dimension", dimension),
			slog.String("metric", domain.MetricCosine))
		return u.waitReady(ctx, input.IndexName)
	case err != nil:
		return fmt.Errorf("describe index %s: %w", input.IndexName, err)
	}

	if desc.Dimension != dimension {
		return fmt.Errorf("%w: index %s has dimension %d, embedding model produces %d",
			domain.ErrDimensionMismatch, input.IndexName, desc.Dimension, dimension)
	}
	if desc.EmbeddingModel != "" && u.cfg.EmbeddingModel != "" && desc.EmbeddingModel != u.cfg.EmbeddingModel {
		return fmt.Errorf("%w: index %s was built with %q, configured model is %q",
			domain.ErrModelMismatch, input.IndexName, desc.EmbeddingModel, u.cfg.EmbeddingModel)
	}
	if !desc.Ready {
		return u.waitReady(ctx, input.IndexName)
	}
	return nil
}

func (u *ingestDocumentUsecase) waitReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(u.cfg.ReadyPollInterval)
	defer ticker.Stop()

	for {
		desc, err := u.index.Describe(ctx, name)
		if err != nil {
			return fmt.Errorf("describe index %s: %w", name, err)
		}
		if desc.Ready {
			return nil
		}
		u.logger.InfoContext(ctx, "ingest_index_waiting", slog.String("index", name), slog.String("state", desc.State))

		select {
		case <-ctx.Done():
			return fmt.Errorf("index %s not ready: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (u *ingestDocumentUsecase) ingestBatch(ctx context.Context, indexName, source string, batch []pendingChunk, offset, dimension int) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.text
	}

	vectors, err := u.encoder.Encode(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmptyEmbedding, len(vectors), len(texts))
	}

	chunks := make([]domain.PassageChunk, len(batch))
	for i, c := range batch {
		switch len(vectors[i]) {
		case 0:
			return fmt.Errorf("%w: chunk %d", domain.ErrEmptyEmbedding, offset+i)
		case dimension:
		default:
			return fmt.Errorf("%w: chunk %d has %d values, expected %d",
				domain.ErrDimensionMismatch, offset+i, len(vectors[i]), dimension)
		}
		chunks[i] = domain.PassageChunk{
			ID:         domain.ChunkID(offset + i),
			Vector:     vectors[i],
			Text:       c.text,
			Source:     source,
			Page:       c.page,
			ChunkIndex: offset + i,
		}
	}

	if err := u.index.Upsert(ctx, indexName, chunks); err != nil {
		return fmt.Errorf("%w: upsert: %w", domain.ErrUpstreamRetrieval, err)
	}
	return nil
}
