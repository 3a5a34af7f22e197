// Package vectorindex provides VectorIndex implementations.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"scholarship-rag/internal/domain"
)

const (
	catalogTable = "rag_vector_indexes"
	tablePrefix  = "rag_vectors_"

	pgUndefinedTable = "42P01"
)

// indexNamePattern keeps "rag_vectors_<name>_embedding_idx" within the 63-byte identifier limit.
var indexNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,36}$`)

// pgxPool is the subset of *pgxpool.Pool the index needs.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PgvectorIndex stores each named index as its own PostgreSQL table with a
// vector column and an HNSW cosine index. Index metadata lives in a catalog table.
type PgvectorIndex struct {
	pool pgxPool
}

// NewPgvectorIndex creates an index client over a pool with pgvector types registered.
func NewPgvectorIndex(pool pgxPool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

// NormalizeIndexName maps a user-facing index name to the identifier form used in table names.
func NormalizeIndexName(name string) (string, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	if !indexNamePattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid index name %q", name)
	}
	return normalized, nil
}

func tableIdent(name string) (string, error) {
	normalized, err := NormalizeIndexName(name)
	if err != nil {
		return "", err
	}
	return pgx.Identifier{tablePrefix + normalized}.Sanitize(), nil
}

func (p *PgvectorIndex) Describe(ctx context.Context, name string) (*domain.IndexDescription, error) {
	normalized, err := NormalizeIndexName(name)
	if err != nil {
		return nil, err
	}

	desc := &domain.IndexDescription{Name: normalized}
	err = p.pool.QueryRow(ctx,
		`SELECT dimension, metric, embedding_model FROM `+catalogTable+` WHERE name = $1`,
		normalized,
	).Scan(&desc.Dimension, &desc.Metric, &desc.EmbeddingModel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, normalized)
		}
		return nil, fmt.Errorf("failed to describe index: %w", err)
	}

	// Looked up by table so a truncated index name cannot hide the index.
	var valid bool
	err = p.pool.QueryRow(ctx, `
		SELECT coalesce(bool_and(i.indisvalid), false)
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indexrelid
		JOIN pg_am a ON a.oid = c.relam
		WHERE i.indrelid = $1::regclass AND a.amname = 'hnsw'`,
		tablePrefix+normalized,
	).Scan(&valid)
	if err != nil && !isUndefinedTable(err) {
		return nil, fmt.Errorf("failed to read index state: %w", err)
	}
	desc.Ready = valid
	desc.State = "Initializing"
	if valid {
		desc.State = "Ready"
	}

	table := pgx.Identifier{tablePrefix + normalized}.Sanitize()
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&desc.VectorCount); err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}

	return desc, nil
}

func (p *PgvectorIndex) Create(ctx context.Context, spec domain.IndexSpec) error {
	normalized, err := NormalizeIndexName(spec.Name)
	if err != nil {
		return err
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	if spec.Metric != domain.MetricCosine {
		return fmt.Errorf("unsupported metric %q", spec.Metric)
	}
	table := pgx.Identifier{tablePrefix + normalized}.Sanitize()
	indexName := pgx.Identifier{tablePrefix + normalized + "_embedding_idx"}.Sanitize()

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		statements := []string{
			`CREATE EXTENSION IF NOT EXISTS vector`,
			`CREATE TABLE IF NOT EXISTS ` + catalogTable + ` (
				name TEXT PRIMARY KEY,
				dimension INT NOT NULL,
				metric TEXT NOT NULL,
				embedding_model TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to prepare catalog: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO `+catalogTable+` (name, dimension, metric, embedding_model) VALUES ($1, $2, $3, $4)`,
			normalized, spec.Dimension, spec.Metric, spec.EmbeddingModel,
		); err != nil {
			return fmt.Errorf("failed to register index %s: %w", normalized, err)
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			page INT,
			chunk_index INT NOT NULL
		)`, table, spec.Dimension)); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops)`, indexName, table,
		)); err != nil {
			return fmt.Errorf("failed to create hnsw index: %w", err)
		}
		return nil
	})
}

func (p *PgvectorIndex) Drop(ctx context.Context, name string) error {
	normalized, err := NormalizeIndexName(name)
	if err != nil {
		return err
	}
	table := pgx.Identifier{tablePrefix + normalized}.Sanitize()

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return fmt.Errorf("failed to drop vector table: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM `+catalogTable+` WHERE name = $1`, normalized); err != nil && !isUndefinedTable(err) {
			return fmt.Errorf("failed to unregister index: %w", err)
		}
		return nil
	})
}

// Upsert writes the whole batch in one statement, so a batch is all-or-nothing.
func (p *PgvectorIndex) Upsert(ctx context.Context, name string, chunks []domain.PassageChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	table, err := tableIdent(name)
	if err != nil {
		return err
	}

	const columns = 6
	var sb strings.Builder
	sb.WriteString(`INSERT INTO ` + table + ` (id, embedding, text, source, page, chunk_index) VALUES `)
	args := make([]interface{}, 0, len(chunks)*columns)
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columns
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, c.ID, pgvector.NewVector(c.Vector), c.Text, c.Source, c.Page, c.ChunkIndex)
	}
	sb.WriteString(` ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, text = EXCLUDED.text,
		source = EXCLUDED.source, page = EXCLUDED.page, chunk_index = EXCLUDED.chunk_index`)

	if _, err := p.pool.Exec(ctx, sb.String(), args...); err != nil {
		if isUndefinedTable(err) {
			return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
		}
		return fmt.Errorf("failed to upsert %d vectors: %w", len(chunks), err)
	}
	return nil
}

func (p *PgvectorIndex) Query(ctx context.Context, name string, vector []float32, topK int) (*domain.RetrievalResult, error) {
	table, err := tableIdent(name)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, text, source, page, chunk_index, 1 - (embedding <=> $1) AS score
		FROM `+table+`
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(vector), topK,
	)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
		}
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	result := &domain.RetrievalResult{}
	for rows.Next() {
		var (
			c     domain.PassageChunk
			score float64
		)
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.Page, &c.ChunkIndex, &score); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		result.Chunks = append(result.Chunks, c)
		result.Scores = append(result.Scores, float32(score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

var _ domain.VectorIndex = (*PgvectorIndex)(nil)
