package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scholarship-rag/internal/di"
	"scholarship-rag/internal/infra/config"
	"scholarship-rag/internal/usecase"
)

var (
	version = "dev"

	// Global flags
	verbose   bool
	indexName string

	// Run command flags
	filePath  string
	batchSize int
	dryRun    bool
	recreate  bool

	// Drop command flags
	confirm bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ingest",
	Short:   "Load scholarship policy documents into the vector index",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Chunk, embed and upsert a document",
	Long: `Split a PDF, text or markdown document into overlapping chunks, embed them
in batches and upsert them into the vector index. The index is created with the
embedding model's dimension on first use. A failed run is not resumable; rerun
with --recreate.

Examples:
  # Ingest the policy handbook into the default index
  ingest run --file ./data/scholarship-policy.pdf

  # Start over with a fresh index
  ingest run --file ./data/scholarship-policy.pdf --recreate

  # Only report how the document would be chunked
  ingest run --file ./data/scholarship-policy.pdf --dry-run`,
	RunE: runIngest,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the state of the vector index",
	RunE:  describeIndex,
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the vector index",
	RunE:  dropIndex,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&indexName, "index", "", "vector index name (defaults to VECTOR_INDEX_NAME)")

	runCmd.Flags().StringVarP(&filePath, "file", "f", "", "document to ingest (.pdf, .txt, .md)")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 0, "chunks per embedding call (defaults to INGEST_BATCH_SIZE)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "load and split only, without embedding or writing")
	runCmd.Flags().BoolVar(&recreate, "recreate", false, "drop the index before ingesting")
	_ = runCmd.MarkFlagRequired("file")

	dropCmd.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(dropCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadComponents reads the environment and applies the command-line overrides.
func loadComponents(ctx context.Context, logger *slog.Logger) (*config.Config, *di.ApplicationComponents, error) {
	cfg := config.Load()
	if indexName != "" {
		cfg.Vector.IndexName = indexName
	}
	if batchSize > 0 {
		cfg.Ingest.BatchSize = batchSize
	}
	if dryRun {
		cfg.Vector.Backend = "memory"
	}
	cfg.Conversation.Backend = "memory"
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	components, err := di.NewApplicationComponents(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, components, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, components, err := loadComponents(ctx, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	logger.Info("ingest_starting",
		slog.String("file", filePath),
		slog.String("index", cfg.Vector.IndexName),
		slog.String("embedding_model", cfg.Ollama.EmbeddingModel),
		slog.Int("batch_size", cfg.Ingest.BatchSize),
		slog.Bool("dry_run", dryRun),
		slog.Bool("recreate", recreate))

	report, err := components.IngestUsecase.Execute(ctx, usecase.IngestInput{
		Path:      filePath,
		IndexName: cfg.Vector.IndexName,
		DryRun:    dryRun,
		Recreate:  recreate,
	})
	if err != nil {
		logger.Error("ingest_failed", slog.String("error", err.Error()))
		return err
	}
	return printJSON(cmd, report)
}

func describeIndex(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, components, err := loadComponents(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer components.Close()

	desc, err := components.VectorIndex.Describe(cmd.Context(), cfg.Vector.IndexName)
	if err != nil {
		return err
	}
	return printJSON(cmd, desc)
}

func dropIndex(cmd *cobra.Command, args []string) error {
	if !confirm {
		return fmt.Errorf("refusing to drop the index without --yes")
	}
	logger := newLogger()
	cfg, components, err := loadComponents(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer components.Close()

	if err := components.VectorIndex.Drop(cmd.Context(), cfg.Vector.IndexName); err != nil {
		return err
	}
	logger.Info("index_dropped", slog.String("index", cfg.Vector.IndexName))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
