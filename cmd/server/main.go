package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"scholarship-rag/internal/adapter/chat_http"
	"scholarship-rag/internal/di"
	"scholarship-rag/internal/infra/config"
	"scholarship-rag/internal/infra/logger"
	infraotel "scholarship-rag/internal/infra/otel"
	"scholarship-rag/internal/usecase"
)

var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := logger.NewWithOTel(cfg.OTel.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server_exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	shutdownOTel, err := infraotel.InitProvider(ctx, infraotel.Config{
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn("otel_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	if cfg.Ingest.OnStartPath != "" {
		report, err := components.IngestUsecase.Execute(ctx, usecase.IngestInput{
			Path:      cfg.Ingest.OnStartPath,
			IndexName: cfg.Vector.IndexName,
		})
		if err != nil {
			return fmt.Errorf("ingest %s on start: %w", cfg.Ingest.OnStartPath, err)
		}
		log.Info("startup_ingest_completed", slog.Int("chunks", report.Chunks), slog.Int("dimension", report.Dimension))
	}

	if err := usecase.CheckEmbeddingModel(ctx, components.VectorIndex, cfg.Vector.IndexName, cfg.Ollama.EmbeddingModel, log); err != nil {
		return err
	}

	doc, err := chat_http.LoadOpenAPI(ctx)
	if err != nil {
		return err
	}
	e := newEcho(components, doc, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h2c.NewHandler(e, &http2.Server{}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server_starting", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
