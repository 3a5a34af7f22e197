package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"scholarship-rag/internal/domain"
)

// Defaults for ChatConfig.
const (
	DefaultTopK        = 10
	DefaultMaxTurns    = 20
	DefaultSourceCount = 3
)

var tracer = otel.Tracer("scholarship-rag/usecase")

// ChatInput is one question from a student.
type ChatInput struct {
	Question  string
	SessionID string
}

// Source is a citation returned alongside an answer.
type Source struct {
	Source string
	Page   *int
	Score  float32
}

// ChatOutput is the answer along with the query that was actually searched.
type ChatOutput struct {
	Answer  string
	Query   string
	Sources []Source
}

// ChatConfig tunes the chat pipeline. Zero values fall back to the defaults.
type ChatConfig struct {
	IndexName     string
	TopK          int
	HistoryWindow int
	MaxTurns      int
	SourceCount   int
	// Timeout bounds one request including time spent waiting on the session lock.
	Timeout time.Duration
}

func (c ChatConfig) withDefaults() ChatConfig {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.SourceCount <= 0 {
		c.SourceCount = DefaultSourceCount
	}
	return c
}

// ChatUsecase answers questions against the scholarship index and manages session memory.
type ChatUsecase interface {
	Chat(ctx context.Context, input ChatInput) (*ChatOutput, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type chatUsecase struct {
	rewriter  QueryRewriter
	encoder   domain.VectorEncoder
	index     domain.VectorIndex
	store     domain.ConversationStore
	generator AnswerGenerator
	locker    *SessionLocker
	observer  PipelineObserver
	cfg       ChatConfig
	logger    *slog.Logger
}

// NewChatUsecase wires the chat pipeline. A nil observer disables metrics.
func NewChatUsecase(
	rewriter QueryRewriter,
	encoder domain.VectorEncoder,
	index domain.VectorIndex,
	store domain.ConversationStore,
	generator AnswerGenerator,
	locker *SessionLocker,
	observer PipelineObserver,
	cfg ChatConfig,
	logger *slog.Logger,
) ChatUsecase {
	if observer == nil {
		observer = NopObserver{}
	}
	if locker == nil {
		locker = NewSessionLocker()
	}
	return &chatUsecase{
		rewriter:  rewriter,
		encoder:   encoder,
		index:     index,
		store:     store,
		generator: generator,
		locker:    locker,
		observer:  observer,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

func (u *chatUsecase) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		u.observer.ObserveChat(ChatStatusInvalid)
		return nil, fmt.Errorf("%w: question is required", domain.ErrValidation)
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}

	if u.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "chat")
	span.SetAttributes(attribute.String("scholarship.session.id", sessionID))
	defer span.End()

	start := time.Now()
	out, stage, err := u.run(ctx, sessionID, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		u.observer.ObserveChat(ChatStatusError)
		u.logger.ErrorContext(ctx, "chat_failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	u.observer.ObserveChat(ChatStatusOK)
	u.logger.InfoContext(ctx, "chat_completed",
		slog.String("query", out.Query),
		slog.Int("sources", len(out.Sources)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

// run executes the pipeline under the session lock and reports the stage that failed.
func (u *chatUsecase) run(ctx context.Context, sessionID, question string) (*ChatOutput, string, error) {
	unlock, err := u.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, "session_lock", fmt.Errorf("wait for session %s: %w", sessionID, err)
	}
	defer unlock()

	var query string
	err = u.stage(ctx, StageRewrite, func(ctx context.Context) error {
		history, err := u.store.Recent(ctx, sessionID, u.cfg.HistoryWindow)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		query, err = u.rewriter.Rewrite(ctx, question, history)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamGeneration, err)
		}
		return nil
	})
	if err != nil {
		return nil, StageRewrite, err
	}

	var vector []float32
	err = u.stage(ctx, StageEmbed, func(ctx context.Context) error {
		vectors, err := u.encoder.Encode(ctx, []string{query})
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamEmbedding, err)
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamEmbedding, domain.ErrEmptyEmbedding)
		}
		vector = vectors[0]
		return nil
	})
	if err != nil {
		return nil, StageEmbed, err
	}

	var retrieved *domain.RetrievalResult
	err = u.stage(ctx, StageRetrieve, func(ctx context.Context) error {
		retrieved, err = u.index.Query(ctx, u.cfg.IndexName, vector, u.cfg.TopK)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamRetrieval, err)
		}
		return nil
	})
	if err != nil {
		return nil, StageRetrieve, err
	}

	_, assembleSpan := tracer.Start(ctx, "chat."+StageAssemble)
	assembleStart := time.Now()
	contextText := AssembleContext(retrieved)
	u.observer.ObserveStage(StageAssemble, time.Since(assembleStart), nil)
	assembleSpan.End()

	// The user turn stays recorded even if generation fails below.
	var recent []domain.ConversationTurn
	err = u.stage(ctx, StageHistory, func(ctx context.Context) error {
		if _, err := u.store.Get(ctx, sessionID); err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if err := u.store.Append(ctx, sessionID, domain.ConversationTurn{Role: domain.RoleUser, Content: query}); err != nil {
			return fmt.Errorf("append user turn: %w", err)
		}
		recent, err = u.store.Recent(ctx, sessionID, u.cfg.HistoryWindow)
		if err != nil {
			return fmt.Errorf("read recent turns: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, StageHistory, err
	}

	var answer string
	err = u.stage(ctx, StageGenerate, func(ctx context.Context) error {
		answer, err = u.generator.Generate(ctx, contextText, recent, query)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamGeneration, err)
		}
		return nil
	})
	if err != nil {
		return nil, StageGenerate, err
	}

	err = u.stage(ctx, StagePersist, func(ctx context.Context) error {
		if err := u.store.Append(ctx, sessionID, domain.ConversationTurn{Role: domain.RoleAssistant, Content: answer}); err != nil {
			return fmt.Errorf("append assistant turn: %w", err)
		}
		if err := u.store.Trim(ctx, sessionID, u.cfg.MaxTurns); err != nil {
			return fmt.Errorf("trim session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, StagePersist, err
	}

	return &ChatOutput{
		Answer:  answer,
		Query:   query,
		Sources: topSources(retrieved, u.cfg.SourceCount),
	}, "", nil
}

func (u *chatUsecase) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "chat."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	u.observer.ObserveStage(name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ClearSession waits for any in-flight chat on the same session before clearing it.
func (u *chatUsecase) ClearSession(ctx context.Context, sessionID string) error {
	unlock, err := u.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("wait for session %s: %w", sessionID, err)
	}
	defer unlock()

	if err := u.store.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	u.logger.InfoContext(ctx, "session_cleared")
	return nil
}

func topSources(result *domain.RetrievalResult, n int) []Source {
	sources := make([]Source, 0, n)
	if result == nil {
		return sources
	}
	for i, chunk := range result.Chunks {
		if i >= n {
			break
		}
		var score float32
		if i < len(result.Scores) {
			score = result.Scores[i]
		}
		sources = append(sources, Source{Source: chunk.Source, Page: chunk.Page, Score: score})
	}
	return sources
}

// IsValidationError reports whether err should be surfaced to the caller as a bad request.
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
