package usecase_test

import (
	"context"
	"hash/fnv"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scholarship-rag/internal/adapter/vectorindex"
	"scholarship-rag/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockEncoder) Version() string {
	return "mock-embed"
}

type mockChatClient struct {
	mock.Mock
}

func (m *mockChatClient) Chat(ctx context.Context, messages []domain.Message) (*domain.LLMResponse, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockChatClient) Version() string {
	return "mock-chat"
}

type mockVectorIndex struct {
	mock.Mock
}

func (m *mockVectorIndex) Describe(ctx context.Context, name string) (*domain.IndexDescription, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexDescription), args.Error(1)
}

func (m *mockVectorIndex) Create(ctx context.Context, spec domain.IndexSpec) error {
	return m.Called(ctx, spec).Error(0)
}

func (m *mockVectorIndex) Drop(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockVectorIndex) Upsert(ctx context.Context, name string, chunks []domain.PassageChunk) error {
	return m.Called(ctx, name, chunks).Error(0)
}

func (m *mockVectorIndex) Query(ctx context.Context, name string, vector []float32, topK int) (*domain.RetrievalResult, error) {
	args := m.Called(ctx, name, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrievalResult), args.Error(1)
}

type mockRewriter struct {
	mock.Mock
}

func (m *mockRewriter) Rewrite(ctx context.Context, question string, history []domain.ConversationTurn) (string, error) {
	args := m.Called(ctx, question, history)
	return args.String(0), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, contextText string, recent []domain.ConversationTurn, question string) (string, error) {
	args := m.Called(ctx, contextText, recent, question)
	return args.String(0), args.Error(1)
}

// bagOfWordsEncoder hashes lower-cased words into a fixed number of buckets.
type bagOfWordsEncoder struct {
	dim   int
	mu    sync.Mutex
	calls int
}

func (e *bagOfWordsEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dim)
		for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
		}) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%uint32(e.dim)]++
		}
		out[i] = vec
	}
	return out, nil
}

func (e *bagOfWordsEncoder) Version() string {
	return "bag-of-words"
}

func (e *bagOfWordsEncoder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// scriptedChat answers with a function of the messages it receives.
type scriptedChat struct {
	mu       sync.Mutex
	respond  func(messages []domain.Message) string
	received [][]domain.Message
}

func (s *scriptedChat) Chat(_ context.Context, messages []domain.Message) (*domain.LLMResponse, error) {
	s.mu.Lock()
	s.received = append(s.received, messages)
	s.mu.Unlock()
	return &domain.LLMResponse{Text: s.respond(messages), Done: true}, nil
}

func (s *scriptedChat) Version() string {
	return "scripted"
}

func lastUserMessage(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func isAnswerRequest(messages []domain.Message) bool {
	return strings.HasPrefix(lastUserMessage(messages), "CONTEXT:\n")
}

// seedIndex creates a cosine index and stores one chunk per text, ids in order.
func seedIndex(t *testing.T, enc domain.VectorEncoder, name string, texts []string) *vectorindex.MemoryIndex {
	t.Helper()
	ctx := context.Background()

	vectors, err := enc.Encode(ctx, texts)
	require.NoError(t, err)

	idx := vectorindex.NewMemoryIndex()
	require.NoError(t, idx.Create(ctx, domain.IndexSpec{
		Name: name, Dimension: len(vectors[0]), Metric: domain.MetricCosine, EmbeddingModel: enc.Version(),
	}))

	chunks := make([]domain.PassageChunk, len(texts))
	for i, text := range texts {
		page := i + 1
		chunks[i] = domain.PassageChunk{
			ID: domain.ChunkID(i), Vector: vectors[i], Text: text, Source: "policy.pdf", Page: &page, ChunkIndex: i,
		}
	}
	require.NoError(t, idx.Upsert(ctx, name, chunks))
	return idx
}
