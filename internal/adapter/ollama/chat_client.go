package ollama

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scholarship-rag/internal/domain"
)

const (
	generationTemperature = 0.0
	keepAlive             = "10m"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// ChatClient sends message sequences to /api/chat without streaming.
type ChatClient struct {
	endpoint
	model string
}

// NewChatClient constructs a chat client using the provided endpoint and model name.
func NewChatClient(baseURL, model string, timeoutSeconds int, client *http.Client, logger *slog.Logger) *ChatClient {
	return &ChatClient{
		endpoint: newEndpoint(baseURL, client, 120*time.Second, timeoutSeconds, logger),
		model:    model,
	}
}

// Chat returns the trimmed assistant message.
func (c *ChatClient) Chat(ctx context.Context, messages []domain.Message) (*domain.LLMResponse, error) {
	start := time.Now()

	req := chatRequest{
		Model:     c.model,
		Messages:  make([]chatMessage, 0, len(messages)),
		KeepAlive: keepAlive,
		Options:   map[string]any{"temperature": generationTemperature},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "ollama_chat", "/api/chat", req, &resp); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "ollama_chat_completed",
		slog.String("model", c.model),
		slog.Int("message_count", len(messages)),
		slog.Int("response_length", len(resp.Message.Content)),
		slog.Duration("elapsed", time.Since(start)))

	return &domain.LLMResponse{
		Text: strings.TrimSpace(resp.Message.Content),
		Done: resp.Done,
	}, nil
}

// Version returns the wrapped model name.
func (c *ChatClient) Version() string {
	return c.model
}

var _ domain.ChatClient = (*ChatClient)(nil)
