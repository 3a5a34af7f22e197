package domain

import "context"

// Chat roles understood by the language model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to the language model.
type Message struct {
	Role    string
	Content string
}

// ChatClient sends a message sequence to a language model and returns its reply text.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the LLM output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}
