package domain

import "context"

// DefaultSessionID is used when a caller does not supply a session id.
// Callers that share it share history.
const DefaultSessionID = "default"

// ConversationTurn is one message of a conversation.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the ordered turn list of one conversation.
type Session struct {
	ID    string
	Turns []ConversationTurn
}

// ConversationStore keeps bounded per-session conversation memory.
// Implementations must be safe for concurrent use; they do not serialize
// multi-step sequences on one session, callers do that.
type ConversationStore interface {
	// Get returns the session, creating an empty one if absent.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Append adds a turn to the end of the session.
	Append(ctx context.Context, sessionID string, turn ConversationTurn) error

	// Recent returns the last n turns, oldest first.
	Recent(ctx context.Context, sessionID string, n int) ([]ConversationTurn, error)

	// Trim drops turns from the front until at most max remain.
	Trim(ctx context.Context, sessionID string, max int) error

	// Clear removes the session. Clearing a missing session is not an error.
	Clear(ctx context.Context, sessionID string) error
}
