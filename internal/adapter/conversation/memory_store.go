// Package conversation provides ConversationStore implementations.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"scholarship-rag/internal/domain"
)

// MemoryStore keeps sessions in process memory.
// A size of 0 means no session limit and a ttl of 0 means sessions never expire,
// so with the defaults a session lives until it is cleared or the process exits.
type MemoryStore struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, []domain.ConversationTurn]
}

// NewMemoryStore creates a store holding at most size sessions, each evicted ttl after its last write.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: expirable.NewLRU[string, []domain.ConversationTurn](size, nil, ttl),
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.sessions.Get(sessionID)
	if !ok {
		turns = []domain.ConversationTurn{}
		s.sessions.Add(sessionID, turns)
	}
	return &domain.Session{ID: sessionID, Turns: cloneTurns(turns)}, nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, turn domain.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, _ := s.sessions.Get(sessionID)
	next := make([]domain.ConversationTurn, len(turns), len(turns)+1)
	copy(next, turns)
	s.sessions.Add(sessionID, append(next, turn))
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, sessionID string, n int) ([]domain.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, _ := s.sessions.Peek(sessionID)
	return cloneTurns(lastN(turns, n)), nil
}

func (s *MemoryStore) Trim(ctx context.Context, sessionID string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.sessions.Get(sessionID)
	if !ok || len(turns) <= max {
		return nil
	}
	s.sessions.Add(sessionID, cloneTurns(lastN(turns, max)))
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Remove(sessionID)
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	return s.sessions.Len()
}

func lastN(turns []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

func cloneTurns(turns []domain.ConversationTurn) []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

var _ domain.ConversationStore = (*MemoryStore)(nil)
