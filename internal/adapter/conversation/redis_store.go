package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scholarship-rag/internal/domain"
)

const keyPrefix = "scholarship:session:"

// RedisStore keeps each session as a Redis list of JSON-encoded turns.
// It lets several server replicas share conversation memory.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a store. A positive ttl is refreshed on every write.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Get returns the stored turns. Redis has no empty lists, so an absent key is an empty session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	turns, err := s.rangeTurns(ctx, sessionID, 0, -1)
	if err != nil {
		return nil, err
	}
	return &domain.Session{ID: sessionID, Turns: turns}, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turn domain.ConversationTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}

	key := sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn to session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, sessionID string, n int) ([]domain.ConversationTurn, error) {
	if n <= 0 {
		return []domain.ConversationTurn{}, nil
	}
	return s.rangeTurns(ctx, sessionID, int64(-n), -1)
}

func (s *RedisStore) Trim(ctx context.Context, sessionID string, max int) error {
	if max <= 0 {
		return s.Clear(ctx, sessionID)
	}
	if err := s.client.LTrim(ctx, sessionKey(sessionID), int64(-max), -1).Err(); err != nil {
		return fmt.Errorf("failed to trim session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) rangeTurns(ctx context.Context, sessionID string, start, stop int64) ([]domain.ConversationTurn, error) {
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	turns := make([]domain.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn domain.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("failed to decode turn in session %s: %w", sessionID, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

var _ domain.ConversationStore = (*RedisStore)(nil)
