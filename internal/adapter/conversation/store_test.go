package conversation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarship-rag/internal/adapter/conversation"
	"scholarship-rag/internal/domain"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*conversation.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return conversation.NewRedisStore(client, ttl), mr
}

func stores(t *testing.T) map[string]domain.ConversationStore {
	redisStore, _ := newRedisStore(t, 0)
	return map[string]domain.ConversationStore{
		"memory": conversation.NewMemoryStore(0, 0),
		"redis":  redisStore,
	}
}

func turn(i int) domain.ConversationTurn {
	role := domain.RoleUser
	if i%2 == 1 {
		role = domain.RoleAssistant
	}
	return domain.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)}
}

func TestStore_GetCreatesEmptySession(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			session, err := store.Get(context.Background(), "fresh")
			require.NoError(t, err)
			assert.Equal(t, "fresh", session.ID)
			assert.Empty(t, session.Turns)
		})
	}
}

func TestStore_TrimKeepsNewestTwenty(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 25; i++ {
				require.NoError(t, store.Append(ctx, "s1", turn(i)))
			}
			require.NoError(t, store.Trim(ctx, "s1", 20))

			session, err := store.Get(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, session.Turns, 20)
			assert.Equal(t, "turn 5", session.Turns[0].Content)
			assert.Equal(t, "turn 24", session.Turns[19].Content)
		})
	}
}

func TestStore_RecentReturnsOldestFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 10; i++ {
				require.NoError(t, store.Append(ctx, "s1", turn(i)))
			}

			recent, err := store.Recent(ctx, "s1", 6)
			require.NoError(t, err)
			require.Len(t, recent, 6)
			assert.Equal(t, "turn 4", recent[0].Content)
			assert.Equal(t, domain.RoleUser, recent[0].Role)
			assert.Equal(t, "turn 9", recent[5].Content)
			assert.Equal(t, domain.RoleAssistant, recent[5].Role)

			short, err := store.Recent(ctx, "missing", 6)
			require.NoError(t, err)
			assert.Empty(t, short)
		})
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, "s1", turn(0)))
			require.NoError(t, store.Append(ctx, "s2", turn(0)))

			require.NoError(t, store.Clear(ctx, "s1"))
			require.NoError(t, store.Clear(ctx, "s1"))
			require.NoError(t, store.Clear(ctx, "never-existed"))

			cleared, err := store.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, cleared.Turns)

			other, err := store.Get(ctx, "s2")
			require.NoError(t, err)
			assert.Len(t, other.Turns, 1)
		})
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, "a", domain.ConversationTurn{Role: domain.RoleUser, Content: "from a"}))

			b, err := store.Get(ctx, "b")
			require.NoError(t, err)
			assert.Empty(t, b.Turns)
		})
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewMemoryStore(0, 0)
	require.NoError(t, store.Append(ctx, "s", turn(0)))

	session, err := store.Get(ctx, "s")
	require.NoError(t, err)
	session.Turns[0].Content = "mutated"

	again, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "turn 0", again.Turns[0].Content)
}

func TestMemoryStore_EvictsLeastRecentlyUsedSession(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewMemoryStore(2, 0)
	require.NoError(t, store.Append(ctx, "a", turn(0)))
	require.NoError(t, store.Append(ctx, "b", turn(0)))
	require.NoError(t, store.Append(ctx, "c", turn(0)))

	assert.Equal(t, 2, store.Len())
	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, a.Turns)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewMemoryStore(0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Append(ctx, "shared", turn(i))
		}(i)
	}
	wg.Wait()

	session, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, session.Turns, 50)
}

func TestRedisStore_RefreshesTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 30*time.Minute)

	require.NoError(t, store.Append(ctx, "s1", turn(0)))
	assert.Equal(t, 30*time.Minute, mr.TTL("scholarship:session:s1"))

	mr.FastForward(31 * time.Minute)
	session, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, session.Turns)
}

func TestRedisStore_CorruptTurn(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 0)
	_, err := mr.Push("scholarship:session:bad", "{not json")
	require.NoError(t, err)

	_, err = store.Get(ctx, "bad")
	assert.Error(t, err)
}
