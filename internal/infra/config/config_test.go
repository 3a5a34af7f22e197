package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"RAG_TOP_K", "RAG_HISTORY_WINDOW", "RAG_MAX_TURNS", "VECTOR_BACKEND", "CONVERSATION_BACKEND", "INGEST_BATCH_SIZE", "CHAT_TIMEOUT_SECONDS"} {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 10, cfg.RAG.TopK)
	assert.Equal(t, 6, cfg.RAG.HistoryWindow)
	assert.Equal(t, 20, cfg.RAG.MaxTurns)
	assert.Equal(t, 3, cfg.RAG.SourceCount)
	assert.Equal(t, "pgvector", cfg.Vector.Backend)
	assert.Equal(t, "memory", cfg.Conversation.Backend)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.BatchInterval)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 120*time.Second, cfg.Server.ChatTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("RAG_TOP_K", "5")
	t.Setenv("VECTOR_BACKEND", "Memory")
	t.Setenv("CONVERSATION_BACKEND", "redis")
	t.Setenv("CONVERSATION_TTL_SECONDS", "3600")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	cfg := Load()

	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.Equal(t, "redis", cfg.Conversation.Backend)
	assert.Equal(t, time.Hour, cfg.Conversation.TTL)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.URL)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RAG_TOP_K", "ten")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 10, cfg.RAG.TopK)
	assert.False(t, cfg.OTel.Enabled)
}

func TestGetSecret_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))
	_ = os.Unsetenv("DB_PASSWORD")
	t.Setenv("DB_PASSWORD_FILE", path)

	cfg := Load()

	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Contains(t, cfg.DB.DSN(), "password=s3cret")
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Vector.Backend = "pinecone"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Conversation.Backend = "memcached"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VECTOR_INDEX_NAME=from_dotenv\n"), 0o600))
	t.Setenv("VECTOR_INDEX_NAME", "")
	require.NoError(t, os.Unsetenv("VECTOR_INDEX_NAME"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("VECTOR_INDEX_NAME") })

	assert.Equal(t, "from_dotenv", Load().Vector.IndexName)
}
