package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env          string
	Port         string
	Server       ServerConfig
	DB           DBConfig
	Ollama       OllamaConfig
	Vector       VectorConfig
	RAG          RAGConfig
	Conversation ConversationConfig
	Redis        RedisConfig
	Ingest       IngestConfig
	OTel         OTelConfig
}

type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// ChatTimeout bounds one /chat request end to end.
	ChatTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN builds a libpq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type OllamaConfig struct {
	URL            string
	EmbeddingModel string
	ChatModel      string
	TimeoutSeconds int
}

type VectorConfig struct {
	// Backend is "pgvector" or "memory".
	Backend   string
	IndexName string
}

type RAGConfig struct {
	TopK            int
	HistoryWindow   int
	MaxTurns        int
	SourceCount     int
	MinRewriteRunes int
}

type ConversationConfig struct {
	// Backend is "memory" or "redis".
	Backend    string
	MaxSession int
	TTL        time.Duration
}

type RedisConfig struct {
	URL string
}

type IngestConfig struct {
	BatchSize         int
	BatchInterval     time.Duration
	ReadyPollInterval time.Duration
	ReadyTimeout      time.Duration
	ChunkSize         int
	ChunkOverlap      int
	// OnStartPath, when set, is ingested by the server before it starts listening.
	OnStartPath string
}

type OTelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// LoadDotEnv reads .env files into the environment. Missing files are ignored
// and variables already set take precedence.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "3000"),
		Server: ServerConfig{
			ReadHeaderTimeout: getEnvSeconds("SERVER_READ_HEADER_TIMEOUT_SECONDS", 10),
			ShutdownTimeout:   getEnvSeconds("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15),
			ChatTimeout:       getEnvSeconds("CHAT_TIMEOUT_SECONDS", 120),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "rag_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
			Name:     getEnv("DB_NAME", "scholarship_rag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Ollama: OllamaConfig{
			URL:            getEnvWithAlt("OLLAMA_URL", "OLLAMA_HOST", "http://localhost:11434"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			ChatModel:      getEnv("CHAT_MODEL", "llama3.1"),
			TimeoutSeconds: getEnvInt("OLLAMA_TIMEOUT_SECONDS", 120),
		},
		Vector: VectorConfig{
			Backend:   strings.ToLower(getEnv("VECTOR_BACKEND", "pgvector")),
			IndexName: getEnv("VECTOR_INDEX_NAME", "scholarships"),
		},
		RAG: RAGConfig{
			TopK:            getEnvInt("RAG_TOP_K", 10),
			HistoryWindow:   getEnvInt("RAG_HISTORY_WINDOW", 6),
			MaxTurns:        getEnvInt("RAG_MAX_TURNS", 20),
			SourceCount:     getEnvInt("RAG_SOURCE_COUNT", 3),
			MinRewriteRunes: getEnvInt("RAG_MIN_REWRITE_RUNES", 8),
		},
		Conversation: ConversationConfig{
			Backend:    strings.ToLower(getEnv("CONVERSATION_BACKEND", "memory")),
			MaxSession: getEnvInt("CONVERSATION_MAX_SESSIONS", 0),
			TTL:        getEnvSeconds("CONVERSATION_TTL_SECONDS", 0),
		},
		Redis: RedisConfig{
			URL: getSecret("REDIS_URL", "REDIS_URL_FILE", "redis://localhost:6379/0"),
		},
		Ingest: IngestConfig{
			BatchSize:         getEnvInt("INGEST_BATCH_SIZE", 50),
			BatchInterval:     time.Duration(getEnvInt("INGEST_BATCH_INTERVAL_MS", 500)) * time.Millisecond,
			ReadyPollInterval: getEnvSeconds("INGEST_READY_POLL_SECONDS", 2),
			ReadyTimeout:      getEnvSeconds("INGEST_READY_TIMEOUT_SECONDS", 300),
			ChunkSize:         getEnvInt("INGEST_CHUNK_SIZE", 1000),
			ChunkOverlap:      getEnvInt("INGEST_CHUNK_OVERLAP", 200),
			OnStartPath:       getEnv("INGEST_ON_START", ""),
		},
		OTel: OTelConfig{
			Enabled:     getEnvBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "scholarship-rag"),
			SampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case "pgvector", "memory":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.Vector.Backend)
	}
	switch c.Conversation.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CONVERSATION_BACKEND %q", c.Conversation.Backend)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("INGEST_CHUNK_OVERLAP (%d) must be smaller than INGEST_CHUNK_SIZE (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
