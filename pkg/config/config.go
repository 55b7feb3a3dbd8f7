// Package config loads runtime settings from the environment. Every
// field has a default so a bare process starts with local services.
package config

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DSN renders a pgx-compatible connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type MongoConfig struct {
	URI      string
	Database string
}

type ModelConfig struct {
	Provider string
	Model    string
}

type MemoryConfig struct {
	ShortTermTokenLimit  int
	ShortTermMaxMessages int
	LongTermTopResults   int
	ReflectionThreshold  int
}

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	Postgres   PostgresConfig
	Qdrant     QdrantConfig
	Mongo      MongoConfig
	Model      ModelConfig
	Embeddings EmbeddingsConfig
	Memory     MemoryConfig
	// VectorBackend selects the vector index: qdrant, chromem, or none.
	VectorBackend string
	LogLevel      string
}

// loadModelConfig resolves the chat model from the provider's own default
// variable, with DEFAULT_MODEL as a cross-provider override.
func loadModelConfig() ModelConfig {
	provider := envString("DEFAULT_MODEL_PROVIDER", "ollama")
	var model string
	switch provider {
	case "openai":
		model = envString("OPENAI_DEFAULT_MODEL", "gpt-4-turbo-preview")
	case "gemini", "google":
		model = envString("GEMINI_DEFAULT_MODEL", "gemini-pro")
	case "anthropic", "claude":
		model = envString("ANTHROPIC_DEFAULT_MODEL", "claude-3-5-sonnet-latest")
	default:
		model = envString("OLLAMA_DEFAULT_MODEL", "llama3.1:8b")
	}
	if override := os.Getenv("DEFAULT_MODEL"); override != "" {
		model = override
	}
	return ModelConfig{Provider: provider, Model: model}
}

func Load() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Database: envString("POSTGRES_DB", "engram"),
			User:     envString("POSTGRES_USER", "postgres"),
			Password: envString("POSTGRES_PASSWORD", "postgres"),
		},
		Qdrant: QdrantConfig{
			URL:        envString("QDRANT_URL", "http://localhost:6333"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Collection: envString("QDRANT_COLLECTION", "engram_memories"),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URL"),
			Database: envString("MONGO_DATABASE", "engram"),
		},
		Model:         loadModelConfig(),
		VectorBackend: envString("VECTOR_BACKEND", "qdrant"),
		Embeddings: EmbeddingsConfig{
			Provider:  envString("EMBEDDINGS_PROVIDER", "ollama"),
			Model:     envString("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: envInt("EMBEDDINGS_DIMENSION", 768),
		},
		Memory: MemoryConfig{
			ShortTermTokenLimit:  envInt("SHORT_TERM_TOKEN_LIMIT", 4000),
			ShortTermMaxMessages: envInt("SHORT_TERM_MAX_MESSAGES", 20),
			LongTermTopResults:   envInt("LONG_TERM_TOP_RESULTS", 5),
			ReflectionThreshold:  envInt("REFLECTION_THRESHOLD", 10),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}

// NewLogger builds a production zap logger honoring LOG_LEVEL. Unknown
// levels fall back to info.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
