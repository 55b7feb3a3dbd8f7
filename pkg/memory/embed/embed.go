// Package embed provides pluggable text-embedding providers for the
// long-term memory store. Providers are selected by configuration; a
// deployment without any usable provider still works, the long-term store
// simply runs DB-only.
package embed

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings
// or returned empty vectors.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// ---------- Dummy (fallback) ----------

// DummyEmbedder produces deterministic pseudo-embeddings for tests and
// offline runs.
type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

// DummyEmbedding folds bytes into a fixed 768-dim vector. Deterministic.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 768)
	for i, ch := range []byte(text) {
		vec[i%768] += float32(ch) / 255.0
	}
	return vec
}

// ForProvider builds an embedder for a named provider.
// Recognised names: openai, ollama, gemini|google, voyage|claude|anthropic,
// fastembed. Empty model strings pick each provider's default.
func ForProvider(provider, modelName string) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAIEmbedder(modelName)
	case "ollama":
		return NewOllamaEmbedder(modelName)
	case "gemini", "google":
		return NewGeminiEmbedder(modelName)
	case "voyage", "claude", "anthropic":
		return NewVoyageEmbedder(modelName)
	case "fastembed":
		return NewFastEmbedder(context.Background(), defaultFastEmbedOptions())
	case "", "none":
		return nil, nil
	}
	return nil, errors.New("unknown embedding provider: " + provider)
}

// Auto chooses a provider from EMBEDDINGS_PROVIDER / EMBEDDINGS_MODEL,
// else infers one from available credentials, else returns the dummy.
func Auto() Embedder {
	provider := os.Getenv("EMBEDDINGS_PROVIDER")
	modelName := os.Getenv("EMBEDDINGS_MODEL")
	if provider != "" {
		if e, err := ForProvider(provider, modelName); err == nil && e != nil {
			return e
		}
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		if e, err := NewOpenAIEmbedder(modelName); err == nil {
			return e
		}
	}
	if os.Getenv("OLLAMA_BASE_URL") != "" || os.Getenv("OLLAMA_HOST") != "" {
		if e, err := NewOllamaEmbedder(modelName); err == nil {
			return e
		}
	}
	return DummyEmbedder{}
}
