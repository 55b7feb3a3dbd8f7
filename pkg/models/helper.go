package models

import (
	"context"
	"fmt"
)

// NewCompleter builds a provider-specific Completer by name.
func NewCompleter(ctx context.Context, provider, model, systemPrompt string) (Completer, error) {
	switch provider {
	case "openai":
		return NewOpenAICompleter(model, systemPrompt), nil
	case "gemini", "google":
		return NewGeminiCompleter(ctx, model, systemPrompt)
	case "ollama":
		return NewOllamaCompleter(model, systemPrompt)
	case "anthropic", "claude":
		return NewAnthropicCompleter(model, systemPrompt), nil
	case "dummy", "":
		return NewDummyCompleter(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
