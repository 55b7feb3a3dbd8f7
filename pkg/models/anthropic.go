package models

import (
	"context"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicCompleter struct {
	Client       *anthropic.Client
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// NewAnthropicCompleter reads ANTHROPIC_API_KEY from the environment.
func NewAnthropicCompleter(model, systemPrompt string) *AnthropicCompleter {
	key := os.Getenv("ANTHROPIC_API_KEY")
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(key),
	)
	return &AnthropicCompleter{
		Client:       &cl,
		Model:        model,
		MaxTokens:    1024,
		SystemPrompt: systemPrompt,
	}
}

func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if a.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: a.SystemPrompt},
		}
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}

var _ Completer = (*AnthropicCompleter)(nil)
