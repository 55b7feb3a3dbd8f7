package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

type OllamaCompleter struct {
	Client       *ollama.Client
	Model        string
	SystemPrompt string
}

func NewOllamaCompleter(model, systemPrompt string) (*OllamaCompleter, error) {
	host := os.Getenv("OLLAMA_BASE_URL")
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &OllamaCompleter{
		Client:       ollama.NewClient(u, httpClient),
		Model:        model,
		SystemPrompt: systemPrompt,
	}, nil
}

func (o *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var text strings.Builder
	req := &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		System: o.SystemPrompt,
	}

	err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		if gr.Response != "" {
			text.WriteString(gr.Response)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}

var _ Completer = (*OllamaCompleter)(nil)
