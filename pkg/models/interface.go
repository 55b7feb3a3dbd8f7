// Package models wraps chat-completion providers behind a single
// interface so the memory layers never depend on a specific vendor SDK.
package models

import "context"

// Completer is a single-turn text completion. Implementations prepend
// their SystemPrompt, if set, to every request.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
