package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyCompleter answers locally without API calls. When Canned responses
// are configured it cycles through them, which lets tests script exact
// model output; otherwise it echoes the last non-empty prompt line.
type DummyCompleter struct {
	Prefix string
	Canned []string
	next   int
}

func NewDummyCompleter(prefix string) *DummyCompleter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyCompleter{Prefix: prefix}
}

func (d *DummyCompleter) Complete(_ context.Context, prompt string) (string, error) {
	if len(d.Canned) > 0 {
		resp := d.Canned[d.next%len(d.Canned)]
		d.next++
		return resp, nil
	}

	lines := strings.Split(prompt, "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			last = candidate
			break
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}
	return fmt.Sprintf("%s %s", d.Prefix, last), nil
}

var _ Completer = (*DummyCompleter)(nil)
