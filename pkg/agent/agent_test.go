package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/engram-labs/engram/pkg/memory/index"
	"github.com/engram-labs/engram/pkg/memory/longterm"
	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/memory/reflection"
	"github.com/engram-labs/engram/pkg/memory/store"
	"github.com/engram-labs/engram/pkg/models"
)

// recordingCompleter captures prompts and returns scripted replies.
type recordingCompleter struct {
	prompts []string
	replies []string
	next    int
}

func (rc *recordingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	rc.prompts = append(rc.prompts, prompt)
	if rc.next < len(rc.replies) {
		r := rc.replies[rc.next]
		rc.next++
		return r, nil
	}
	return "ok", nil
}

func newTestAgent(t *testing.T, completer models.Completer, reflector *reflection.Reflector, lt *longterm.LongTermStore) *Agent {
	t.Helper()
	ix, err := index.New(lt, index.WithShortTermLimits(4000, 20))
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	a, err := New(Config{
		UserID:    1,
		Username:  "ada",
		ProjectID: "p",
		Completer: completer,
		Memory:    ix,
		Reflector: reflector,
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return a
}

func newLongTerm(t *testing.T) *longterm.LongTermStore {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	db := store.NewInMemoryStore().WithClock(func() time.Time {
		base = base.Add(time.Second)
		return base
	})
	lt, err := longterm.New(db)
	if err != nil {
		t.Fatalf("longterm.New: %v", err)
	}
	return lt
}

func TestChatInjectsDurableContext(t *testing.T) {
	lt := newLongTerm(t)
	ctx := context.Background()
	lt.StoreMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "prefers terse replies", Importance: 4})

	rc := &recordingCompleter{replies: []string{"noted"}}
	a := newTestAgent(t, rc, nil, lt)

	reply, err := a.Chat(ctx, "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "noted" {
		t.Fatalf("reply = %q", reply)
	}
	if len(rc.prompts) != 1 {
		t.Fatalf("completer called %d times", len(rc.prompts))
	}
	prompt := rc.prompts[0]
	if !strings.Contains(prompt, "### User Context") || !strings.Contains(prompt, "prefers terse replies") {
		t.Fatalf("durable context missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "### Recent Conversation") || !strings.Contains(prompt, "user: hello") {
		t.Fatalf("short-term context missing from prompt:\n%s", prompt)
	}
}

func TestChatBuffersBothTurns(t *testing.T) {
	lt := newLongTerm(t)
	rc := &recordingCompleter{replies: []string{"hi there"}}
	a := newTestAgent(t, rc, nil, lt)

	if _, err := a.Chat(context.Background(), "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	messages := a.memory.ShortTermMessages(1, "p")
	if len(messages) != 2 {
		t.Fatalf("buffered %d messages, want 2", len(messages))
	}
	if messages[0].Role != model.RoleUser || messages[1].Role != model.RoleAssistant {
		t.Fatalf("roles = %q, %q", messages[0].Role, messages[1].Role)
	}
}

func TestChatReflectionPersistsKnowledge(t *testing.T) {
	lt := newLongTerm(t)
	ctx := context.Background()

	// First canned response answers the chat, second answers the
	// reflector's analysis prompt.
	completer := &models.DummyCompleter{Canned: []string{
		"great choice",
		`{"memories": [{"content": "uses vim", "type": "preference", "importance": 3, "tags": []}]}`,
	}}
	reflector, err := reflection.New(completer, lt, nil)
	if err != nil {
		t.Fatalf("reflection.New: %v", err)
	}
	a := newTestAgent(t, completer, reflector, lt)

	if _, err := a.Chat(ctx, "I edit in vim"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	memories, _ := lt.ListMemories(ctx, 1)
	if len(memories) != 1 || memories[0].Content != "uses vim" {
		t.Fatalf("reflected memories = %+v", memories)
	}
}

func TestChatEmptyMessageRejected(t *testing.T) {
	a := newTestAgent(t, &recordingCompleter{}, nil, newLongTerm(t))
	if _, err := a.Chat(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestEndSessionReflectsAndClears(t *testing.T) {
	lt := newLongTerm(t)
	ctx := context.Background()

	completer := &models.DummyCompleter{Canned: []string{
		"sure",
		`{}`,
		`[{"content": "session insight", "importance": 2, "tags": ["session"]}]`,
	}}
	reflector, _ := reflection.New(completer, lt, nil)
	a := newTestAgent(t, completer, reflector, lt)

	if _, err := a.Chat(ctx, "remember this session"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if err := a.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	memories, _ := lt.ListMemories(ctx, 1)
	found := false
	for _, m := range memories {
		if m.Content == "session insight" {
			found = true
		}
	}
	if !found {
		t.Fatalf("session insight not stored: %+v", memories)
	}
	if got := a.memory.ShortTermMessages(1, "p"); len(got) != 0 {
		t.Fatalf("short-term survived EndSession: %d messages", len(got))
	}
}

func TestConversationIDsAreUnique(t *testing.T) {
	lt := newLongTerm(t)
	a := newTestAgent(t, &recordingCompleter{}, nil, lt)
	b := newTestAgent(t, &recordingCompleter{}, nil, lt)
	if a.ConversationID() == b.ConversationID() {
		t.Fatal("two sessions shared a conversation id")
	}
	if a.ConversationID() == "" {
		t.Fatal("conversation id is empty")
	}
}
