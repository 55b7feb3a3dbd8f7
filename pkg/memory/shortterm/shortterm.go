// Package shortterm holds the most recent conversation turns for one
// user+project conversation within two simultaneous caps: a message count
// and an estimated token budget.
package shortterm

import (
	"strings"

	"github.com/engram-labs/engram/pkg/memory/model"
)

// EstimateTokens approximates token cost as ceil(len/4). It is
// intentionally cheap and is used for both insertion and eviction so the
// buffer's token accumulator stays exact under the same formula. Swapping
// in a real tokenizer would invalidate every live buffer's count.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Conversation is a display-oriented user/assistant pairing.
type Conversation struct {
	User      string
	Assistant string
}

// Store is a bounded FIFO message buffer. It is not safe for concurrent
// writers; one logical conversation owns it at a time.
type Store struct {
	messages    []model.Message
	tokenCount  int
	tokenLimit  int
	maxMessages int
}

// NewStore creates a buffer with the given caps. Non-positive caps fall
// back to the deployment defaults (4000 tokens, 20 messages).
func NewStore(tokenLimit, maxMessages int) *Store {
	if tokenLimit <= 0 {
		tokenLimit = 4000
	}
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &Store{
		messages:    make([]model.Message, 0, maxMessages),
		tokenLimit:  tokenLimit,
		maxMessages: maxMessages,
	}
}

// AddMessage appends a message, evicting oldest-first until both caps
// hold. A single message whose estimated cost alone exceeds the token
// limit empties the buffer and is still inserted; a buffer of size one
// over the nominal limit is accepted, not an error.
func (s *Store) AddMessage(m model.Message) {
	cost := EstimateTokens(m.Content)
	for len(s.messages) > 0 &&
		(s.tokenCount+cost > s.tokenLimit || len(s.messages) >= s.maxMessages) {
		removed := s.messages[0]
		s.messages = s.messages[1:]
		s.tokenCount -= EstimateTokens(removed.Content)
	}
	s.messages = append(s.messages, m)
	s.tokenCount += cost
}

// AddMessages appends messages in order.
func (s *Store) AddMessages(msgs []model.Message) {
	for _, m := range msgs {
		s.AddMessage(m)
	}
}

// Messages returns a snapshot in insertion order. Mutating the snapshot
// does not affect the buffer.
func (s *Store) Messages() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastMessages returns the last n messages in insertion order, or all of
// them if fewer than n exist.
func (s *Store) LastMessages(n int) []model.Message {
	if n <= 0 {
		return nil
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]model.Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// MessagesByRole returns the subsequence with the given role, order
// preserved.
func (s *Store) MessagesByRole(role model.Role) []model.Message {
	var out []model.Message
	for _, m := range s.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) SystemMessages() []model.Message    { return s.MessagesByRole(model.RoleSystem) }
func (s *Store) UserMessages() []model.Message      { return s.MessagesByRole(model.RoleUser) }
func (s *Store) AssistantMessages() []model.Message { return s.MessagesByRole(model.RoleAssistant) }

// Conversations pairs user turns with the next assistant turn. A user
// message with no assistant reply before truncation is dropped; this is a
// lossy reconstruction and a display aid only.
func (s *Store) Conversations() []Conversation {
	var out []Conversation
	var pendingUser string
	for _, m := range s.messages {
		switch m.Role {
		case model.RoleUser:
			pendingUser = m.Content
		case model.RoleAssistant:
			if pendingUser != "" {
				out = append(out, Conversation{User: pendingUser, Assistant: m.Content})
				pendingUser = ""
			}
		}
	}
	return out
}

// Clear empties the buffer and resets the token count.
func (s *Store) Clear() {
	s.messages = s.messages[:0]
	s.tokenCount = 0
}

// TokenCount returns the running token accumulator.
func (s *Store) TokenCount() int { return s.tokenCount }

// Len returns the number of buffered messages.
func (s *Store) Len() int { return len(s.messages) }

// ContextString renders the buffered window as "{role}: {content}" blocks
// separated by a blank line, oldest first. This is what gets embedded
// into the system prompt.
func (s *Store) ContextString() string {
	recent := s.LastMessages(s.maxMessages)
	parts := make([]string, 0, len(recent))
	for _, m := range recent {
		parts = append(parts, string(m.Role)+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
