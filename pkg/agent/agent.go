// Package agent runs the memory-augmented chat loop: retrieve context,
// complete, remember, reflect.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engram-labs/engram/pkg/memory/index"
	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/memory/reflection"
	"github.com/engram-labs/engram/pkg/models"
)

const defaultSystemPrompt = `You are a persistent cognitive partner that remembers, evolves, and builds with your user.
After each conversation, important information about the user is reflected into long-term memory.`

// Config describes one user session.
type Config struct {
	UserID       int64
	Username     string
	ProjectID    string
	SystemPrompt string
	Completer    models.Completer
	Memory       *index.Index
	Reflector    *reflection.Reflector
	Logger       *zap.Logger
}

// Agent is a single-user chat session. Each session carries a fresh
// conversation id that tags its log entries; stored memories record
// which pipeline produced them, not the session.
type Agent struct {
	userID         int64
	username       string
	projectID      string
	systemPrompt   string
	conversationID string

	completer models.Completer
	memory    *index.Index
	reflector *reflection.Reflector
	logger    *zap.Logger
}

func New(cfg Config) (*Agent, error) {
	if cfg.Completer == nil {
		return nil, errors.New("agent: completer is required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("agent: memory index is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Agent{
		userID:         cfg.UserID,
		username:       cfg.Username,
		projectID:      cfg.ProjectID,
		systemPrompt:   cfg.SystemPrompt,
		conversationID: uuid.NewString(),
		completer:      cfg.Completer,
		memory:         cfg.Memory,
		reflector:      cfg.Reflector,
		logger:         cfg.Logger,
	}, nil
}

// ConversationID identifies this session in log output.
func (a *Agent) ConversationID() string {
	return a.conversationID
}

// Chat runs one turn: the user message enters short-term memory, durable
// context is retrieved and injected into the prompt, and the exchange is
// handed to the reflector afterwards. Reflection failures are logged but
// never surface to the caller.
func (a *Agent) Chat(ctx context.Context, userMessage string) (string, error) {
	if userMessage == "" {
		return "", errors.New("agent: empty user message")
	}

	a.memory.AddMessage(a.userID, a.username, a.projectID, model.Message{
		Role:    model.RoleUser,
		Content: userMessage,
	})

	contextString, err := a.memory.PromptContext(ctx, a.userID, a.projectID, userMessage)
	if err != nil {
		return "", fmt.Errorf("agent: retrieve context: %w", err)
	}

	reply, err := a.completer.Complete(ctx, a.buildPrompt(userMessage, contextString))
	if err != nil {
		return "", fmt.Errorf("agent: completion: %w", err)
	}

	a.memory.AddMessage(a.userID, a.username, a.projectID, model.Message{
		Role:    model.RoleAssistant,
		Content: reply,
	})

	if a.reflector != nil {
		if err := a.reflector.AnalyzeAndStore(ctx, a.userID, a.projectID, userMessage, reply); err != nil {
			a.logger.Warn("reflection store failed",
				zap.String("conversation_id", a.conversationID), zap.Error(err))
		}
	}
	return reply, nil
}

func (a *Agent) buildPrompt(userMessage, contextString string) string {
	prompt := a.systemPrompt
	if contextString != "" {
		prompt += "\n\n### User Context\n" + contextString
	}
	if recent := a.memory.ShortTermContext(a.userID, a.projectID); recent != "" {
		prompt += "\n\n### Recent Conversation\n" + recent
	}
	return prompt + "\n\nUser: " + userMessage
}

// EndSession distills the buffered conversation into session insights,
// then drops the short-term state.
func (a *Agent) EndSession(ctx context.Context) error {
	if a.reflector != nil {
		messages := a.memory.ShortTermMessages(a.userID, a.projectID)
		if err := a.reflector.ReflectOnSession(ctx, a.userID, a.projectID, messages); err != nil {
			a.logger.Warn("session reflection failed",
				zap.String("conversation_id", a.conversationID), zap.Error(err))
		}
	}
	a.memory.RemoveUser(a.userID, a.projectID)
	return nil
}
