// Package reflection turns raw conversation into durable knowledge by
// asking a model to extract memories, goals, preferences and projects as
// JSON, then persisting whatever parses.
package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/engram-labs/engram/pkg/memory/longterm"
	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/models"
)

// ExtractedKnowledge is the shape the analysis prompt asks the model for.
// Every field tolerates absence; an unusable response decodes to the zero
// value rather than an error.
type ExtractedKnowledge struct {
	Memories    []ExtractedMemory     `json:"memories"`
	Goals       []ExtractedGoal       `json:"goals"`
	Preferences []ExtractedPreference `json:"preferences"`
	Projects    []ExtractedProject    `json:"projects"`
}

type ExtractedMemory struct {
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Importance int      `json:"importance"`
	Tags       []string `json:"tags"`
}

type ExtractedGoal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Status      string `json:"status"`
}

type ExtractedPreference struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

type ExtractedProject struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	TechStack   []string `json:"techStack"`
}

func (k ExtractedKnowledge) IsEmpty() bool {
	return len(k.Memories) == 0 && len(k.Goals) == 0 &&
		len(k.Preferences) == 0 && len(k.Projects) == 0
}

const analyzePromptFormat = `Analyze this conversation and extract structured knowledge to store in memory.

User: %s
Assistant: %s

Extract and return ONLY a JSON object with this exact structure (no other text):

{
  "memories": [
    {"content": "fact or information to remember", "type": "fact|preference|goal|project|general", "importance": 1-5, "tags": ["tag1"]}
  ],
  "goals": [
    {"title": "goal title", "description": "optional description", "priority": 1-5, "status": "active|completed|cancelled"}
  ],
  "preferences": [
    {"key": "preference_key", "value": "preference_value", "category": "optional category"}
  ],
  "projects": [
    {"name": "project name", "description": "optional description", "status": "active|completed|archived", "techStack": ["tech1", "tech2"]}
  ]
}

Only include entries if there is meaningful information to extract. Be concise but specific.`

const sessionPromptFormat = `Review this conversation session and extract important insights to remember:

%s

Return JSON array:

[{"content": "...", "type": "fact|preference|general", "importance": 1-5, "tags": ["session"]}]
`

// Provenance markers recorded on reflected memories.
const (
	sourceAnalysis     = "reflection-analysis"
	sourceAnalysisMsg  = "llm-extracted"
	sourceSession      = "session-reflection"
	sourceSessionMsg   = "session"
	sessionInsightsCap = 20
)

// Reflector runs extraction prompts against a completion model and writes
// the results through the long-term store.
type Reflector struct {
	completer models.Completer
	longTerm  *longterm.LongTermStore
	logger    *zap.Logger
}

func New(completer models.Completer, longTerm *longterm.LongTermStore, logger *zap.Logger) (*Reflector, error) {
	if completer == nil {
		return nil, errors.New("reflection: completer is required")
	}
	if longTerm == nil {
		return nil, errors.New("reflection: long-term store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{completer: completer, longTerm: longTerm, logger: logger}, nil
}

// AnalyzeConversation extracts knowledge from a single exchange. Model
// failures and unparseable output yield an empty structure, never an
// error: reflection is opportunistic and must not break the chat loop.
func (r *Reflector) AnalyzeConversation(ctx context.Context, userMessage, assistantMessage string) ExtractedKnowledge {
	prompt := fmt.Sprintf(analyzePromptFormat, userMessage, assistantMessage)

	resp, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn("conversation analysis failed", zap.Error(err))
		return ExtractedKnowledge{}
	}

	span, ok := extractBalanced(resp, '{', '}')
	if !ok {
		r.logger.Debug("no JSON object in analysis response")
		return ExtractedKnowledge{}
	}
	var knowledge ExtractedKnowledge
	if err := json.Unmarshal([]byte(span), &knowledge); err != nil {
		r.logger.Warn("analysis response did not parse", zap.Error(err))
		return ExtractedKnowledge{}
	}
	return knowledge
}

// StoreExtractedKnowledge persists each extracted item independently so
// one bad row cannot block the rest. Per-item failures are joined into
// the returned error.
func (r *Reflector) StoreExtractedKnowledge(ctx context.Context, userID int64, projectID string, k ExtractedKnowledge) error {
	var errs []error

	for _, em := range k.Memories {
		if em.Content == "" {
			continue
		}
		tags := em.Tags
		// The extracted free-form type survives as a tag; the stored
		// memory_type stays within the schema's vocabulary.
		if em.Type != "" {
			tags = append(tags, em.Type)
		}
		_, _, err := r.longTerm.StoreMemory(ctx, model.Memory{
			UserID:               userID,
			ProjectID:            projectID,
			Content:              em.Content,
			MemoryType:           model.MemoryReflection,
			Importance:           em.Importance,
			Tags:                 tags,
			SourceConversationID: sourceAnalysis,
			SourceMessageID:      sourceAnalysisMsg,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store memory: %w", err))
		}
	}

	for _, eg := range k.Goals {
		if eg.Title == "" {
			continue
		}
		_, err := r.longTerm.AddGoal(ctx, model.Goal{
			UserID:      userID,
			Title:       eg.Title,
			Description: eg.Description,
			Priority:    eg.Priority,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store goal %q: %w", eg.Title, err))
		}
	}

	for _, ep := range k.Preferences {
		if ep.Key == "" {
			continue
		}
		_, err := r.longTerm.SetPreference(ctx, model.Preference{
			UserID:   userID,
			Key:      ep.Key,
			Value:    ep.Value,
			Category: ep.Category,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store preference %q: %w", ep.Key, err))
		}
	}

	for _, epr := range k.Projects {
		if epr.Name == "" {
			continue
		}
		_, err := r.longTerm.AddProject(ctx, model.Project{
			UserID:      userID,
			Name:        epr.Name,
			Description: epr.Description,
			TechStack:   epr.TechStack,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store project %q: %w", epr.Name, err))
		}
	}

	return errors.Join(errs...)
}

// AnalyzeAndStore runs AnalyzeConversation then persists the result.
func (r *Reflector) AnalyzeAndStore(ctx context.Context, userID int64, projectID, userMessage, assistantMessage string) error {
	knowledge := r.AnalyzeConversation(ctx, userMessage, assistantMessage)
	if knowledge.IsEmpty() {
		return nil
	}
	return r.StoreExtractedKnowledge(ctx, userID, projectID, knowledge)
}

// ReflectOnSession distills a whole conversation into session-level
// insight memories. Like AnalyzeConversation it soft-fails on model or
// parse errors.
func (r *Reflector) ReflectOnSession(ctx context.Context, userID int64, projectID string, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	prompt := fmt.Sprintf(sessionPromptFormat, strings.Join(lines, "\n\n"))

	resp, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn("session reflection failed", zap.Error(err))
		return nil
	}

	span, ok := extractBalanced(resp, '[', ']')
	if !ok {
		return nil
	}
	var insights []ExtractedMemory
	if err := json.Unmarshal([]byte(span), &insights); err != nil {
		r.logger.Warn("session insights did not parse", zap.Error(err))
		return nil
	}
	if len(insights) > sessionInsightsCap {
		insights = insights[:sessionInsightsCap]
	}

	var errs []error
	for _, insight := range insights {
		if insight.Content == "" {
			continue
		}
		importance := insight.Importance
		if importance == 0 {
			importance = 1
		}
		_, _, err := r.longTerm.StoreMemory(ctx, model.Memory{
			UserID:               userID,
			ProjectID:            projectID,
			Content:              insight.Content,
			MemoryType:           model.MemoryReflection,
			Importance:           importance,
			Tags:                 insight.Tags,
			SourceConversationID: sourceSession,
			SourceMessageID:      sourceSessionMsg,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store insight: %w", err))
		}
	}
	return errors.Join(errs...)
}

// extractBalanced returns the first span of text that opens with open and
// closes with its matching close delimiter, tracking nesting and JSON
// string escapes. Trailing prose after the span is ignored; an unbalanced
// span reports false.
func extractBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
