// Package model defines the records shared by the short- and long-term
// memory layers. Messages are ephemeral and owned by a short-term buffer;
// everything else is durable and owned by the long-term store.
package model

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an opaque tool invocation attached to an assistant message.
// Arguments are kept raw; the memory layer never interprets them.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is a single conversation turn. Ordering is insertion order and
// is load-bearing: recency stands in for relevance.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// MemoryType distinguishes explicitly stored memories from ones distilled
// by reflection.
type MemoryType string

const (
	MemoryExplicit   MemoryType = "explicit"
	MemoryReflection MemoryType = "reflection"
)

// Memory is a durable fact/insight record, distinct from a Message.
type Memory struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	ProjectID            string     `json:"project_id"`
	Content              string     `json:"content"`
	MemoryType           MemoryType `json:"memory_type"`
	Importance           int        `json:"importance"` // 1..5
	RetrievalCount       int        `json:"retrieval_count"`
	Tags                 []string   `json:"tags,omitempty"`
	SourceConversationID string     `json:"source_conversation_id,omitempty"`
	SourceMessageID      string     `json:"source_message_id,omitempty"`
	LastRetrievedAt      *time.Time `json:"last_retrieved_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// GoalStatus is the lifecycle state of a Goal. Status transitions are the
// only mutation path; goals are never auto-deleted.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

type Goal struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      GoalStatus `json:"status"`
	Priority    int        `json:"priority"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Preference is an upsert-only key/value pair, unique per (user, key).
type Preference struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Key       string    `json:"preference_key"`
	Value     string    `json:"preference_value"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

type Project struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Status        ProjectStatus `json:"status"`
	TechStack     []string      `json:"tech_stack,omitempty"`
	RepositoryURL string        `json:"repository_url,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// MemoryUpdate is a sparse update: only non-nil fields are written.
// updated_at is refreshed on any write.
type MemoryUpdate struct {
	Content    *string
	MemoryType *MemoryType
	Importance *int
	Tags       *[]string
}

// IsZero reports whether no field is set.
func (u MemoryUpdate) IsZero() bool {
	return u.Content == nil && u.MemoryType == nil && u.Importance == nil && u.Tags == nil
}

type GoalUpdate struct {
	Title       *string
	Description *string
	Status      *GoalStatus
	Priority    *int
	TargetDate  *time.Time
}

func (u GoalUpdate) IsZero() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.Priority == nil && u.TargetDate == nil
}

type ProjectUpdate struct {
	Name          *string
	Description   *string
	Status        *ProjectStatus
	TechStack     *[]string
	RepositoryURL *string
}

func (u ProjectUpdate) IsZero() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil && u.TechStack == nil && u.RepositoryURL == nil
}

// ClampImportance forces an importance rating into the 1..5 range the
// schema expects.
func ClampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}
