// Package store holds the relational adapters for durable memory rows.
// The long-term store treats these as substitutable backends; Postgres is
// the reference implementation, Mongo mirrors it, and the in-memory store
// backs tests and throwaway runs.
package store

import (
	"context"
	"errors"

	"github.com/engram-labs/engram/pkg/memory/model"
)

// ErrNotFound is returned when an id (or preference key) resolves to no row.
var ErrNotFound = errors.New("record not found")

// Store is the relational capability the long-term store consumes.
// Relational failures are genuine failures; callers propagate them.
type Store interface {
	// Memories.
	InsertMemory(ctx context.Context, m model.Memory) (model.Memory, error)
	// MemoriesByIDs resolves ids scoped to one user+project, newest first.
	// Ids that no longer exist are silently dropped.
	MemoriesByIDs(ctx context.Context, userID int64, projectID string, ids []int64) ([]model.Memory, error)
	// TopMemories is the DB-only ranking: importance DESC, created_at DESC.
	TopMemories(ctx context.Context, userID int64, projectID string, limit int) ([]model.Memory, error)
	ListMemories(ctx context.Context, userID int64) ([]model.Memory, error)
	SearchMemories(ctx context.Context, userID int64, keyword string) ([]model.Memory, error)
	UpdateMemory(ctx context.Context, id int64, upd model.MemoryUpdate) error
	DeleteMemory(ctx context.Context, id int64) error
	// DeleteMemoriesByKeyword bulk-deletes and returns the deleted ids so
	// the caller can clean up the vector mirror.
	DeleteMemoriesByKeyword(ctx context.Context, userID int64, keyword string) ([]int64, error)
	// MarkRetrieved bumps retrieval_count and stamps last_retrieved_at.
	MarkRetrieved(ctx context.Context, ids []int64) error

	// Goals.
	InsertGoal(ctx context.Context, g model.Goal) (model.Goal, error)
	ListGoals(ctx context.Context, userID int64) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, id int64, upd model.GoalUpdate) error

	// Preferences (upsert on user_id+preference_key).
	UpsertPreference(ctx context.Context, p model.Preference) (model.Preference, error)
	ListPreferences(ctx context.Context, userID int64) ([]model.Preference, error)
	GetPreference(ctx context.Context, userID int64, key string) (model.Preference, error)

	// Projects.
	InsertProject(ctx context.Context, p model.Project) (model.Project, error)
	ListProjects(ctx context.Context, userID int64) ([]model.Project, error)
	UpdateProject(ctx context.Context, id int64, upd model.ProjectUpdate) error
}

// SchemaInitializer is implemented by stores that can create their own
// schema.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}
