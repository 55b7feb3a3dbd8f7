// Package longterm persists memories durably and retrieves them with a
// hybrid strategy: semantic search through the vector index when one is
// wired, importance-ranked database reads otherwise.
package longterm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/engram-labs/engram/pkg/concurrent"
	"github.com/engram-labs/engram/pkg/memory/embed"
	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/memory/store"
	"github.com/engram-labs/engram/pkg/memory/vector"
)

// StoreOutcome reports whether a stored memory made it into the vector
// index. The relational row always exists on a nil error.
type StoreOutcome int

const (
	StoredWithEmbedding StoreOutcome = iota
	StoredWithoutEmbedding
)

const defaultTopResults = 5

// LongTermStore owns durable memory state for all users. The relational
// store is the source of truth; the vector index is an acceleration
// structure that may lag or be absent entirely.
type LongTermStore struct {
	db         store.Store
	index      vector.Index
	embedder   embed.Embedder
	logger     *zap.Logger
	topResults int
}

type Option func(*LongTermStore)

// WithVectorIndex wires a vector index for semantic retrieval.
func WithVectorIndex(idx vector.Index) Option {
	return func(lt *LongTermStore) { lt.index = idx }
}

// WithEmbedder wires the embedder used for both writes and queries.
func WithEmbedder(e embed.Embedder) Option {
	return func(lt *LongTermStore) { lt.embedder = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(lt *LongTermStore) {
		if l != nil {
			lt.logger = l
		}
	}
}

// WithTopResults overrides how many memories a retrieval returns.
func WithTopResults(n int) Option {
	return func(lt *LongTermStore) {
		if n > 0 {
			lt.topResults = n
		}
	}
}

func New(db store.Store, opts ...Option) (*LongTermStore, error) {
	if db == nil {
		return nil, errors.New("longterm: relational store is required")
	}
	lt := &LongTermStore{
		db:         db,
		logger:     zap.NewNop(),
		topResults: defaultTopResults,
	}
	for _, opt := range opts {
		opt(lt)
	}
	return lt, nil
}

// StoreMemory writes the memory to the database first, then mirrors it
// into the vector index. Index failures degrade the outcome instead of
// failing the write: a memory that cannot be searched semantically is
// still a memory.
func (lt *LongTermStore) StoreMemory(ctx context.Context, m model.Memory) (model.Memory, StoreOutcome, error) {
	if m.Content == "" {
		return model.Memory{}, StoredWithoutEmbedding, errors.New("longterm: memory content is empty")
	}
	if m.MemoryType == "" {
		m.MemoryType = model.MemoryExplicit
	}

	saved, err := lt.db.InsertMemory(ctx, m)
	if err != nil {
		return model.Memory{}, StoredWithoutEmbedding, fmt.Errorf("longterm: insert memory: %w", err)
	}

	if lt.index == nil || lt.embedder == nil {
		return saved, StoredWithoutEmbedding, nil
	}

	vec, err := lt.embedder.Embed(ctx, saved.Content)
	if err != nil {
		lt.logger.Warn("memory stored without embedding",
			zap.Int64("memory_id", saved.ID), zap.Error(err))
		return saved, StoredWithoutEmbedding, nil
	}
	point := vector.Point{
		ID:     saved.ID,
		Vector: vec,
		Payload: vector.Payload{
			UserID:     saved.UserID,
			MemoryID:   saved.ID,
			ProjectID:  saved.ProjectID,
			MemoryType: string(saved.MemoryType),
		},
	}
	if err := lt.index.Upsert(ctx, point); err != nil {
		lt.logger.Warn("vector upsert failed",
			zap.Int64("memory_id", saved.ID), zap.Error(err))
		return saved, StoredWithoutEmbedding, nil
	}
	return saved, StoredWithEmbedding, nil
}

// RetrieveMemories returns up to limit memories relevant to query. With a
// healthy vector index the candidate set is semantic; on any failure, or
// when the index has nothing for this user and project, it falls back to
// importance ranking. Results always come back newest first.
func (lt *LongTermStore) RetrieveMemories(ctx context.Context, userID int64, projectID, query string) ([]model.Memory, error) {
	limit := lt.topResults

	if lt.index == nil || lt.embedder == nil || query == "" {
		top, topErr := lt.db.TopMemories(ctx, userID, projectID, limit)
		return lt.surface(ctx, top, topErr)
	}

	vec, err := lt.embedder.Embed(ctx, query)
	if err != nil {
		lt.logger.Warn("query embedding failed, using importance ranking", zap.Error(err))
		top, topErr := lt.db.TopMemories(ctx, userID, projectID, limit)
		return lt.surface(ctx, top, topErr)
	}

	hits, err := lt.index.Search(ctx, vec, limit, vector.Filter{UserID: userID, ProjectID: projectID})
	if err != nil {
		lt.logger.Warn("vector search failed, using importance ranking", zap.Error(err))
		top, topErr := lt.db.TopMemories(ctx, userID, projectID, limit)
		return lt.surface(ctx, top, topErr)
	}
	if len(hits) == 0 {
		top, topErr := lt.db.TopMemories(ctx, userID, projectID, limit)
		return lt.surface(ctx, top, topErr)
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	// The database is authoritative: hits whose rows were deleted since
	// indexing are silently dropped here.
	memories, err := lt.db.MemoriesByIDs(ctx, userID, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("longterm: resolve vector hits: %w", err)
	}
	return lt.surface(ctx, memories, nil)
}

// surface stamps retrieval bookkeeping on every memory handed back to a
// caller, whichever path produced it. Bookkeeping is best effort.
func (lt *LongTermStore) surface(ctx context.Context, memories []model.Memory, err error) ([]model.Memory, error) {
	if err != nil || len(memories) == 0 {
		return memories, err
	}
	ids := make([]int64, 0, len(memories))
	for _, m := range memories {
		ids = append(ids, m.ID)
	}
	if markErr := lt.db.MarkRetrieved(ctx, ids); markErr != nil {
		lt.logger.Warn("retrieval bookkeeping failed", zap.Error(markErr))
	}
	return memories, nil
}

// ListMemories returns every memory for the user, newest first.
func (lt *LongTermStore) ListMemories(ctx context.Context, userID int64) ([]model.Memory, error) {
	return lt.db.ListMemories(ctx, userID)
}

// SearchMemories does a keyword scan over the user's memory contents.
func (lt *LongTermStore) SearchMemories(ctx context.Context, userID int64, keyword string) ([]model.Memory, error) {
	return lt.db.SearchMemories(ctx, userID, keyword)
}

func (lt *LongTermStore) UpdateMemory(ctx context.Context, id int64, upd model.MemoryUpdate) error {
	return lt.db.UpdateMemory(ctx, id, upd)
}

// DeleteMemory removes the row and best-effort removes the index entry.
func (lt *LongTermStore) DeleteMemory(ctx context.Context, id int64) error {
	if err := lt.db.DeleteMemory(ctx, id); err != nil {
		return err
	}
	if lt.index != nil {
		if err := lt.index.Delete(ctx, []int64{id}); err != nil {
			lt.logger.Warn("vector delete failed", zap.Int64("memory_id", id), zap.Error(err))
		}
	}
	return nil
}

// ForgetMemories deletes every memory of the user whose content matches
// keyword and returns how many were removed.
func (lt *LongTermStore) ForgetMemories(ctx context.Context, userID int64, keyword string) (int, error) {
	ids, err := lt.db.DeleteMemoriesByKeyword(ctx, userID, keyword)
	if err != nil {
		return 0, fmt.Errorf("longterm: forget memories: %w", err)
	}
	if len(ids) > 0 && lt.index != nil {
		if err := lt.index.Delete(ctx, ids); err != nil {
			lt.logger.Warn("vector delete failed", zap.Int("count", len(ids)), zap.Error(err))
		}
	}
	return len(ids), nil
}

// ReindexMemories re-embeds every memory of the user in the project and
// rewrites the vector index, embedding with bounded parallelism. Useful
// after switching embedding models or recovering a lost collection.
func (lt *LongTermStore) ReindexMemories(ctx context.Context, userID int64, projectID string) (int, error) {
	if lt.index == nil || lt.embedder == nil {
		return 0, errors.New("longterm: reindex needs a vector index and an embedder")
	}

	all, err := lt.db.ListMemories(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("longterm: list for reindex: %w", err)
	}
	scoped := all[:0:0]
	for _, m := range all {
		if m.ProjectID == projectID {
			scoped = append(scoped, m)
		}
	}
	if len(scoped) == 0 {
		return 0, nil
	}

	points, err := concurrent.ParallelMap(ctx, scoped,
		func(ctx context.Context, m model.Memory) (vector.Point, error) {
			vec, err := lt.embedder.Embed(ctx, m.Content)
			if err != nil {
				return vector.Point{}, fmt.Errorf("embed memory %d: %w", m.ID, err)
			}
			return vector.Point{
				ID:     m.ID,
				Vector: vec,
				Payload: vector.Payload{
					UserID:     m.UserID,
					MemoryID:   m.ID,
					ProjectID:  m.ProjectID,
					MemoryType: string(m.MemoryType),
				},
			}, nil
		}, reindexConcurrency)
	if err != nil {
		return 0, err
	}

	if err := lt.index.DeleteByFilter(ctx, vector.Filter{UserID: userID, ProjectID: projectID}); err != nil {
		lt.logger.Warn("stale vector cleanup failed before reindex", zap.Error(err))
	}
	for _, p := range points {
		if err := lt.index.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("longterm: reindex upsert %d: %w", p.ID, err)
		}
	}
	return len(points), nil
}

const reindexConcurrency = 4

func (lt *LongTermStore) AddGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	if g.Title == "" {
		return model.Goal{}, errors.New("longterm: goal title is empty")
	}
	return lt.db.InsertGoal(ctx, g)
}

func (lt *LongTermStore) ListGoals(ctx context.Context, userID int64) ([]model.Goal, error) {
	return lt.db.ListGoals(ctx, userID)
}

func (lt *LongTermStore) UpdateGoal(ctx context.Context, id int64, upd model.GoalUpdate) error {
	return lt.db.UpdateGoal(ctx, id, upd)
}

func (lt *LongTermStore) CompleteGoal(ctx context.Context, id int64) error {
	status := model.GoalCompleted
	return lt.db.UpdateGoal(ctx, id, model.GoalUpdate{Status: &status})
}

func (lt *LongTermStore) CancelGoal(ctx context.Context, id int64) error {
	status := model.GoalCancelled
	return lt.db.UpdateGoal(ctx, id, model.GoalUpdate{Status: &status})
}

// SetPreference records a preference, overwriting any existing value for
// the same key.
func (lt *LongTermStore) SetPreference(ctx context.Context, p model.Preference) (model.Preference, error) {
	if p.Key == "" {
		return model.Preference{}, errors.New("longterm: preference key is empty")
	}
	return lt.db.UpsertPreference(ctx, p)
}

func (lt *LongTermStore) GetPreference(ctx context.Context, userID int64, key string) (model.Preference, error) {
	return lt.db.GetPreference(ctx, userID, key)
}

func (lt *LongTermStore) ListPreferences(ctx context.Context, userID int64) ([]model.Preference, error) {
	return lt.db.ListPreferences(ctx, userID)
}

func (lt *LongTermStore) AddProject(ctx context.Context, p model.Project) (model.Project, error) {
	if p.Name == "" {
		return model.Project{}, errors.New("longterm: project name is empty")
	}
	return lt.db.InsertProject(ctx, p)
}

func (lt *LongTermStore) ListProjects(ctx context.Context, userID int64) ([]model.Project, error) {
	return lt.db.ListProjects(ctx, userID)
}

func (lt *LongTermStore) UpdateProject(ctx context.Context, id int64, upd model.ProjectUpdate) error {
	return lt.db.UpdateProject(ctx, id, upd)
}
