package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/engram-labs/engram/pkg/memory/model"
)

// InMemoryStore is a map-backed Store for tests and throwaway runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	memories    map[int64]model.Memory
	goals       map[int64]model.Goal
	preferences map[int64]model.Preference
	projects    map[int64]model.Project
	// clock is overridable so tests can control created_at ordering.
	clock func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memories:    make(map[int64]model.Memory),
		goals:       make(map[int64]model.Goal),
		preferences: make(map[int64]model.Preference),
		projects:    make(map[int64]model.Project),
		clock:       time.Now,
	}
}

// WithClock overrides the time source. Test helper.
func (s *InMemoryStore) WithClock(clock func() time.Time) *InMemoryStore {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *InMemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) InsertMemory(_ context.Context, m model.Memory) (model.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	m.ID = s.allocID()
	m.Importance = model.ClampImportance(m.Importance)
	m.RetrievalCount = 0
	m.LastRetrievedAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now
	s.memories[m.ID] = m
	return m, nil
}

func (s *InMemoryStore) MemoriesByIDs(_ context.Context, userID int64, projectID string, ids []int64) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Memory
	for _, id := range ids {
		m, ok := s.memories[id]
		if !ok || m.UserID != userID || m.ProjectID != projectID {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) TopMemories(_ context.Context, userID int64, projectID string, limit int) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Memory
	for _, m := range s.memories {
		if m.UserID == userID && m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListMemories(_ context.Context, userID int64) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Memory
	for _, m := range s.memories {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SearchMemories(_ context.Context, userID int64, keyword string) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(keyword)
	var out []model.Memory
	for _, m := range s.memories {
		if m.UserID == userID && strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateMemory(_ context.Context, id int64, upd model.MemoryUpdate) error {
	if upd.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Content != nil {
		m.Content = *upd.Content
	}
	if upd.MemoryType != nil {
		m.MemoryType = *upd.MemoryType
	}
	if upd.Importance != nil {
		m.Importance = model.ClampImportance(*upd.Importance)
	}
	if upd.Tags != nil {
		m.Tags = append([]string(nil), (*upd.Tags)...)
	}
	m.UpdatedAt = s.clock()
	s.memories[id] = m
	return nil
}

func (s *InMemoryStore) DeleteMemory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[id]; !ok {
		return ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func (s *InMemoryStore) DeleteMemoriesByKeyword(_ context.Context, userID int64, keyword string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(keyword)
	var ids []int64
	for id, m := range s.memories {
		if m.UserID == userID && strings.Contains(strings.ToLower(m.Content), needle) {
			ids = append(ids, id)
			delete(s.memories, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *InMemoryStore) MarkRetrieved(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for _, id := range ids {
		m, ok := s.memories[id]
		if !ok {
			continue
		}
		m.RetrievalCount++
		m.LastRetrievedAt = &now
		s.memories[id] = m
	}
	return nil
}

func (s *InMemoryStore) InsertGoal(_ context.Context, g model.Goal) (model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	g.ID = s.allocID()
	if g.Status == "" {
		g.Status = model.GoalActive
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	s.goals[g.ID] = g
	return g, nil
}

func (s *InMemoryStore) ListGoals(_ context.Context, userID int64) ([]model.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) UpdateGoal(_ context.Context, id int64, upd model.GoalUpdate) error {
	if upd.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Title != nil {
		g.Title = *upd.Title
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	if upd.Status != nil {
		g.Status = *upd.Status
	}
	if upd.Priority != nil {
		g.Priority = *upd.Priority
	}
	if upd.TargetDate != nil {
		t := *upd.TargetDate
		g.TargetDate = &t
	}
	g.UpdatedAt = s.clock()
	s.goals[id] = g
	return nil
}

func (s *InMemoryStore) UpsertPreference(_ context.Context, p model.Preference) (model.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for id, existing := range s.preferences {
		if existing.UserID == p.UserID && existing.Key == p.Key {
			existing.Value = p.Value
			existing.Category = p.Category
			existing.UpdatedAt = now
			s.preferences[id] = existing
			return existing, nil
		}
	}
	p.ID = s.allocID()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.preferences[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) ListPreferences(_ context.Context, userID int64) ([]model.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Preference
	for _, p := range s.preferences {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *InMemoryStore) GetPreference(_ context.Context, userID int64, key string) (model.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.preferences {
		if p.UserID == userID && p.Key == key {
			return p, nil
		}
	}
	return model.Preference{}, ErrNotFound
}

func (s *InMemoryStore) InsertProject(_ context.Context, p model.Project) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	p.ID = s.allocID()
	if p.Status == "" {
		p.Status = model.ProjectActive
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	s.projects[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) ListProjects(_ context.Context, userID int64) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateProject(_ context.Context, id int64, upd model.ProjectUpdate) error {
	if upd.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.TechStack != nil {
		p.TechStack = append([]string(nil), (*upd.TechStack)...)
	}
	if upd.RepositoryURL != nil {
		p.RepositoryURL = *upd.RepositoryURL
	}
	p.UpdatedAt = s.clock()
	s.projects[id] = p
	return nil
}

var _ Store = (*InMemoryStore)(nil)
