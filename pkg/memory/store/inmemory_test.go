package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/engram-labs/engram/pkg/memory/model"
)

func tickingClock() func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestInsertMemoryAssignsIDsAndClampsImportance(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first, err := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "a", MemoryType: model.MemoryExplicit, Importance: 9})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, err := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "b", MemoryType: model.MemoryExplicit, Importance: -4})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == 0 || second.ID != first.ID+1 {
		t.Fatalf("expected sequential ids, got %d and %d", first.ID, second.ID)
	}
	if first.Importance != 5 || second.Importance != 1 {
		t.Fatalf("importance not clamped: %d, %d", first.Importance, second.Importance)
	}
}

func TestMemoriesByIDsScopesAndDropsMissing(t *testing.T) {
	s := NewInMemoryStore().WithClock(tickingClock())
	ctx := context.Background()

	mine, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "mine", MemoryType: model.MemoryExplicit, Importance: 3})
	other, _ := s.InsertMemory(ctx, model.Memory{UserID: 2, ProjectID: "p", Content: "other user", MemoryType: model.MemoryExplicit, Importance: 3})

	got, err := s.MemoriesByIDs(ctx, 1, "p", []int64{mine.ID, other.ID, 9999})
	if err != nil {
		t.Fatalf("MemoriesByIDs: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("expected only own memory, got %+v", got)
	}
}

func TestTopMemoriesOrdering(t *testing.T) {
	s := NewInMemoryStore().WithClock(tickingClock())
	ctx := context.Background()

	low, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "low", MemoryType: model.MemoryExplicit, Importance: 1})
	oldHigh, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "old high", MemoryType: model.MemoryExplicit, Importance: 5})
	newHigh, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "new high", MemoryType: model.MemoryExplicit, Importance: 5})

	got, err := s.TopMemories(ctx, 1, "p", 2)
	if err != nil {
		t.Fatalf("TopMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(got))
	}
	if got[0].ID != newHigh.ID || got[1].ID != oldHigh.ID {
		t.Fatalf("expected importance then recency ordering, got %d, %d", got[0].ID, got[1].ID)
	}
	_ = low
}

func TestUpdateMemorySparseFields(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	m, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "before", MemoryType: model.MemoryExplicit, Importance: 2})

	content := "after"
	if err := s.UpdateMemory(ctx, m.ID, model.MemoryUpdate{Content: &content}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.MemoriesByIDs(ctx, 1, "p", []int64{m.ID})
	if got[0].Content != "after" {
		t.Fatalf("content not updated: %q", got[0].Content)
	}
	if got[0].Importance != 2 {
		t.Fatalf("untouched field changed: %d", got[0].Importance)
	}

	if err := s.UpdateMemory(ctx, 9999, model.MemoryUpdate{Content: &content}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMemoriesByKeywordReturnsIDs(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	hit, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "prefers Go for CLIs", MemoryType: model.MemoryExplicit, Importance: 3})
	miss, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "has a cat", MemoryType: model.MemoryExplicit, Importance: 3})

	ids, err := s.DeleteMemoriesByKeyword(ctx, 1, "go")
	if err != nil {
		t.Fatalf("delete by keyword: %v", err)
	}
	if len(ids) != 1 || ids[0] != hit.ID {
		t.Fatalf("expected [%d], got %v", hit.ID, ids)
	}
	left, _ := s.ListMemories(ctx, 1)
	if len(left) != 1 || left[0].ID != miss.ID {
		t.Fatalf("wrong survivor: %+v", left)
	}
}

func TestMarkRetrievedBumpsCount(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	m, _ := s.InsertMemory(ctx, model.Memory{UserID: 1, ProjectID: "p", Content: "x", MemoryType: model.MemoryExplicit, Importance: 3})
	if err := s.MarkRetrieved(ctx, []int64{m.ID}); err != nil {
		t.Fatalf("MarkRetrieved: %v", err)
	}
	got, _ := s.MemoriesByIDs(ctx, 1, "p", []int64{m.ID})
	if got[0].RetrievalCount != 1 {
		t.Fatalf("retrieval count = %d, want 1", got[0].RetrievalCount)
	}
	if got[0].LastRetrievedAt == nil {
		t.Fatal("last retrieved timestamp not set")
	}
}

func TestUpsertPreferenceOverwritesByKey(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first, err := s.UpsertPreference(ctx, model.Preference{UserID: 1, Key: "editor", Value: "vim", Category: "tools"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := s.UpsertPreference(ctx, model.Preference{UserID: 1, Key: "editor", Value: "helix", Category: "tools"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a new row: %d != %d", second.ID, first.ID)
	}
	all, _ := s.ListPreferences(ctx, 1)
	if len(all) != 1 || all[0].Value != "helix" {
		t.Fatalf("expected single overwritten preference, got %+v", all)
	}

	got, err := s.GetPreference(ctx, 1, "editor")
	if err != nil || got.Value != "helix" {
		t.Fatalf("GetPreference = %+v, %v", got, err)
	}
	if _, err := s.GetPreference(ctx, 1, "shell"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGoalLifecycle(t *testing.T) {
	s := NewInMemoryStore().WithClock(tickingClock())
	ctx := context.Background()

	g, err := s.InsertGoal(ctx, model.Goal{UserID: 1, Title: "ship v1", Priority: 2})
	if err != nil {
		t.Fatalf("insert goal: %v", err)
	}
	if g.Status != model.GoalActive {
		t.Fatalf("default status = %q", g.Status)
	}

	done := model.GoalCompleted
	if err := s.UpdateGoal(ctx, g.ID, model.GoalUpdate{Status: &done}); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	goals, _ := s.ListGoals(ctx, 1)
	if len(goals) != 1 || goals[0].Status != model.GoalCompleted {
		t.Fatalf("goal not completed: %+v", goals)
	}
}

func TestListGoalsOrderedByPriority(t *testing.T) {
	s := NewInMemoryStore().WithClock(tickingClock())
	ctx := context.Background()

	s.InsertGoal(ctx, model.Goal{UserID: 1, Title: "minor", Priority: 1})
	urgent, _ := s.InsertGoal(ctx, model.Goal{UserID: 1, Title: "urgent", Priority: 5})

	goals, err := s.ListGoals(ctx, 1)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if goals[0].ID != urgent.ID {
		t.Fatalf("expected highest priority first, got %+v", goals[0])
	}
}

func TestProjectUpdateNotFound(t *testing.T) {
	s := NewInMemoryStore()
	name := "renamed"
	err := s.UpdateProject(context.Background(), 42, model.ProjectUpdate{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
