package longterm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/engram-labs/engram/pkg/memory/embed"
	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/memory/store"
	"github.com/engram-labs/engram/pkg/memory/vector"
)

// fakeIndex scripts Search results and records deletes.
type fakeIndex struct {
	hits       []vector.Hit
	searchErr  error
	upsertErr  error
	upserted   []vector.Point
	deletedIDs []int64
}

func (f *fakeIndex) Upsert(_ context.Context, p vector.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakeIndex) Search(context.Context, []float32, int, vector.Filter) ([]vector.Hit, error) {
	return f.hits, f.searchErr
}

func (f *fakeIndex) Delete(_ context.Context, ids []int64) error {
	f.deletedIDs = append(f.deletedIDs, ids...)
	return nil
}

func (f *fakeIndex) DeleteByFilter(context.Context, vector.Filter) error { return nil }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func tickingStore() *store.InMemoryStore {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return store.NewInMemoryStore().WithClock(func() time.Time {
		base = base.Add(time.Second)
		return base
	})
}

func seedMemories(t *testing.T, lt *LongTermStore, contents ...string) []model.Memory {
	t.Helper()
	out := make([]model.Memory, 0, len(contents))
	for i, c := range contents {
		m, _, err := lt.StoreMemory(context.Background(), model.Memory{
			UserID: 1, ProjectID: "p", Content: c,
			MemoryType: model.MemoryExplicit, Importance: i + 1,
		})
		if err != nil {
			t.Fatalf("seed %q: %v", c, err)
		}
		out = append(out, m)
	}
	return out
}

func TestStoreMemoryWithEmbedding(t *testing.T) {
	idx := &fakeIndex{}
	lt, err := New(tickingStore(),
		WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	saved, outcome, err := lt.StoreMemory(context.Background(), model.Memory{
		UserID: 1, ProjectID: "p", Content: "likes table tests", Importance: 3,
	})
	if err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}
	if outcome != StoredWithEmbedding {
		t.Fatalf("outcome = %v, want StoredWithEmbedding", outcome)
	}
	if saved.MemoryType != model.MemoryExplicit {
		t.Fatalf("default memory type = %q", saved.MemoryType)
	}
	if len(idx.upserted) != 1 || idx.upserted[0].Payload.MemoryID != saved.ID {
		t.Fatalf("index not mirrored: %+v", idx.upserted)
	}
}

func TestStoreMemorySurvivesEmbedderFailure(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(failingEmbedder{}))

	saved, outcome, err := lt.StoreMemory(context.Background(), model.Memory{
		UserID: 1, ProjectID: "p", Content: "still worth keeping", Importance: 2,
	})
	if err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}
	if outcome != StoredWithoutEmbedding {
		t.Fatalf("outcome = %v, want StoredWithoutEmbedding", outcome)
	}
	got, err := lt.ListMemories(context.Background(), 1)
	if err != nil || len(got) != 1 || got[0].ID != saved.ID {
		t.Fatalf("relational row missing: %+v, %v", got, err)
	}
}

func TestStoreMemorySurvivesUpsertFailure(t *testing.T) {
	idx := &fakeIndex{upsertErr: errors.New("qdrant unavailable")}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))

	_, outcome, err := lt.StoreMemory(context.Background(), model.Memory{
		UserID: 1, ProjectID: "p", Content: "x", Importance: 1,
	})
	if err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}
	if outcome != StoredWithoutEmbedding {
		t.Fatalf("outcome = %v, want StoredWithoutEmbedding", outcome)
	}
}

func TestStoreMemoryRejectsEmptyContent(t *testing.T) {
	lt, _ := New(tickingStore())
	if _, _, err := lt.StoreMemory(context.Background(), model.Memory{UserID: 1}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestRetrieveWithoutIndexUsesImportanceRanking(t *testing.T) {
	lt, _ := New(tickingStore(), WithTopResults(2))
	seeded := seedMemories(t, lt, "low", "mid", "high")

	got, err := lt.RetrieveMemories(context.Background(), 1, "p", "anything")
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d memories, want 2", len(got))
	}
	if got[0].ID != seeded[2].ID || got[1].ID != seeded[1].ID {
		t.Fatalf("expected importance order, got %d, %d", got[0].ID, got[1].ID)
	}
}

func TestRetrieveFallsBackOnSearchError(t *testing.T) {
	idx := &fakeIndex{searchErr: errors.New("timeout")}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seedMemories(t, lt, "a", "b")

	got, err := lt.RetrieveMemories(context.Background(), 1, "p", "query")
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fallback returned %d memories, want 2", len(got))
	}
}

func TestRetrieveFallsBackOnZeroHits(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seedMemories(t, lt, "a")

	got, err := lt.RetrieveMemories(context.Background(), 1, "p", "query")
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("fallback returned %d memories, want 1", len(got))
	}
}

func TestRetrieveResolvesHitsNewestFirstAndDropsDeleted(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seeded := seedMemories(t, lt, "older", "newer")

	// Similarity order lists the older memory first, plus an id whose row
	// is gone. The database decides the final shape.
	idx.hits = []vector.Hit{
		{ID: seeded[0].ID, Score: 0.99},
		{ID: seeded[1].ID, Score: 0.42},
		{ID: 9999, Score: 0.9},
	}

	got, err := lt.RetrieveMemories(context.Background(), 1, "p", "query")
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d memories, want 2", len(got))
	}
	if got[0].ID != seeded[1].ID || got[1].ID != seeded[0].ID {
		t.Fatalf("expected newest first, got %d, %d", got[0].ID, got[1].ID)
	}
}

func TestRetrieveMarksRetrieved(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seeded := seedMemories(t, lt, "tracked")
	idx.hits = []vector.Hit{{ID: seeded[0].ID, Score: 0.8}}

	if _, err := lt.RetrieveMemories(context.Background(), 1, "p", "query"); err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	got, _ := lt.ListMemories(context.Background(), 1)
	if got[0].RetrievalCount != 1 {
		t.Fatalf("retrieval count = %d, want 1", got[0].RetrievalCount)
	}
}

func TestRetrieveMarksRetrievedOnFallback(t *testing.T) {
	lt, _ := New(tickingStore())
	seedMemories(t, lt, "db only")

	if _, err := lt.RetrieveMemories(context.Background(), 1, "p", "query"); err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	got, _ := lt.ListMemories(context.Background(), 1)
	if got[0].RetrievalCount != 1 {
		t.Fatalf("retrieval count = %d, want 1", got[0].RetrievalCount)
	}
	if got[0].LastRetrievedAt == nil {
		t.Fatal("last retrieved timestamp not stamped")
	}

	// Same bookkeeping when the index exists but has no hits.
	idx := &fakeIndex{}
	lt2, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seedMemories(t, lt2, "unindexed")
	if _, err := lt2.RetrieveMemories(context.Background(), 1, "p", "query"); err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	got2, _ := lt2.ListMemories(context.Background(), 1)
	if got2[0].RetrievalCount != 1 {
		t.Fatalf("retrieval count after zero-hit fallback = %d, want 1", got2[0].RetrievalCount)
	}
}

func TestForgetMemoriesCleansIndex(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seeded := seedMemories(t, lt, "likes rust macros", "likes go generics")

	n, err := lt.ForgetMemories(context.Background(), 1, "rust")
	if err != nil {
		t.Fatalf("ForgetMemories: %v", err)
	}
	if n != 1 {
		t.Fatalf("forgot %d memories, want 1", n)
	}
	if len(idx.deletedIDs) != 1 || idx.deletedIDs[0] != seeded[0].ID {
		t.Fatalf("index not cleaned: %v", idx.deletedIDs)
	}
}

func TestReindexMemoriesRebuildsProject(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seedMemories(t, lt, "a", "b", "c")
	idx.upserted = nil

	n, err := lt.ReindexMemories(context.Background(), 1, "p")
	if err != nil {
		t.Fatalf("ReindexMemories: %v", err)
	}
	if n != 3 || len(idx.upserted) != 3 {
		t.Fatalf("reindexed %d memories, upserted %d, want 3", n, len(idx.upserted))
	}
}

func TestReindexMemoriesAbortsOnEmbedFailure(t *testing.T) {
	idx := &fakeIndex{}
	lt, _ := New(tickingStore(), WithVectorIndex(idx), WithEmbedder(embed.DummyEmbedder{}))
	seedMemories(t, lt, "a", "b")

	lt.embedder = failingEmbedder{}
	if _, err := lt.ReindexMemories(context.Background(), 1, "p"); err == nil {
		t.Fatal("expected error when embedding fails during reindex")
	}
}

func TestReindexMemoriesRequiresIndex(t *testing.T) {
	lt, _ := New(tickingStore())
	if _, err := lt.ReindexMemories(context.Background(), 1, "p"); err == nil {
		t.Fatal("expected error without vector index")
	}
}

func TestGoalStatusTransitions(t *testing.T) {
	lt, _ := New(tickingStore())
	ctx := context.Background()

	g, err := lt.AddGoal(ctx, model.Goal{UserID: 1, Title: "learn zig", Priority: 1})
	if err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if err := lt.CompleteGoal(ctx, g.ID); err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	goals, _ := lt.ListGoals(ctx, 1)
	if goals[0].Status != model.GoalCompleted {
		t.Fatalf("status = %q, want completed", goals[0].Status)
	}

	g2, _ := lt.AddGoal(ctx, model.Goal{UserID: 1, Title: "abandoned", Priority: 1})
	if err := lt.CancelGoal(ctx, g2.ID); err != nil {
		t.Fatalf("CancelGoal: %v", err)
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	lt, _ := New(tickingStore())
	ctx := context.Background()

	if _, err := lt.SetPreference(ctx, model.Preference{UserID: 1, Key: "lang", Value: "go"}); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if _, err := lt.SetPreference(ctx, model.Preference{UserID: 1, Key: "lang", Value: "rust"}); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	got, err := lt.GetPreference(ctx, 1, "lang")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if got.Value != "rust" {
		t.Fatalf("value = %q, want rust", got.Value)
	}
	if _, err := lt.SetPreference(ctx, model.Preference{UserID: 1}); err == nil {
		t.Fatal("expected error for empty key")
	}
}
