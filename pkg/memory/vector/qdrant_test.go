package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQdrantStatusUnmarshalString(t *testing.T) {
	var s qdrantStatus
	if err := json.Unmarshal([]byte(`"OK"`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != "ok" || s.Error != "" {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestQdrantStatusUnmarshalErrorObject(t *testing.T) {
	var s qdrantStatus
	if err := json.Unmarshal([]byte(`{"error":"boom"}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != "error" || s.Error != "boom" {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestQdrantSearchSendsFilterAndParsesHits(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/engram_memories/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": []map[string]any{
				{"id": 7, "score": 0.91, "payload": map[string]any{
					"user_id": 1, "memory_id": 7, "project_id": "default", "memory_type": "explicit",
				}},
				{"id": 3, "score": 0.42, "payload": map[string]any{
					"user_id": 1, "memory_id": 3, "project_id": "default", "memory_type": "reflection",
				}},
			},
		})
	}))
	defer srv.Close()

	qi := NewQdrantIndex(srv.URL, "", "")
	hits, err := qi.Search(context.Background(), []float32{0.1, 0.2}, 5, Filter{UserID: 1, ProjectID: "default"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != 7 || hits[1].ID != 3 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits[0].Payload.MemoryType != "explicit" {
		t.Fatalf("payload not parsed: %+v", hits[0].Payload)
	}

	filter, _ := captured["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("expected user_id and project_id conditions, got %v", filter)
	}
}

func TestQdrantUpsertSurfacesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": map[string]any{"error": "wrong vector size"}})
	}))
	defer srv.Close()

	qi := NewQdrantIndex(srv.URL, "", "")
	err := qi.Upsert(context.Background(), Point{ID: 1, Vector: []float32{1}})
	if err == nil {
		t.Fatalf("expected error from 400 response")
	}
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	created := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "ok",
				"result": map[string]any{"collections": []map[string]any{{"name": "engram_memories"}}},
			})
		case r.Method == http.MethodPut:
			created = true
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		}
	}))
	defer srv.Close()

	qi := NewQdrantIndex(srv.URL, "", "")
	if err := qi.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}
	if created {
		t.Fatalf("existing collection should not be recreated")
	}
}

func TestDeleteNoopOnEmptyIDs(t *testing.T) {
	qi := NewQdrantIndex("http://localhost:1", "", "")
	if err := qi.Delete(context.Background(), nil); err != nil {
		t.Fatalf("empty delete should be a no-op, got %v", err)
	}
}
