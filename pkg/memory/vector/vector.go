// Package vector adapts external vector indexes for the long-term store.
// Points are keyed by the relational memory id; payloads carry just enough
// to filter by user and project. The index is a mirror, never the source
// of truth: retrieval re-resolves ids against the relational store.
package vector

import "context"

// Payload identifies the memory a vector belongs to for later filtering.
type Payload struct {
	UserID     int64  `json:"user_id"`
	MemoryID   int64  `json:"memory_id"`
	ProjectID  string `json:"project_id"`
	MemoryType string `json:"memory_type"`
}

// Point is one embedding keyed by the memory id it mirrors.
type Point struct {
	ID      int64
	Vector  []float32
	Payload Payload
}

// Filter is a conjunction of exact-match conditions. Both fields are
// always set by the long-term store.
type Filter struct {
	UserID    int64
	ProjectID string
}

// Hit is a search result: membership plus similarity score. Callers decide
// ordering; the long-term store deliberately re-orders by recency.
type Hit struct {
	ID      int64
	Score   float64
	Payload Payload
}

// Index is the vector backend capability the long-term store consumes.
type Index interface {
	Upsert(ctx context.Context, p Point) error
	Search(ctx context.Context, vector []float32, limit int, f Filter) ([]Hit, error)
	Delete(ctx context.Context, ids []int64) error
	DeleteByFilter(ctx context.Context, f Filter) error
}
