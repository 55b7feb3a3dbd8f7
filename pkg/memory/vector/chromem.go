package vector

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex is an embedded, pure-Go vector index. It serves
// single-process deployments and tests where no Qdrant is available.
type ChromemIndex struct {
	db  *chromem.DB
	col *chromem.Collection
	mu  sync.Mutex
}

// NewChromemIndex creates an in-process index. Embeddings are always
// supplied by the caller, so no embedding function is registered.
func NewChromemIndex() (*ChromemIndex, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection("memories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{db: db, col: col}, nil
}

func (ci *ChromemIndex) Upsert(ctx context.Context, p Point) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	doc := chromem.Document{
		ID:        strconv.FormatInt(p.ID, 10),
		Embedding: p.Vector,
		Content:   strconv.FormatInt(p.Payload.MemoryID, 10),
		Metadata: map[string]string{
			"user_id":     strconv.FormatInt(p.Payload.UserID, 10),
			"memory_id":   strconv.FormatInt(p.Payload.MemoryID, 10),
			"project_id":  p.Payload.ProjectID,
			"memory_type": p.Payload.MemoryType,
		},
	}
	if err := ci.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (ci *ChromemIndex) Search(ctx context.Context, vec []float32, limit int, f Filter) ([]Hit, error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	// chromem rejects nResults greater than the collection size.
	if n := ci.col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}
	where := map[string]string{
		"user_id":    strconv.FormatInt(f.UserID, 10),
		"project_id": f.ProjectID,
	}
	results, err := ci.col.QueryEmbedding(ctx, vec, limit, where, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{
			ID:    id,
			Score: float64(r.Similarity),
			Payload: Payload{
				UserID:     f.UserID,
				MemoryID:   id,
				ProjectID:  f.ProjectID,
				MemoryType: r.Metadata["memory_type"],
			},
		})
	}
	return hits, nil
}

func (ci *ChromemIndex) Delete(ctx context.Context, ids []int64) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	return ci.col.Delete(ctx, nil, nil, strIDs...)
}

func (ci *ChromemIndex) DeleteByFilter(ctx context.Context, f Filter) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	where := map[string]string{
		"user_id":    strconv.FormatInt(f.UserID, 10),
		"project_id": f.ProjectID,
	}
	return ci.col.Delete(ctx, where, nil)
}

var _ Index = (*ChromemIndex)(nil)
