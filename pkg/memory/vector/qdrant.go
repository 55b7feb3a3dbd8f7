package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Time   float64      `json:"time"`
	Result T            `json:"result"`
}

type qdrantScoredPoint struct {
	ID      int64          `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type qdrantCollectionList struct {
	Collections []struct {
		Name string `json:"name"`
	} `json:"collections"`
}

// QdrantIndex talks to Qdrant over its HTTP API.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrantIndex creates a Qdrant-backed Index.
func NewQdrantIndex(baseURL, collection, apiKey string) *QdrantIndex {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if collection == "" {
		collection = "engram_memories"
	}
	return &QdrantIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// EnsureCollection creates the cosine collection when missing. Idempotent.
func (qi *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if qi == nil {
		return errors.New("nil qdrant index")
	}
	if dimension <= 0 {
		dimension = 768
	}
	var list qdrantEnvelope[qdrantCollectionList]
	if err := qi.do(ctx, http.MethodGet, "/collections", nil, &list); err != nil {
		return err
	}
	for _, c := range list.Result.Collections {
		if c.Name == qi.collection {
			return nil
		}
	}
	req := map[string]any{
		"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
	}
	var resp qdrantEnvelope[json.RawMessage]
	err := qi.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(qi.collection), req, &resp)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	return err
}

// Upsert writes one point keyed by the memory id.
func (qi *QdrantIndex) Upsert(ctx context.Context, p Point) error {
	if qi == nil {
		return errors.New("nil qdrant index")
	}
	req := map[string]any{
		"points": []map[string]any{{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}},
	}
	var resp qdrantEnvelope[json.RawMessage]
	if err := qi.do(ctx, http.MethodPut, qi.pointsPath(""), req, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		return errors.New(resp.Status.Error)
	}
	return nil
}

// Search runs a similarity query constrained to one user and project.
func (qi *QdrantIndex) Search(ctx context.Context, vec []float32, limit int, f Filter) ([]Hit, error) {
	if qi == nil {
		return nil, errors.New("nil qdrant index")
	}
	if limit <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
		"filter":       qdrantFilter(f),
	}
	var resp qdrantEnvelope[[]qdrantScoredPoint]
	if err := qi.do(ctx, http.MethodPost, qi.pointsPath("/search"), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, point := range resp.Result {
		hits = append(hits, Hit{
			ID:      point.ID,
			Score:   point.Score,
			Payload: payloadFromMap(point.Payload),
		})
	}
	return hits, nil
}

// Delete removes points by memory id.
func (qi *QdrantIndex) Delete(ctx context.Context, ids []int64) error {
	if qi == nil || len(ids) == 0 {
		return nil
	}
	req := map[string]any{"points": ids}
	return qi.do(ctx, http.MethodPost, qi.pointsPath("/delete"), req, nil)
}

// DeleteByFilter removes every point matching the filter.
func (qi *QdrantIndex) DeleteByFilter(ctx context.Context, f Filter) error {
	if qi == nil {
		return nil
	}
	req := map[string]any{"filter": qdrantFilter(f)}
	return qi.do(ctx, http.MethodPost, qi.pointsPath("/delete"), req, nil)
}

func (qi *QdrantIndex) pointsPath(suffix string) string {
	return fmt.Sprintf("/collections/%s/points%s", url.PathEscape(qi.collection), suffix)
}

func (qi *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	u := qi.baseURL + path

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if qi.apiKey != "" {
		req.Header.Set("api-key", qi.apiKey)
	}
	resp, err := qi.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant %s %s -> http %d: %s",
			method, u, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return err
		}
	}
	return nil
}

func qdrantFilter(f Filter) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "user_id", "match": map[string]any{"value": f.UserID}},
			{"key": "project_id", "match": map[string]any{"value": f.ProjectID}},
		},
	}
}

func payloadFromMap(m map[string]any) Payload {
	var p Payload
	if m == nil {
		return p
	}
	if v, ok := m["user_id"].(float64); ok {
		p.UserID = int64(v)
	}
	if v, ok := m["memory_id"].(float64); ok {
		p.MemoryID = int64(v)
	}
	if v, ok := m["project_id"].(string); ok {
		p.ProjectID = v
	}
	if v, ok := m["memory_type"].(string); ok {
		p.MemoryType = v
	}
	return p
}

var _ Index = (*QdrantIndex)(nil)
