package embed

import (
	"context"
	"testing"
)

func TestDummyEmbeddingDeterministic(t *testing.T) {
	first := DummyEmbedding("hello")
	second := DummyEmbedding("hello")
	if len(first) != 768 {
		t.Fatalf("expected embedding length 768, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected deterministic output, mismatch at index %d", i)
		}
	}
}

func TestDummyEmbedderNeverFails(t *testing.T) {
	vec, err := DummyEmbedder{}.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 768 {
		t.Fatalf("expected 768 dims, got %d", len(vec))
	}
}

func TestForProviderUnknown(t *testing.T) {
	if _, err := ForProvider("carrier-pigeon", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestForProviderNone(t *testing.T) {
	e, err := ForProvider("", "")
	if err != nil || e != nil {
		t.Fatalf("empty provider should mean no embedder, got %v / %v", e, err)
	}
}
