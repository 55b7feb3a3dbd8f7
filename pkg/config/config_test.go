package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("SHORT_TERM_TOKEN_LIMIT", "")

	c := Load()
	if c.Postgres.Host != "localhost" || c.Postgres.Port != 5432 {
		t.Fatalf("postgres defaults wrong: %+v", c.Postgres)
	}
	if c.Memory.ShortTermTokenLimit != 4000 || c.Memory.ShortTermMaxMessages != 20 {
		t.Fatalf("memory defaults wrong: %+v", c.Memory)
	}
	if c.Memory.LongTermTopResults != 5 {
		t.Fatalf("top results default wrong: %d", c.Memory.LongTermTopResults)
	}
	if c.Embeddings.Dimension != 768 {
		t.Fatalf("embedding dimension default wrong: %d", c.Embeddings.Dimension)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHORT_TERM_TOKEN_LIMIT", "128")
	t.Setenv("QDRANT_COLLECTION", "custom")

	c := Load()
	if c.Memory.ShortTermTokenLimit != 128 {
		t.Fatalf("token limit override ignored: %d", c.Memory.ShortTermTokenLimit)
	}
	if c.Qdrant.Collection != "custom" {
		t.Fatalf("collection override ignored: %q", c.Qdrant.Collection)
	}
}

func TestEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("SHORT_TERM_MAX_MESSAGES", "lots")
	c := Load()
	if c.Memory.ShortTermMaxMessages != 20 {
		t.Fatalf("garbage int should fall back to default, got %d", c.Memory.ShortTermMaxMessages)
	}
}

func TestModelDefaultsFollowProvider(t *testing.T) {
	t.Setenv("DEFAULT_MODEL_PROVIDER", "openai")
	t.Setenv("DEFAULT_MODEL", "")
	t.Setenv("OPENAI_DEFAULT_MODEL", "")

	c := Load()
	if c.Model.Model != "gpt-4-turbo-preview" {
		t.Fatalf("openai default model = %q", c.Model.Model)
	}

	t.Setenv("DEFAULT_MODEL", "gpt-4o-mini")
	c = Load()
	if c.Model.Model != "gpt-4o-mini" {
		t.Fatalf("DEFAULT_MODEL override ignored: %q", c.Model.Model)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, Database: "engram", User: "u", Password: "pw"}
	want := "postgres://u:pw@db:5433/engram"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}
