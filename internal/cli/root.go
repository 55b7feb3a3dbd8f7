// Package cli implements the engram command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engram-labs/engram/pkg/config"
	"github.com/engram-labs/engram/pkg/memory/embed"
	"github.com/engram-labs/engram/pkg/memory/index"
	"github.com/engram-labs/engram/pkg/memory/longterm"
	"github.com/engram-labs/engram/pkg/memory/store"
	"github.com/engram-labs/engram/pkg/memory/vector"
)

var (
	flagUserID    int64
	flagUsername  string
	flagProjectID string
	flagInMemory  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Conversational agent memory",
	Long:  "engram layers short-term conversation buffers over durable, vector-indexed long-term memory.",
}

func init() {
	RootCmd.PersistentFlags().Int64Var(&flagUserID, "user", 1, "User id")
	RootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "Display name for the user")
	RootCmd.PersistentFlags().StringVar(&flagProjectID, "project", "default", "Project id scoping memories")
	RootCmd.PersistentFlags().BoolVar(&flagInMemory, "in-memory", false, "Use an in-process store instead of Postgres")
}

// runtimeDeps is everything a command needs to touch memory.
type runtimeDeps struct {
	cfg      config.Config
	logger   *zap.Logger
	db       store.Store
	longTerm *longterm.LongTermStore
	index    *index.Index
	close    func()
}

func openDeps(ctx context.Context) (*runtimeDeps, error) {
	cfg := config.Load()
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	var (
		db      store.Store
		cleanup = func() {}
	)
	switch {
	case flagInMemory:
		db = store.NewInMemoryStore()
	case cfg.Mongo.URI != "":
		mg, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		db = mg
		cleanup = func() { _ = mg.Close() }
	default:
		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		db = pg
		cleanup = func() { _ = pg.Close() }
	}

	opts := []longterm.Option{
		longterm.WithLogger(logger),
		longterm.WithTopResults(cfg.Memory.LongTermTopResults),
	}
	embedder, err := embed.ForProvider(cfg.Embeddings.Provider, cfg.Embeddings.Model)
	if err != nil {
		logger.Warn("embedder unavailable, retrieval falls back to importance ranking", zap.Error(err))
	}
	if embedder != nil {
		var idx vector.Index
		switch cfg.VectorBackend {
		case "chromem":
			idx, err = vector.NewChromemIndex()
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("chromem: %w", err)
			}
		case "none":
		default:
			idx = vector.NewQdrantIndex(cfg.Qdrant.URL, cfg.Qdrant.Collection, cfg.Qdrant.APIKey)
		}
		if idx != nil {
			opts = append(opts, longterm.WithEmbedder(embedder), longterm.WithVectorIndex(idx))
		}
	}

	lt, err := longterm.New(db, opts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	ix, err := index.New(lt,
		index.WithShortTermLimits(cfg.Memory.ShortTermTokenLimit, cfg.Memory.ShortTermMaxMessages),
		index.WithLogger(logger))
	if err != nil {
		cleanup()
		return nil, err
	}

	return &runtimeDeps{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		longTerm: lt,
		index:    ix,
		close: func() {
			cleanup()
			_ = logger.Sync()
		},
	}, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
