package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engram-labs/engram/pkg/config"
	"github.com/engram-labs/engram/pkg/memory/store"
	"github.com/engram-labs/engram/pkg/memory/vector"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the Postgres schema and the Qdrant collection",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg := config.Load()

		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN())
		if err != nil {
			exitErr("postgres", err)
		}
		defer pg.Close()

		if err := pg.CreateSchema(ctx); err != nil {
			exitErr("create schema", err)
		}
		fmt.Println("postgres schema ready")

		idx := vector.NewQdrantIndex(cfg.Qdrant.URL, cfg.Qdrant.Collection, cfg.Qdrant.APIKey)
		if err := idx.EnsureCollection(ctx, cfg.Embeddings.Dimension); err != nil {
			exitErr("qdrant collection", err)
		}
		fmt.Printf("qdrant collection %q ready\n", cfg.Qdrant.Collection)
	},
}

func init() {
	RootCmd.AddCommand(initDBCmd)
}
