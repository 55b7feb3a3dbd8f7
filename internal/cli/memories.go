package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engram-labs/engram/pkg/memory/model"
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Inspect and manage long-term memories",
}

var memoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every memory stored for the user",
	Run: func(cmd *cobra.Command, _ []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		memories, err := deps.longTerm.ListMemories(cmd.Context(), flagUserID)
		if err != nil {
			exitErr("list memories", err)
		}
		printMemories(memories)
	},
}

var memoriesSearchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Keyword-search the user's memories",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		memories, err := deps.longTerm.SearchMemories(cmd.Context(), flagUserID, args[0])
		if err != nil {
			exitErr("search memories", err)
		}
		printMemories(memories)
	},
}

var memoriesForgetCmd = &cobra.Command{
	Use:   "forget <keyword>",
	Short: "Delete every memory matching the keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		n, err := deps.longTerm.ForgetMemories(cmd.Context(), flagUserID, args[0])
		if err != nil {
			exitErr("forget memories", err)
		}
		fmt.Printf("forgot %d memories\n", n)
	},
}

var memoriesRememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store an explicit memory",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		importance, _ := cmd.Flags().GetInt("importance")
		um := deps.index.User(flagUserID, flagUsername, flagProjectID)
		saved, _, err := um.StoreMemory(cmd.Context(), model.Memory{
			Content:    strings.Join(args, " "),
			MemoryType: model.MemoryExplicit,
			Importance: importance,
		})
		if err != nil {
			exitErr("store memory", err)
		}
		fmt.Printf("stored memory %d\n", saved.ID)
	},
}

var memoriesReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed the project's memories and rebuild the vector index",
	Run: func(cmd *cobra.Command, _ []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		n, err := deps.longTerm.ReindexMemories(cmd.Context(), flagUserID, flagProjectID)
		if err != nil {
			exitErr("reindex", err)
		}
		fmt.Printf("reindexed %d memories\n", n)
	},
}

func printMemories(memories []model.Memory) {
	if len(memories) == 0 {
		fmt.Println("no memories")
		return
	}
	for _, m := range memories {
		line := fmt.Sprintf("%6d  [%s/%d] %s", m.ID, m.MemoryType, m.Importance, m.Content)
		if len(m.Tags) > 0 {
			line += "  #" + strings.Join(m.Tags, " #")
		}
		fmt.Println(line)
	}
}

func init() {
	memoriesRememberCmd.Flags().Int("importance", 3, "Importance from 1 to 5")
	memoriesCmd.AddCommand(memoriesListCmd, memoriesSearchCmd, memoriesForgetCmd, memoriesRememberCmd, memoriesReindexCmd)
	RootCmd.AddCommand(memoriesCmd)
}
