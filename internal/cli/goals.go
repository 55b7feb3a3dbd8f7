package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engram-labs/engram/pkg/memory/model"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Track long-term goals",
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's goals by priority",
	Run: func(cmd *cobra.Command, _ []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		goals, err := deps.longTerm.ListGoals(cmd.Context(), flagUserID)
		if err != nil {
			exitErr("list goals", err)
		}
		if len(goals) == 0 {
			fmt.Println("no goals")
			return
		}
		for _, g := range goals {
			line := fmt.Sprintf("%6d  [%s/p%d] %s", g.ID, g.Status, g.Priority, g.Title)
			if g.Description != "" {
				line += " — " + g.Description
			}
			fmt.Println(line)
		}
	},
}

var goalsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add an active goal",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		priority, _ := cmd.Flags().GetInt("priority")
		description, _ := cmd.Flags().GetString("description")
		g, err := deps.longTerm.AddGoal(cmd.Context(), model.Goal{
			UserID:      flagUserID,
			Title:       strings.Join(args, " "),
			Description: description,
			Priority:    priority,
		})
		if err != nil {
			exitErr("add goal", err)
		}
		fmt.Printf("added goal %d\n", g.ID)
	},
}

func goalStatusCmd(use, short string, transition func(*runtimeDeps, *cobra.Command, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				exitErr("parse id", err)
			}
			deps, err := openDeps(cmd.Context())
			if err != nil {
				exitErr("startup", err)
			}
			defer deps.close()

			if err := transition(deps, cmd, id); err != nil {
				exitErr(use+" goal", err)
			}
			fmt.Printf("goal %d updated\n", id)
		},
	}
}

func init() {
	goalsAddCmd.Flags().Int("priority", 3, "Priority from 1 to 5")
	goalsAddCmd.Flags().String("description", "", "Optional description")

	completeCmd := goalStatusCmd("complete", "Mark a goal completed",
		func(deps *runtimeDeps, cmd *cobra.Command, id int64) error {
			return deps.longTerm.CompleteGoal(cmd.Context(), id)
		})
	cancelCmd := goalStatusCmd("cancel", "Mark a goal cancelled",
		func(deps *runtimeDeps, cmd *cobra.Command, id int64) error {
			return deps.longTerm.CancelGoal(cmd.Context(), id)
		})

	goalsCmd.AddCommand(goalsListCmd, goalsAddCmd, completeCmd, cancelCmd)
	RootCmd.AddCommand(goalsCmd)
}
