package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engram-labs/engram/pkg/memory/model"
	"github.com/engram-labs/engram/pkg/memory/store"
)

var preferencesCmd = &cobra.Command{
	Use:   "preferences",
	Short: "Manage user preferences",
}

var preferencesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's preferences",
	Run: func(cmd *cobra.Command, _ []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		prefs, err := deps.longTerm.ListPreferences(cmd.Context(), flagUserID)
		if err != nil {
			exitErr("list preferences", err)
		}
		if len(prefs) == 0 {
			fmt.Println("no preferences")
			return
		}
		for _, p := range prefs {
			line := fmt.Sprintf("%s = %s", p.Key, p.Value)
			if p.Category != "" {
				line = "[" + p.Category + "] " + line
			}
			fmt.Println(line)
		}
	},
}

var preferencesSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference, overwriting any existing value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		category, _ := cmd.Flags().GetString("category")
		p, err := deps.longTerm.SetPreference(cmd.Context(), model.Preference{
			UserID:   flagUserID,
			Key:      args[0],
			Value:    args[1],
			Category: category,
		})
		if err != nil {
			exitErr("set preference", err)
		}
		fmt.Printf("%s = %s\n", p.Key, p.Value)
	},
}

var preferencesGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one preference",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		p, err := deps.longTerm.GetPreference(cmd.Context(), flagUserID, args[0])
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("no preference %q\n", args[0])
			return
		}
		if err != nil {
			exitErr("get preference", err)
		}
		fmt.Println(p.Value)
	},
}

func init() {
	preferencesSetCmd.Flags().String("category", "", "Optional category")
	preferencesCmd.AddCommand(preferencesListCmd, preferencesSetCmd, preferencesGetCmd)
	RootCmd.AddCommand(preferencesCmd)
}
