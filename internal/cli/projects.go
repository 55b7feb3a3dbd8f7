package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engram-labs/engram/pkg/memory/model"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Track the user's projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's projects, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		projects, err := deps.longTerm.ListProjects(cmd.Context(), flagUserID)
		if err != nil {
			exitErr("list projects", err)
		}
		if len(projects) == 0 {
			fmt.Println("no projects")
			return
		}
		for _, p := range projects {
			line := fmt.Sprintf("%6d  [%s] %s", p.ID, p.Status, p.Name)
			if p.Description != "" {
				line += " — " + p.Description
			}
			if len(p.TechStack) > 0 {
				line += "  (" + strings.Join(p.TechStack, ", ") + ")"
			}
			fmt.Println(line)
		}
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an active project",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		description, _ := cmd.Flags().GetString("description")
		tech, _ := cmd.Flags().GetStringSlice("tech")
		repo, _ := cmd.Flags().GetString("repo")
		p, err := deps.longTerm.AddProject(cmd.Context(), model.Project{
			UserID:        flagUserID,
			Name:          strings.Join(args, " "),
			Description:   description,
			TechStack:     tech,
			RepositoryURL: repo,
		})
		if err != nil {
			exitErr("add project", err)
		}
		fmt.Printf("added project %d\n", p.ID)
	},
}

func init() {
	projectsAddCmd.Flags().String("description", "", "Optional description")
	projectsAddCmd.Flags().StringSlice("tech", nil, "Tech stack entries")
	projectsAddCmd.Flags().String("repo", "", "Repository URL")
	projectsCmd.AddCommand(projectsListCmd, projectsAddCmd)
	RootCmd.AddCommand(projectsCmd)
}
