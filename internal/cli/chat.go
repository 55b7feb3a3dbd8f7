package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engram-labs/engram/pkg/agent"
	"github.com/engram-labs/engram/pkg/memory/reflection"
	"github.com/engram-labs/engram/pkg/models"
)

var flagNoReflection bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive memory-augmented chat session",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		deps, err := openDeps(ctx)
		if err != nil {
			exitErr("startup", err)
		}
		defer deps.close()

		completer, err := models.NewCompleter(ctx, deps.cfg.Model.Provider, deps.cfg.Model.Model, "")
		if err != nil {
			exitErr("model", err)
		}

		var reflector *reflection.Reflector
		if !flagNoReflection {
			reflector, err = reflection.New(completer, deps.longTerm, deps.logger)
			if err != nil {
				exitErr("reflection", err)
			}
		}

		a, err := agent.New(agent.Config{
			UserID:    flagUserID,
			Username:  flagUsername,
			ProjectID: flagProjectID,
			Completer: completer,
			Memory:    deps.index,
			Reflector: reflector,
			Logger:    deps.logger,
		})
		if err != nil {
			exitErr("agent", err)
		}

		fmt.Printf("engram chat (conversation %s) — type /quit to end the session\n", a.ConversationID())
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				break
			}
			reply, err := a.Chat(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}

		if err := a.EndSession(ctx); err != nil {
			exitErr("end session", err)
		}
	},
}

func init() {
	chatCmd.Flags().BoolVar(&flagNoReflection, "no-reflection", false, "Disable knowledge extraction after each turn")
	RootCmd.AddCommand(chatCmd)
}
