package main

import (
	"fmt"
	"os"

	"github.com/agentkb/agentkb/internal/cli"
	"github.com/agentkb/agentkb/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentkb",
		Short: "Agentkb CLI - Per-agent knowledge bases",
		Long: `Agentkb CLI provides commands to manage agents, knowledge and chat.

Environment variables:
  AGENTKB_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AgentCmd())
	rootCmd.AddCommand(client.KnowledgeCmd())
	rootCmd.AddCommand(client.ChunkCmd())
	rootCmd.AddCommand(client.ChatCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
