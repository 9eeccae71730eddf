package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/cli/client"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragcore",
		Short: "ragcore CLI - retrieval over a ragcore server",
		Long: `ragcore CLI queries a running ragcored server.

Environment variables:
  RAG_API_URL      API base URL (default: http://localhost:8080)
  RAG_API_PREFIX   API route prefix (default: /api/v1)`,
		Version:      cli.Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.BindEnv(rootCmd, "api-url", "RAG_API_URL")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.HealthCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.RAGCmd())
	rootCmd.AddCommand(client.EvalCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
