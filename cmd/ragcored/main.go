package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "ragcored",
		Short:   "ragcore daemon and index tools",
		Long:    "ragcore daemon for serving retrieval over HTTP and for building, inspecting and evaluating the index",
		Version: cli.Version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	cli.UsesConfig(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.EvalCmd())
	rootCmd.AddCommand(admin.IndexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
