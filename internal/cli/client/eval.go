package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/domain"
)

// EvalCmd creates the eval command.
func EvalCmd() *cobra.Command {
	var (
		k       int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "eval <suite-file>",
		Short: "Evaluate retrieval quality",
		Long: `Runs a labelled query suite against the server and reports recall,
precision, hit rate and MRR.

The suite is JSON or YAML:

  k: 5
  queries:
    - query: how do I rotate keys?
      expected_sources: [ops/keys.md]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := cli.LoadSuite(args[0])
			if err != nil {
				return err
			}

			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			req := handlers.EvaluateRequest{Queries: suite.Queries}
			switch {
			case cmd.Flags().Changed("k"):
				req.K = &k
			case suite.K > 0:
				req.K = &suite.K
			}

			resp, err := api.Post(cmd.Context(), "/evaluate", req)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			var report domain.EvaluationReport
			if err := resp.Decode(&report); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return cli.PrintJSON(cmd.OutOrStdout(), report)
			}
			cli.PrintReport(cmd.OutOrStdout(), &report, verbose)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 5, "Results per query (overrides the suite)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-query details")

	return cmd
}
