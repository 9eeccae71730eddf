package admin

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/cli"
)

// EvalCmd evaluates retrieval quality against the persisted index.
func EvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <suite-file>",
		Short: "Evaluate retrieval against a labelled query suite",
		Long: `Run every query of a JSON or YAML suite against the local index and report
recall, precision, average similarity, hit rate and MRR.`,
		Args: cobra.ExactArgs(1),
		RunE: runEval,
	}

	cmd.Flags().IntP("k", "k", 0, "Results per query (defaults to the suite's k, then RAG_TOP_K)")
	cmd.Flags().Bool("json", false, "Print the full report as JSON")
	cmd.Flags().BoolP("verbose", "v", false, "Show per-query details")

	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	suite, err := cli.LoadSuite(args[0])
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	k, _ := cmd.Flags().GetInt("k")
	if k == 0 {
		k = suite.K
	}

	rt, err := NewRuntime(ctx, cfg, logger, Options{})
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.RAG.Evaluate(ctx, suite.Queries, k)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), report)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	cli.PrintReport(cmd.OutOrStdout(), report, verbose)
	return nil
}
