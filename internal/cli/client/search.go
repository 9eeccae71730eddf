package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/cli"
)

const previewLength = 160

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		k        int
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long:  "Retrieves the chunks most similar to the query, with relevance labels.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			req := handlers.SearchRequest{Query: args[0]}
			if cmd.Flags().Changed("k") {
				req.K = &k
			}
			if cmd.Flags().Changed("min-score") {
				req.MinScore = &minScore
			}

			resp, err := api.Post(cmd.Context(), "/search", req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			var out handlers.SearchResponse
			if err := resp.Decode(&out); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return cli.PrintJSON(cmd.OutOrStdout(), out)
			}
			printSearch(cmd.OutOrStdout(), &out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 5, "Number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum similarity score")

	return cmd
}

// RAGCmd creates the rag command.
func RAGCmd() *cobra.Command {
	var (
		k         int
		minScore  float64
		maxLength int
	)

	cmd := &cobra.Command{
		Use:   "rag <query>",
		Short: "Build an LLM context for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			req := handlers.RAGRequest{Query: args[0]}
			if cmd.Flags().Changed("k") {
				req.K = &k
			}
			if cmd.Flags().Changed("min-score") {
				req.MinScore = &minScore
			}
			if cmd.Flags().Changed("max-length") {
				req.MaxContextLength = &maxLength
			}

			resp, err := api.Post(cmd.Context(), "/rag", req)
			if err != nil {
				return fmt.Errorf("rag failed: %w", err)
			}
			var out handlers.RAGResponse
			if err := resp.Decode(&out); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return cli.PrintJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.Context)
			fmt.Fprintf(w, "\n%s\n", strings.Repeat("-", 40))
			fmt.Fprintf(w, "%d chunks, %d characters, avg score %.3f\n",
				out.ChunkCount, out.Metadata.TotalChars, out.Metadata.AvgScore)
			fmt.Fprintf(w, "Sources: %s\n", strings.Join(out.Sources, ", "))
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 5, "Number of chunks to retrieve")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum similarity score")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "Maximum context length in characters")

	return cmd
}

func printSearch(w io.Writer, out *handlers.SearchResponse) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "Found %d results (%d filtered below %.2f):\n\n", len(out.Results), out.FilteredCount, out.MinScoreUsed)
	for i, r := range out.Results {
		fmt.Fprintf(w, "%d. %s (%.3f, %s)\n", i+1, r.Metadata.Source, r.Score, r.Relevance)
		text := strings.Join(strings.Fields(r.Text), " ")
		if len(text) > previewLength {
			text = text[:previewLength-3] + "..."
		}
		fmt.Fprintf(w, "   %s\n", text)
		fmt.Fprintf(w, "   ID: %s\n", r.ChunkID)
		if i < len(out.Results)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
