package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/domain"
)

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			var health handlers.HealthResponse
			if err := resp.Decode(&health); err != nil {
				return err
			}

			var indexStats *domain.IndexStats
			if stats {
				resp, err := api.Get(cmd.Context(), "/stats")
				if err != nil {
					return fmt.Errorf("failed to get stats: %w", err)
				}
				indexStats = &domain.IndexStats{}
				if err := resp.Decode(indexStats); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return cli.PrintJSON(w, struct {
					Health handlers.HealthResponse `json:"health"`
					Stats  *domain.IndexStats      `json:"stats,omitempty"`
				}{health, indexStats})
			}

			fmt.Fprintf(w, "Server:    %s (%s)\n", api.BaseURL(), health.Status)
			fmt.Fprintf(w, "Version:   %s\n", health.Version)
			fmt.Fprintf(w, "Model:     %s (%d dims)\n", health.EmbeddingModel, health.Dimension)
			fmt.Fprintf(w, "Chunks:    %d\n", health.TotalChunks)
			if indexStats != nil {
				fmt.Fprintf(w, "Sources:   %d\n", indexStats.Sources)
				fmt.Fprintf(w, "Generation: %d\n", indexStats.Generation)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stats, "stats", false, "Include index statistics")

	return cmd
}
