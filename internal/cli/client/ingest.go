package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/loader"
	"github.com/cloo-solutions/ragcore/internal/logging"
)

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var (
		dir          string
		mode         string
		wait         bool
		pollInterval time.Duration
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Queue an ingestion job",
		Long: `Queues an ingestion job on the server.

With --dir the local .txt and .md files are uploaded. Without it the server
ingests its own document directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			req := handlers.IngestRequest{Mode: mode}
			if dir != "" {
				docs, err := loader.NewDirectorySource(dir, logging.Discard()).Load(cmd.Context())
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					return fmt.Errorf("no documents found in %s", dir)
				}
				req.Documents = docs
			}

			resp, err := api.Post(cmd.Context(), "/ingest", req)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			var job handlers.IngestJobResponse
			if err := resp.Decode(&job); err != nil {
				return err
			}

			if wait {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				final, err := WaitForJob(ctx, api, job.ID, pollInterval)
				if err != nil {
					return err
				}
				job = *final
			}

			if jsonOutput(cmd) {
				if err := cli.PrintJSON(cmd.OutOrStdout(), job); err != nil {
					return err
				}
			} else {
				printJob(cmd.OutOrStdout(), &job)
			}
			if job.Status == string(domain.IngestJobStatusFailed) {
				return fmt.Errorf("ingest job %s failed: %s", job.ID, job.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Local directory to upload")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(domain.IngestModeReplace), "Ingest mode: replace or append")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Polling interval while waiting")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum time to wait")

	cmd.AddCommand(ingestStatusCmd())

	return cmd
}

func ingestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show an ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			job, err := GetJob(cmd.Context(), api, args[0])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return cli.PrintJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

// GetJob fetches an ingestion job by ID.
func GetJob(ctx context.Context, api *APIClient, id string) (*handlers.IngestJobResponse, error) {
	resp, err := api.Get(ctx, "/ingest/"+id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingest job: %w", err)
	}
	var job handlers.IngestJobResponse
	if err := resp.Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForJob polls until the job completes or fails.
func WaitForJob(ctx context.Context, api *APIClient, id string, interval time.Duration) (*handlers.IngestJobResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := GetJob(ctx, api, id)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case string(domain.IngestJobStatusCompleted), string(domain.IngestJobStatusFailed):
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for ingest job %s (status %s): %w", id, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printJob(w io.Writer, job *handlers.IngestJobResponse) {
	fmt.Fprintf(w, "Job:       %s\n", job.ID)
	fmt.Fprintf(w, "Status:    %s\n", job.Status)
	fmt.Fprintf(w, "Mode:      %s\n", job.Mode)
	if job.Retries > 0 {
		fmt.Fprintf(w, "Retries:   %d\n", job.Retries)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", job.Error)
	}
	if job.Stats != nil {
		fmt.Fprintf(w, "Documents: %d\n", job.Stats.Documents)
		fmt.Fprintf(w, "Chunks:    %d\n", job.Stats.Chunks)
		fmt.Fprintf(w, "Index:     %d entries\n", job.Stats.IndexSize)
		fmt.Fprintf(w, "Duration:  %s\n", time.Duration(job.Stats.DurationMS)*time.Millisecond)
	}
}
