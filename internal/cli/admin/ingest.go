package admin

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/loader"
	"github.com/cloo-solutions/ragcore/internal/service"
)

// IngestCmd builds the index from a document directory without the server.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the index from a document directory",
		Long: `Load every .txt and .md file under the data directory, chunk and embed it,
and persist the resulting index to the configured backend.`,
		RunE: runIngest,
	}

	cmd.Flags().String("dir", "", "Document directory")
	cmd.Flags().String("mode", string(domain.IngestModeReplace), "replace or append")
	cmd.Flags().Bool("dry-run", false, "Only report chunking statistics")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")
	cli.BindEnv(cmd, "dir", "RAG_DATA_DIR")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer initTelemetry(cfg, logger)()

	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.DataDir = dir
	}
	modeStr, _ := cmd.Flags().GetString("mode")
	mode := domain.IngestMode(modeStr)
	if !domain.IsValidIngestMode(mode) {
		return fmt.Errorf("invalid mode %q: expected replace or append", modeStr)
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if dryRun {
		chunker, err := service.NewChunker(service.ChunkConfig{
			ChunkSize:     cfg.ChunkSize,
			Overlap:       cfg.ChunkOverlap,
			SnapTolerance: cfg.ChunkSnapTolerance,
		})
		if err != nil {
			return err
		}
		docs, err := loader.NewDirectorySource(cfg.DataDir, logger).Load(ctx)
		if err != nil {
			return err
		}
		report, err := DryRun(chunker, docs)
		if err != nil {
			return err
		}
		if asJSON {
			return cli.PrintJSON(out, report)
		}
		for _, d := range report.Documents {
			fmt.Fprintf(out, "%-40s %8d chars %6d tokens %4d chunks\n", d.Source, d.Chars, d.EstimatedTokens, d.Chunks)
		}
		fmt.Fprintf(out, "\n%d documents, %d chunks\n", len(report.Documents), report.TotalChunks)
		return nil
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	rt, err := NewRuntime(ctx, cfg, logger, Options{Migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.Ingest.Ingest(ctx, mode, nil)
	if err != nil {
		return err
	}

	if asJSON {
		return cli.PrintJSON(out, stats)
	}
	fmt.Fprintf(out, "Ingested %d documents into %d chunks (index size %d) in %dms\n",
		stats.Documents, stats.Chunks, stats.IndexSize, stats.DurationMS)
	return nil
}

// DryRunDocument is the chunking outcome for one document.
type DryRunDocument struct {
	Source          string `json:"source"`
	Chars           int    `json:"chars"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Chunks          int    `json:"chunks"`
}

type DryRunReport struct {
	Documents   []DryRunDocument `json:"documents"`
	TotalChunks int              `json:"total_chunks"`
}

// DryRun chunks docs without embedding them.
func DryRun(chunker *service.Chunker, docs []domain.Document) (*DryRunReport, error) {
	report := &DryRunReport{Documents: make([]DryRunDocument, 0, len(docs))}
	for _, doc := range docs {
		chunks, err := chunker.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.SourceName, err)
		}
		stats := chunker.Stats(doc.Text)
		report.Documents = append(report.Documents, DryRunDocument{
			Source:          doc.SourceName,
			Chars:           stats.Chars,
			EstimatedTokens: stats.EstimatedTokens,
			Chunks:          len(chunks),
		})
		report.TotalChunks += len(chunks)
	}
	return report, nil
}

