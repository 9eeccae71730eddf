package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/config"
)

// IndexCmd groups index maintenance commands.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the persisted index",
	}

	cmd.AddCommand(indexInspectCmd())
	cmd.AddCommand(indexStatsCmd())
	cmd.AddCommand(indexDropCmd())

	return cmd
}

func indexInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the header of the persisted index snapshot",
		Long:  "Read only the header of the snapshot: dimension, entry count, embedding model and creation time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IndexBackend == config.IndexBackendPostgres {
				return fmt.Errorf("inspect reads snapshots; use 'index stats' for the postgres backend")
			}

			emb, err := NewEmbedder(cfg)
			if err != nil {
				return err
			}
			store, err := OpenSnapshotStore(ctx, cfg, emb.ModelName(), logger)
			if err != nil {
				return err
			}

			info, err := store.Inspect(ctx)
			if err != nil {
				return err
			}
			return cli.PrintJSON(cmd.OutOrStdout(), info)
		},
	}
	return cmd
}

func indexStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of the served index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := NewRuntime(ctx, cfg, logger, Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.RAG.Stats(ctx)
			if err != nil {
				return err
			}
			return cli.PrintJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func indexDropCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete the persisted index snapshot",
		Long:  "Delete the snapshot of the file or s3 backend. A running server keeps serving the index it loaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("refusing to delete %s without --force", cfg.IndexPath)
			}
			emb, err := NewEmbedder(cfg)
			if err != nil {
				return err
			}
			dropped, err := DropSnapshot(ctx, cfg, emb.ModelName(), logger)
			if err != nil {
				return err
			}
			if !dropped {
				fmt.Fprintf(cmd.OutOrStdout(), "No snapshot at %s\n", cfg.IndexPath)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot %s\n", cfg.IndexPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion")
	return cmd
}

// DropSnapshot deletes the persisted snapshot and reports whether one existed.
func DropSnapshot(ctx context.Context, cfg *config.Config, model string, logger *slog.Logger) (bool, error) {
	store, err := OpenSnapshotStore(ctx, cfg, model, logger)
	if err != nil {
		return false, err
	}
	exists, err := store.Exists(ctx)
	if err != nil || !exists {
		return false, err
	}
	if err := store.Delete(ctx); err != nil {
		return false, err
	}
	logger.Info("index snapshot deleted", "backend", cfg.IndexBackend, "key", store.Key())
	return true, nil
}
