package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/cli"
	"github.com/cloo-solutions/ragcore/internal/config"
	"github.com/cloo-solutions/ragcore/internal/jobs"
	"github.com/cloo-solutions/ragcore/internal/logging"
	"github.com/cloo-solutions/ragcore/internal/server"
	"github.com/cloo-solutions/ragcore/internal/service"
	"github.com/cloo-solutions/ragcore/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the retrieval API server and the background ingest worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the ingest worker")
	cli.BindEnv(cmd, "port", "RAG_PORT")

	return cmd
}

// loadConfig loads configuration and installs the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logging.New(cfg.Debug, cfg.LogFormat), nil
}

// initTelemetry starts Sentry when a DSN is configured. The returned
// function flushes pending events.
func initTelemetry(cfg *config.Config, logger *slog.Logger) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		return func() {}
	}
	return shutdown
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer initTelemetry(cfg, logger)()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	noWorker, _ := cmd.Flags().GetBool("no-worker")

	rt, err := NewRuntime(ctx, cfg, logger, Options{Migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer rt.Close()

	handler, worker := rt.Server(!noWorker)
	if worker != nil {
		go worker.Start(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"port", cfg.Port,
			"prefix", cfg.APIPrefix,
			"backend", cfg.IndexBackend,
			"embedding_provider", cfg.EmbeddingProvider,
			"embedding_model", rt.Embedder.ModelName(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// Server builds the HTTP handler. With ingest enabled it also returns the
// worker that drains the job queue; the caller starts it.
func (r *Runtime) Server(ingest bool) (http.Handler, *jobs.Worker) {
	cfg := r.Config
	routerCfg := server.RouterConfig{
		Prefix:        cfg.APIPrefix,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Logger:        r.Logger,
		SearchHandler: handlers.NewSearchHandler(r.RAG, handlers.Limits{MaxTopK: cfg.MaxTopK}),
		IndexHandler:  handlers.NewIndexHandler(r.RAG, cli.Version),
	}

	var worker *jobs.Worker
	if ingest {
		jobSvc := service.NewIngestJobService(r.Backend.Jobs, service.DefaultUUIDGenerator{})
		routerCfg.IngestHandler = handlers.NewIngestHandler(jobSvc)

		processor := jobs.NewIngestWorker(r.Backend.Jobs, r.Ingest, r.Logger)
		worker = jobs.NewWorker(processor, cfg.IngestPollInterval, r.Logger)
	}

	return server.NewRouter(routerCfg), worker
}
