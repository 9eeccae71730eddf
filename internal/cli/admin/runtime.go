package admin

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloo-solutions/ragcore/internal/config"
	"github.com/cloo-solutions/ragcore/internal/database"
	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/embedding"
	"github.com/cloo-solutions/ragcore/internal/index"
	"github.com/cloo-solutions/ragcore/internal/jobs"
	"github.com/cloo-solutions/ragcore/internal/loader"
	"github.com/cloo-solutions/ragcore/internal/openai"
	"github.com/cloo-solutions/ragcore/internal/repository"
	"github.com/cloo-solutions/ragcore/internal/service"
	"github.com/cloo-solutions/ragcore/internal/storage"
)

// MigrationsDir is where the daemon looks for SQL migrations.
const MigrationsDir = "migrations"

// Backend bundles the index implementation selected by RAG_INDEX_BACKEND.
type Backend struct {
	Index     service.VectorIndex
	Browser   service.IndexBrowser
	Publisher service.IndexPublisher
	// Jobs persists ingest jobs. The postgres backend stores them in the
	// database, the others keep them in memory.
	Jobs  jobs.IngestJobRepository
	Close func()
}

// EmbeddingProvider is what both the query and the ingest side need from a
// provider.
type EmbeddingProvider interface {
	service.Embedder
	jobs.BatchAPI
}

// Runtime is the wired set of services shared by every daemon command.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Embedder EmbeddingProvider
	Backend  *Backend
	RAG      *service.RAGService
	Ingest   *service.IngestService
}

// Options tunes runtime construction.
type Options struct {
	// Migrate applies pending SQL migrations when the backend is postgres.
	Migrate bool
}

// NewEmbedder builds the embedding provider named by the configuration.
func NewEmbedder(cfg *config.Config) (EmbeddingProvider, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderOpenAI:
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimension,
			SendDimensions:      cfg.OpenAIBaseURL == "",
			Timeout:             cfg.EmbeddingTimeout,
			RequestsPerSecond:   cfg.EmbeddingRateLimit,
		}), nil
	case config.EmbeddingProviderLocal:
		return embedding.NewHashEmbedder(cfg.EmbeddingDimension, cfg.EmbeddingModel), nil
	}
	return nil, domain.ConfigurationError("unknown embedding provider %q", cfg.EmbeddingProvider)
}

// OpenBackend opens the configured index backend and loads any persisted
// index. A missing snapshot yields an empty index; any other load failure is
// returned.
func OpenBackend(ctx context.Context, cfg *config.Config, model string, logger *slog.Logger, opts Options) (*Backend, error) {
	if cfg.IndexBackend == config.IndexBackendPostgres {
		return openPostgres(ctx, cfg, model, logger, opts)
	}
	store, err := OpenSnapshotStore(ctx, cfg, model, logger)
	if err != nil {
		return nil, err
	}
	return openSnapshot(ctx, cfg, store, model, logger)
}

// OpenSnapshotStore returns the snapshot location of the file or S3 backend
// without reading it.
func OpenSnapshotStore(ctx context.Context, cfg *config.Config, model string, logger *slog.Logger) (*index.SnapshotStore, error) {
	expect := index.Expectation{Dimension: cfg.EmbeddingDimension, Model: model}

	switch cfg.IndexBackend {
	case config.IndexBackendS3:
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("S3 bucket ready", "bucket", cfg.S3Bucket)
		return index.NewSnapshotStore(s3Client, cfg.IndexPath, expect), nil
	case config.IndexBackendFile:
		dir, key := filepath.Split(cfg.IndexPath)
		if dir == "" {
			dir = "."
		}
		return index.NewSnapshotStore(storage.NewFileStore(dir), key, expect), nil
	}
	return nil, domain.ConfigurationError("index backend %q has no snapshot store", cfg.IndexBackend)
}

func openSnapshot(ctx context.Context, cfg *config.Config, store *index.SnapshotStore, model string, logger *slog.Logger) (*Backend, error) {
	key := store.Key()
	exists, err := store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for persisted index: %w", err)
	}

	var live *index.MemoryIndex
	if exists {
		live, err = store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		logger.Info("index loaded", "backend", cfg.IndexBackend, "key", key, "entries", live.Len())
	} else {
		logger.Warn("no persisted index, starting empty", "backend", cfg.IndexBackend, "key", key)
		live = index.NewMemoryIndex(cfg.EmbeddingDimension, model)
	}

	return &Backend{
		Index:     live,
		Browser:   live,
		Publisher: index.NewPublisher(live, store, logger),
		Jobs:      jobs.NewMemoryJobQueue(10),
		Close:     func() {},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, model string, logger *slog.Logger, opts Options) (*Backend, error) {
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")

	if opts.Migrate {
		if err := database.RunMigrations(cfg.DatabaseURL, MigrationsDir, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunks := repository.NewChunkRepository(pool, cfg.EmbeddingDimension)
	if err := chunks.EnsureHeader(ctx, model); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to verify index header: %w", err)
	}
	size, err := chunks.Size(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("index loaded", "backend", cfg.IndexBackend, "entries", size)

	return &Backend{
		Index:     chunks,
		Browser:   chunks,
		Publisher: chunks,
		Jobs:      repository.NewIngestJobRepository(pool),
		Close:     pool.Close,
	}, nil
}

// NewRuntime wires the embedder, backend and services from configuration.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	emb, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg, emb.ModelName(), logger, opts)
	if err != nil {
		return nil, err
	}

	relevance := service.RelevanceConfig{
		HighThreshold:   cfg.HighThreshold,
		MediumThreshold: cfg.MediumThreshold,
		MinScoreDefault: cfg.MinScore,
	}
	rag := service.NewRAGService(emb, backend.Index, backend.Browser, relevance, cfg.EvalMinScore, service.RAGConfig{
		DefaultTopK:      cfg.TopK,
		MaxContextLength: cfg.MaxContextLength,
	})

	chunker, err := service.NewChunker(service.ChunkConfig{
		ChunkSize:     cfg.ChunkSize,
		Overlap:       cfg.ChunkOverlap,
		SnapTolerance: cfg.ChunkSnapTolerance,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	batcher := jobs.NewBatchEmbedder(emb, jobs.BatchConfig{
		BatchSize: cfg.EmbeddingBatchSize,
		Workers:   cfg.EmbeddingWorkers,
	}, logger)
	source := loader.NewDirectorySource(cfg.DataDir, logger)
	ingest := service.NewIngestService(chunker, batcher, backend.Publisher, source, logger)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Embedder: emb,
		Backend:  backend,
		RAG:      rag,
		Ingest:   ingest,
	}, nil
}

// Close releases backend resources.
func (r *Runtime) Close() {
	if r.Backend != nil && r.Backend.Close != nil {
		r.Backend.Close()
	}
}
