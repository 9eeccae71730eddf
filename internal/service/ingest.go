package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/telemetry"
)

// DocumentSource yields the documents of a corpus.
type DocumentSource interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// BatchEmbedder embeds any number of texts, preserving order.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexPublisher makes embedded entries the served index. Both methods
// return the resulting index size.
type IndexPublisher interface {
	Replace(ctx context.Context, entries []domain.IndexEntry) (int, error)
	Append(ctx context.Context, entries []domain.IndexEntry) (int, error)
}

// IngestService runs the build pipeline: load, chunk, embed, publish.
type IngestService struct {
	chunker   *Chunker
	embedder  BatchEmbedder
	publisher IndexPublisher
	source    DocumentSource
	logger    *slog.Logger
}

// NewIngestService wires the pipeline. source may be nil when documents are
// always passed explicitly.
func NewIngestService(chunker *Chunker, embedder BatchEmbedder, publisher IndexPublisher, source DocumentSource, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		chunker:   chunker,
		embedder:  embedder,
		publisher: publisher,
		source:    source,
		logger:    logger,
	}
}

// Ingest chunks and embeds docs and publishes them with the given mode. With
// no docs the configured source is loaded instead.
func (s *IngestService) Ingest(ctx context.Context, mode domain.IngestMode, docs []domain.Document) (*domain.IngestStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest:" + string(mode),
	})
	defer span.End()

	started := time.Now()
	if mode == "" {
		mode = domain.IngestModeReplace
	}
	if !domain.IsValidIngestMode(mode) {
		return nil, domain.InvalidParameterError("invalid ingest mode %q", mode)
	}

	if len(docs) == 0 {
		if s.source == nil {
			return nil, domain.InvalidParameterError("no documents to ingest")
		}
		loaded, err := s.source.Load(ctx)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		docs = loaded
	}
	if len(docs) == 0 {
		return nil, domain.InvalidParameterError("no documents to ingest")
	}

	var chunks []domain.Chunk
	for i := range docs {
		if err := domain.ValidateDocument(&docs[i]); err != nil {
			return nil, domain.InvalidParameterError("document %d: %v", i, err)
		}
		docChunks, err := s.chunker.Chunk(docs[i])
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", docs[i].SourceName, err)
		}
		s.logger.Debug("document chunked", "source", docs[i].SourceName, "chunks", len(docChunks))
		chunks = append(chunks, docChunks...)
	}

	if len(chunks) == 0 {
		return nil, domain.InvalidParameterError("documents produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedAll(ctx, texts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, domain.EmbeddingError("embedder returned wrong number of vectors",
			fmt.Errorf("got %d for %d chunks", len(vectors), len(chunks)))
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = domain.IndexEntry{Chunk: chunks[i], Vector: vectors[i]}
	}

	var size int
	if mode == domain.IngestModeAppend {
		size, err = s.publisher.Append(ctx, entries)
	} else {
		size, err = s.publisher.Replace(ctx, entries)
	}
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("publish index: %w", err)
	}
	telemetry.AddBreadcrumb(ctx, "index", fmt.Sprintf("%s published %d chunks, index size %d", mode, len(entries), size))

	stats := &domain.IngestStats{
		Documents:  len(docs),
		Chunks:     len(chunks),
		IndexSize:  size,
		DurationMS: time.Since(started).Milliseconds(),
	}
	s.logger.Info("ingestion complete",
		"mode", mode,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"index_size", stats.IndexSize,
		"duration_ms", stats.DurationMS,
	)
	return stats, nil
}
