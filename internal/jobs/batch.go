package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// BatchAPI is the part of an embedding provider the batcher needs.
type BatchAPI interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchConfig controls how EmbedAll splits and retries work.
type BatchConfig struct {
	BatchSize   int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultBatchConfig returns the defaults used by the daemon.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:   64,
		Workers:     4,
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// BatchEmbedder fans texts out to an embedding provider in fixed-size
// batches, with bounded concurrency and per-batch retries.
type BatchEmbedder struct {
	api    BatchAPI
	cfg    BatchConfig
	logger *slog.Logger
}

// NewBatchEmbedder creates a BatchEmbedder. Zero config fields take their
// defaults.
func NewBatchEmbedder(api BatchAPI, cfg BatchConfig, logger *slog.Logger) *BatchEmbedder {
	def := DefaultBatchConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchEmbedder{api: api, cfg: cfg, logger: logger}
}

// EmbedAll embeds texts and returns vectors aligned with the input. The first
// failing batch cancels the rest.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+b.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := b.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch [%d,%d): %w", start, end, err)
			}
			if len(vecs) != end-start {
				return domain.EmbeddingError("provider returned wrong number of embeddings",
					fmt.Errorf("got %d for %d inputs", len(vecs), end-start))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BatchEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		vecs, err := b.api.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if isPermanent(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt == b.cfg.MaxAttempts {
			break
		}

		b.logger.Warn("embedding batch failed, retrying",
			"attempt", attempt,
			"max_attempts", b.cfg.MaxAttempts,
			"size", len(texts),
			"error", err,
		)
		wait := time.Duration(attempt) * b.cfg.Backoff
		select {
		case <-ctx.Done():
			return nil, errors.Join(lastErr, ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}
