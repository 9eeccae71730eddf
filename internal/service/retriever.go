package service

import (
	"context"
	"math"
	"strings"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/telemetry"
)

// OverfetchFactor widens the index query so that score filtering still
// leaves up to k results.
const OverfetchFactor = 2

// Embedder produces L2-normalized vectors. EmbedBatch preserves input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// VectorIndex is the search contract shared by the in-memory and pgvector
// backends.
type VectorIndex interface {
	Add(ctx context.Context, entries []domain.IndexEntry) error
	Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error)
	Size(ctx context.Context) (int, error)
}

// RelevanceConfig holds the score thresholds used for labelling and the
// default filter.
type RelevanceConfig struct {
	HighThreshold   float64
	MediumThreshold float64
	MinScoreDefault float64
}

func DefaultRelevanceConfig() RelevanceConfig {
	return RelevanceConfig{
		HighThreshold:   0.80,
		MediumThreshold: 0.65,
		MinScoreDefault: 0.65,
	}
}

// Label maps a score to its relevance tier.
func (c RelevanceConfig) Label(score float32) domain.Relevance {
	s := float64(score)
	switch {
	case s >= c.HighThreshold:
		return domain.RelevanceHigh
	case s >= c.MediumThreshold:
		return domain.RelevanceMedium
	default:
		return domain.RelevanceLow
	}
}

// Retriever turns a query into filtered, labelled index hits.
type Retriever struct {
	embedder  Embedder
	index     VectorIndex
	relevance RelevanceConfig
}

func NewRetriever(embedder Embedder, index VectorIndex, relevance RelevanceConfig) *Retriever {
	return &Retriever{embedder: embedder, index: index, relevance: relevance}
}

func (r *Retriever) Relevance() RelevanceConfig { return r.relevance }

// RetrieveDefault runs Retrieve with the configured default minimum score.
func (r *Retriever) RetrieveDefault(ctx context.Context, query string, k int) (*domain.RetrievalResult, error) {
	return r.Retrieve(ctx, query, k, r.relevance.MinScoreDefault)
}

// Retrieve embeds query, searches the index and keeps at most k hits scoring
// at least minScore, best first. Embedding failures are returned as-is
// without retrying.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, minScore float64) (*domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
		Query:     query,
		K:         k,
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, domain.InvalidParameterError("query cannot be empty")
	}
	if k <= 0 {
		return nil, domain.InvalidParameterError("k must be positive, got %d", k)
	}
	if math.IsNaN(minScore) {
		return nil, domain.InvalidParameterError("min_score must be a number")
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.SetError(err)
		if domain.CodeOf(err) == domain.ErrCodeEmbedding {
			return nil, err
		}
		return nil, domain.EmbeddingError("failed to embed query", err)
	}

	hits, err := r.index.Search(ctx, vec, max(k, k*OverfetchFactor))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results := make([]domain.ScoredResult, 0, min(k, len(hits)))
	for _, h := range hits {
		if float64(h.Score) < minScore {
			continue
		}
		results = append(results, domain.ScoredResult{
			Chunk:     h.Chunk,
			Score:     h.Score,
			Relevance: r.relevance.Label(h.Score),
		})
		if len(results) == k {
			break
		}
	}

	return &domain.RetrievalResult{
		Results:       results,
		TotalFound:    len(hits),
		FilteredCount: len(results),
		MinScoreUsed:  minScore,
	}, nil
}
