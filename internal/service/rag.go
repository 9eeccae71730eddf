package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/telemetry"
)

// IndexBrowser exposes listing and statistics of the served index.
type IndexBrowser interface {
	ListChunks(ctx context.Context, offset, limit int) (domain.ChunkPage, error)
	IndexStats(ctx context.Context) (domain.IndexStats, error)
}

// RAGConfig holds request defaults applied when a caller leaves a field
// unset.
type RAGConfig struct {
	DefaultTopK      int
	MaxContextLength int
}

// SearchInput represents input for search operation. A nil MinScore uses the
// configured default.
type SearchInput struct {
	Query    string
	K        int
	MinScore *float64
}

// RAGInput represents input for a retrieve-and-aggregate call.
type RAGInput struct {
	Query            string
	K                int
	MinScore         *float64
	MaxContextLength int
}

// RAGOutput is the context assembled for a query.
type RAGOutput struct {
	Query   string
	Context *domain.AggregatedContext
}

// HealthStatus describes the readiness of the retrieval service.
type HealthStatus struct {
	IndexLoaded    bool
	TotalChunks    int
	EmbeddingModel string
	Dimension      int
}

// RAGService is the query-side facade used by the HTTP handlers and CLIs.
type RAGService struct {
	embedder   Embedder
	index      VectorIndex
	browser    IndexBrowser
	retriever  *Retriever
	aggregator *Aggregator
	evaluator  *Evaluator
	cfg        RAGConfig
}

func NewRAGService(
	embedder Embedder,
	index VectorIndex,
	browser IndexBrowser,
	relevance RelevanceConfig,
	evalMinScore float64,
	cfg RAGConfig,
) *RAGService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 2000
	}
	retriever := NewRetriever(embedder, index, relevance)
	return &RAGService{
		embedder:   embedder,
		index:      index,
		browser:    browser,
		retriever:  retriever,
		aggregator: NewAggregator(),
		evaluator:  NewEvaluator(retriever, evalMinScore),
		cfg:        cfg,
	}
}

func (s *RAGService) Config() RAGConfig { return s.cfg }

// Search retrieves labelled chunks for a query.
func (s *RAGService) Search(ctx context.Context, input SearchInput) (*domain.RetrievalResult, error) {
	k := input.K
	if k == 0 {
		k = s.cfg.DefaultTopK
	}
	if input.MinScore == nil {
		return s.retriever.RetrieveDefault(ctx, input.Query, k)
	}
	return s.retriever.Retrieve(ctx, input.Query, k, *input.MinScore)
}

// RAG retrieves and aggregates a bounded context. A retrieval that leaves
// nothing above the minimum score is reported as ErrInsufficientResults.
func (s *RAGService) RAG(ctx context.Context, input RAGInput) (*RAGOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.RAG", telemetry.SpanAttributes{
		Operation: "rag",
		Query:     input.Query,
		K:         input.K,
	})
	defer span.End()

	res, err := s.Search(ctx, SearchInput{Query: input.Query, K: input.K, MinScore: input.MinScore})
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, domain.ErrInsufficientResults
	}

	maxLen := input.MaxContextLength
	if maxLen == 0 {
		maxLen = s.cfg.MaxContextLength
	}
	agg, err := s.aggregator.Aggregate(res.Results, maxLen)
	if err != nil {
		return nil, err
	}
	return &RAGOutput{Query: input.Query, Context: agg}, nil
}

// Evaluate runs the labelled queries at depth k, or the default depth when
// k is zero.
func (s *RAGService) Evaluate(ctx context.Context, queries []domain.EvaluationQuery, k int) (*domain.EvaluationReport, error) {
	if k == 0 {
		k = s.cfg.DefaultTopK
	}
	return s.evaluator.Evaluate(ctx, queries, k)
}

// Embed returns normalized vectors for texts, in order.
func (s *RAGService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.InvalidParameterError("at least one text is required")
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, domain.InvalidParameterError("text %d cannot be empty", i)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.Embed", telemetry.SpanAttributes{
		Operation: "embed",
		K:         len(texts),
	})
	defer span.End()

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return vecs, nil
}

func (s *RAGService) ModelName() string { return s.embedder.ModelName() }
func (s *RAGService) Dimension() int    { return s.embedder.Dimension() }

func (s *RAGService) Health(ctx context.Context) (*HealthStatus, error) {
	size, err := s.index.Size(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthStatus{
		IndexLoaded:    size > 0,
		TotalChunks:    size,
		EmbeddingModel: s.embedder.ModelName(),
		Dimension:      s.embedder.Dimension(),
	}, nil
}

// ListChunks pages through the served index.
func (s *RAGService) ListChunks(ctx context.Context, offset, limit int) (domain.ChunkPage, error) {
	return s.browser.ListChunks(ctx, offset, limit)
}

func (s *RAGService) Stats(ctx context.Context) (domain.IndexStats, error) {
	return s.browser.IndexStats(ctx)
}
