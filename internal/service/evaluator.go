package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/telemetry"
)

// QueryRetriever is the slice of Retriever the evaluator depends on.
type QueryRetriever interface {
	Retrieve(ctx context.Context, query string, k int, minScore float64) (*domain.RetrievalResult, error)
}

// Evaluator scores retrieval quality over labelled queries.
type Evaluator struct {
	retriever QueryRetriever
	minScore  float64
}

// NewEvaluator builds an evaluator that retrieves with minScore. Zero keeps
// every hit the index returns.
func NewEvaluator(retriever QueryRetriever, minScore float64) *Evaluator {
	return &Evaluator{retriever: retriever, minScore: minScore}
}

// Evaluate runs every query at depth k. The first retrieval error aborts the
// run.
func (e *Evaluator) Evaluate(ctx context.Context, queries []domain.EvaluationQuery, k int) (*domain.EvaluationReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "Evaluator.Evaluate", telemetry.SpanAttributes{
		Operation: "evaluate",
		K:         k,
	})
	defer span.End()

	if len(queries) == 0 {
		return nil, domain.InvalidParameterError("at least one evaluation query is required")
	}
	if k <= 0 {
		return nil, domain.InvalidParameterError("k must be positive, got %d", k)
	}

	report := &domain.EvaluationReport{
		TotalQueries: len(queries),
		K:            k,
		Details:      make([]domain.QueryEvaluation, 0, len(queries)),
	}

	hits := 0
	for i, q := range queries {
		res, err := e.retriever.Retrieve(ctx, q.Query, k, e.minScore)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("evaluation query %d: %w", i, err)
		}

		qe := scoreQuery(q, res.Results)
		if len(qe.MatchedSources) > 0 {
			hits++
		}
		report.AvgRecall += qe.Recall
		report.AvgPrecision += qe.Precision
		report.AvgSimilarity += qe.AvgSimilarity
		report.MRR += qe.ReciprocalRank
		report.Details = append(report.Details, qe)
	}

	n := float64(len(queries))
	report.AvgRecall /= n
	report.AvgPrecision /= n
	report.AvgSimilarity /= n
	report.MRR /= n
	report.HitRate = float64(hits) / n
	return report, nil
}

func scoreQuery(q domain.EvaluationQuery, results []domain.ScoredResult) domain.QueryEvaluation {
	expected := make(map[string]struct{}, len(q.ExpectedSources))
	for _, s := range q.ExpectedSources {
		expected[s] = struct{}{}
	}

	qe := domain.QueryEvaluation{
		Query:            q.Query,
		RetrievedSources: []string{},
		MatchedSources:   []string{},
		MissingSources:   []string{},
	}

	seen := make(map[string]struct{})
	var scoreSum float64
	for rank, r := range results {
		scoreSum += float64(r.Score)
		src := r.Chunk.Metadata.Source
		_, isExpected := expected[src]
		if isExpected && qe.ReciprocalRank == 0 {
			qe.ReciprocalRank = 1 / float64(rank+1)
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		qe.RetrievedSources = append(qe.RetrievedSources, src)
		if isExpected {
			qe.MatchedSources = append(qe.MatchedSources, src)
		}
	}

	added := make(map[string]struct{})
	for _, s := range q.ExpectedSources {
		if _, ok := seen[s]; ok {
			continue
		}
		if _, ok := added[s]; ok {
			continue
		}
		added[s] = struct{}{}
		qe.MissingSources = append(qe.MissingSources, s)
	}

	if len(results) > 0 {
		qe.AvgSimilarity = scoreSum / float64(len(results))
	}
	if len(expected) > 0 {
		qe.Recall = float64(len(qe.MatchedSources)) / float64(len(expected))
	}
	if len(qe.RetrievedSources) > 0 {
		qe.Precision = float64(len(qe.MatchedSources)) / float64(len(qe.RetrievedSources))
	}
	return qe
}
