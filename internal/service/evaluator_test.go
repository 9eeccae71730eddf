package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

func retrieval(results ...domain.ScoredResult) *domain.RetrievalResult {
	return &domain.RetrievalResult{Results: results, TotalFound: len(results), FilteredCount: len(results)}
}

func TestEvaluator_ComputesMetrics(t *testing.T) {
	r := new(MockQueryRetriever)
	r.On("Retrieve", mock.Anything, "what is it", 3, 0.0).Return(retrieval(
		scored("1", "faq.txt", "x", 0.8),
		scored("2", "intro.txt", "x", 0.6),
		scored("3", "intro.txt", "x", 0.4),
	), nil)
	r.On("Retrieve", mock.Anything, "unrelated", 3, 0.0).Return(retrieval(
		scored("4", "other.txt", "x", 0.2),
	), nil)

	report, err := NewEvaluator(r, 0).Evaluate(context.Background(), []domain.EvaluationQuery{
		{Query: "what is it", ExpectedSources: []string{"intro.txt", "setup.txt"}},
		{Query: "unrelated", ExpectedSources: []string{"intro.txt"}},
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalQueries)
	assert.Equal(t, 3, report.K)
	require.Len(t, report.Details, 2)

	first := report.Details[0]
	assert.InDelta(t, 0.5, first.Recall, 1e-9)
	assert.InDelta(t, 0.5, first.Precision, 1e-9)
	assert.InDelta(t, 0.6, first.AvgSimilarity, 1e-6)
	assert.InDelta(t, 0.5, first.ReciprocalRank, 1e-9)
	assert.Equal(t, []string{"faq.txt", "intro.txt"}, first.RetrievedSources)
	assert.Equal(t, []string{"intro.txt"}, first.MatchedSources)
	assert.Equal(t, []string{"setup.txt"}, first.MissingSources)

	second := report.Details[1]
	assert.Equal(t, 0.0, second.Recall)
	assert.Equal(t, 0.0, second.Precision)
	assert.Equal(t, []string{"intro.txt"}, second.MissingSources)

	assert.InDelta(t, 0.25, report.AvgRecall, 1e-9)
	assert.InDelta(t, 0.25, report.AvgPrecision, 1e-9)
	assert.InDelta(t, 0.4, report.AvgSimilarity, 1e-6)
	assert.InDelta(t, 0.25, report.MRR, 1e-9)
	assert.InDelta(t, 0.5, report.HitRate, 1e-9)
}

func TestEvaluator_EmptyExpectedSourcesGivesZeroRecall(t *testing.T) {
	r := new(MockQueryRetriever)
	r.On("Retrieve", mock.Anything, "q", 5, 0.0).Return(retrieval(scored("1", "a.txt", "x", 0.9)), nil)

	report, err := NewEvaluator(r, 0).Evaluate(context.Background(), []domain.EvaluationQuery{
		{Query: "q", ExpectedSources: []string{}},
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.Details[0].Recall)
	assert.Equal(t, 0.0, report.Details[0].Precision)
	assert.Equal(t, 0.0, report.HitRate)
}

func TestEvaluator_NoResults(t *testing.T) {
	r := new(MockQueryRetriever)
	r.On("Retrieve", mock.Anything, "q", 5, 0.3).Return(retrieval(), nil)

	report, err := NewEvaluator(r, 0.3).Evaluate(context.Background(), []domain.EvaluationQuery{
		{Query: "q", ExpectedSources: []string{"a.txt"}},
	}, 5)
	require.NoError(t, err)
	d := report.Details[0]
	assert.Equal(t, 0.0, d.Precision)
	assert.Equal(t, 0.0, d.AvgSimilarity)
	assert.Empty(t, d.RetrievedSources)
}

func TestEvaluator_AbortsOnFirstError(t *testing.T) {
	r := new(MockQueryRetriever)
	r.On("Retrieve", mock.Anything, "ok", 2, 0.0).Return(retrieval(), nil)
	r.On("Retrieve", mock.Anything, "broken", 2, 0.0).Return(nil, domain.EmbeddingError("down", errors.New("timeout")))

	_, err := NewEvaluator(r, 0).Evaluate(context.Background(), []domain.EvaluationQuery{
		{Query: "ok"}, {Query: "broken"}, {Query: "never"},
	}, 2)

	assert.ErrorIs(t, err, domain.ErrEmbedding)
	r.AssertNotCalled(t, "Retrieve", mock.Anything, "never", 2, 0.0)
}

func TestEvaluator_InvalidInput(t *testing.T) {
	e := NewEvaluator(new(MockQueryRetriever), 0)

	_, err := e.Evaluate(context.Background(), nil, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = e.Evaluate(context.Background(), []domain.EvaluationQuery{{Query: "q"}}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
