package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/service"
)

func introResult() *domain.RetrievalResult {
	return &domain.RetrievalResult{
		Results: []domain.ScoredResult{
			{
				Chunk: domain.Chunk{
					ID:   "intro_chunk_0",
					Text: "Welcome to the product.",
					Metadata: domain.ChunkMetadata{
						Source:      "intro.txt",
						TotalChunks: 1,
					},
				},
				Score:     0.91,
				Relevance: domain.RelevanceHigh,
			},
		},
		TotalFound:    3,
		FilteredCount: 1,
		MinScoreUsed:  0.65,
	}
}

func TestSearch_Success(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	svc.On("Search", mock.Anything, service.SearchInput{Query: "what is it", K: 3}).Return(introResult(), nil)

	w := postJSON(t, h.Search, SearchRequest{Query: "what is it", K: intPtr(3)})

	require.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "what is it", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "intro_chunk_0", resp.Results[0].ChunkID)
	assert.Equal(t, "high", resp.Results[0].Relevance)
	assert.Equal(t, "intro.txt", resp.Results[0].Metadata.Source)
	assert.Equal(t, 3, resp.TotalFound)
	assert.Equal(t, 1, resp.FilteredCount)
	assert.InDelta(t, 0.65, resp.MinScoreUsed, 1e-9)
	svc.AssertExpectations(t)
}

func TestSearch_DefaultsPassThrough(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	svc.On("Search", mock.Anything, mock.MatchedBy(func(in service.SearchInput) bool {
		return in.K == 0 && in.MinScore != nil && *in.MinScore == 0.2
	})).Return(&domain.RetrievalResult{}, nil)

	w := postJSON(t, h.Search, SearchRequest{Query: "q", MinScore: floatPtr(0.2)})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	decodeData(t, w, &resp)
	assert.NotNil(t, resp.Results)
	svc.AssertExpectations(t)
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name string
		body any
		want string
	}{
		{"malformed", `{"query":`, "invalid request body"},
		{"unknown field", `{"query":"q","top":3}`, "invalid request body"},
		{"empty query", SearchRequest{Query: "  "}, "query is required"},
		{"k zero", SearchRequest{Query: "q", K: intPtr(0)}, "k must be in [1, 20]"},
		{"k above max", SearchRequest{Query: "q", K: intPtr(21)}, "k must be in [1, 20]"},
		{"min score negative", SearchRequest{Query: "q", MinScore: floatPtr(-0.1)}, "min_score must be in [0, 1]"},
		{"min score above one", SearchRequest{Query: "q", MinScore: floatPtr(1.1)}, "min_score must be in [0, 1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSearchService)
			h := NewSearchHandler(svc, Limits{MaxTopK: 20})

			w := postJSON(t, h.Search, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	svc.On("Search", mock.Anything, mock.Anything).
		Return(nil, domain.EmbeddingError("provider unavailable", errors.New("503")))

	w := postJSON(t, h.Search, SearchRequest{Query: "q"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeEmbedding)
}

func TestRAG_Success(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	out := &service.RAGOutput{
		Query: "setup",
		Context: &domain.AggregatedContext{
			Context:    "a\n\n---\n\nb",
			Sources:    []string{"setup.md"},
			Scores:     []float32{0.9, 0.8},
			ChunkCount: 2,
			Metadata:   domain.ContextMetadata{TotalChars: 9, AvgScore: 0.85, SourcesCount: 1},
		},
	}
	svc.On("RAG", mock.Anything, service.RAGInput{Query: "setup", K: 2, MaxContextLength: 500}).Return(out, nil)

	w := postJSON(t, h.RAG, RAGRequest{Query: "setup", K: intPtr(2), MaxContextLength: intPtr(500)})

	require.Equal(t, http.StatusOK, w.Code)
	var resp RAGResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "a\n\n---\n\nb", resp.Context)
	assert.Equal(t, []string{"setup.md"}, resp.Sources)
	assert.Equal(t, 2, resp.ChunkCount)
	assert.Equal(t, 1, resp.Metadata.SourcesCount)
	svc.AssertExpectations(t)
}

func TestRAG_InsufficientResults(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	svc.On("RAG", mock.Anything, mock.Anything).Return(nil, domain.ErrInsufficientResults)

	w := postJSON(t, h.RAG, RAGRequest{Query: "unrelated"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no results above the minimum score")
}

func TestRAG_InvalidMaxContextLength(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	w := postJSON(t, h.RAG, RAGRequest{Query: "q", MaxContextLength: intPtr(0)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "RAG", mock.Anything, mock.Anything)
}

func TestEmbed_Single(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{})

	svc.On("Embed", mock.Anything, []string{"hello"}).Return([][]float32{{0.6, 0.8}}, nil)
	svc.On("Dimension").Return(2)
	svc.On("ModelName").Return("hash-test")

	w := postJSON(t, h.Embed, EmbedRequest{Text: "hello"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp EmbedResponse
	decodeData(t, w, &resp)
	assert.Equal(t, []float32{0.6, 0.8}, resp.Embedding)
	assert.Nil(t, resp.Embeddings)
	assert.Equal(t, 2, resp.Dimension)
	assert.Equal(t, "hash-test", resp.Model)
}

func TestEmbed_Batch(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{})

	svc.On("Embed", mock.Anything, []string{"a", "b"}).Return([][]float32{{1, 0}, {0, 1}}, nil)
	svc.On("Dimension").Return(2)
	svc.On("ModelName").Return("hash-test")

	w := postJSON(t, h.Embed, EmbedRequest{Texts: []string{"a", "b"}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp EmbedResponse
	decodeData(t, w, &resp)
	assert.Len(t, resp.Embeddings, 2)
}

func TestEmbed_RequiresExactlyOneInput(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{})

	w := postJSON(t, h.Embed, EmbedRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h.Embed, EmbedRequest{Text: "a", Texts: []string{"b"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestEvaluate_Success(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	queries := []domain.EvaluationQuery{{Query: "install", ExpectedSources: []string{"setup.md"}}}
	report := &domain.EvaluationReport{TotalQueries: 1, K: 5, AvgRecall: 1, AvgPrecision: 0.5, HitRate: 1, MRR: 1}
	svc.On("Evaluate", mock.Anything, queries, 5).Return(report, nil)

	w := postJSON(t, h.Evaluate, EvaluateRequest{Queries: queries, K: intPtr(5)})

	require.Equal(t, http.StatusOK, w.Code)
	var resp domain.EvaluationReport
	decodeData(t, w, &resp)
	assert.Equal(t, 1, resp.TotalQueries)
	assert.InDelta(t, 0.5, resp.AvgPrecision, 1e-9)
	svc.AssertExpectations(t)
}

func TestEvaluate_Validation(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, Limits{MaxTopK: 20})

	w := postJSON(t, h.Evaluate, EvaluateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h.Evaluate, EvaluateRequest{Queries: []domain.EvaluationQuery{{Query: ""}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "queries[0].query is required")

	w = postJSON(t, h.Evaluate, EvaluateRequest{Queries: []domain.EvaluationQuery{{Query: "q"}}, K: intPtr(50)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
}
