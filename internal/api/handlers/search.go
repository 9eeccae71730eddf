package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragcore/internal/api"
	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/service"
)

// SearchService is the query side of the retrieval core.
type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*domain.RetrievalResult, error)
	RAG(ctx context.Context, input service.RAGInput) (*service.RAGOutput, error)
	Evaluate(ctx context.Context, queries []domain.EvaluationQuery, k int) (*domain.EvaluationReport, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimension() int
}

// Limits bounds request parameters at the HTTP boundary.
type Limits struct {
	MaxTopK int
}

type SearchHandler struct {
	svc    SearchService
	limits Limits
}

func NewSearchHandler(svc SearchService, limits Limits) *SearchHandler {
	if limits.MaxTopK <= 0 {
		limits.MaxTopK = 20
	}
	return &SearchHandler{svc: svc, limits: limits}
}

type SearchRequest struct {
	Query    string   `json:"query"`
	K        *int     `json:"k,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

type RAGRequest struct {
	Query            string   `json:"query"`
	K                *int     `json:"k,omitempty"`
	MinScore         *float64 `json:"min_score,omitempty"`
	MaxContextLength *int     `json:"max_context_length,omitempty"`
}

type EmbedRequest struct {
	Text  string   `json:"text,omitempty"`
	Texts []string `json:"texts,omitempty"`
}

type EvaluateRequest struct {
	Queries []domain.EvaluationQuery `json:"queries"`
	K       *int                     `json:"k,omitempty"`
}

type SearchResultResponse struct {
	ChunkID   string               `json:"chunk_id"`
	Text      string               `json:"text"`
	Score     float32              `json:"score"`
	Relevance string               `json:"relevance"`
	Metadata  domain.ChunkMetadata `json:"metadata"`
}

type SearchResponse struct {
	Query         string                 `json:"query"`
	Results       []SearchResultResponse `json:"results"`
	TotalFound    int                    `json:"total_found"`
	FilteredCount int                    `json:"filtered_count"`
	MinScoreUsed  float64                `json:"min_score_used"`
}

type RAGResponse struct {
	Query      string                 `json:"query"`
	Context    string                 `json:"context"`
	Sources    []string               `json:"sources"`
	Scores     []float32              `json:"scores"`
	ChunkCount int                    `json:"chunk_count"`
	Metadata   domain.ContextMetadata `json:"metadata"`
}

type EmbedResponse struct {
	Embedding  []float32   `json:"embedding,omitempty"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Dimension  int         `json:"dimension"`
	Model      string      `json:"model"`
}

func resultsToResponse(results []domain.ScoredResult) []SearchResultResponse {
	out := make([]SearchResultResponse, len(results))
	for i, r := range results {
		out[i] = SearchResultResponse{
			ChunkID:   r.Chunk.ID,
			Text:      r.Chunk.Text,
			Score:     r.Score,
			Relevance: string(r.Relevance),
			Metadata:  r.Chunk.Metadata,
		}
	}
	return out
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}
	k, err := h.validateQuery(req.Query, req.K, req.MinScore)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	res, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:    req.Query,
		K:        k,
		MinScore: req.MinScore,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Query:         req.Query,
		Results:       resultsToResponse(res.Results),
		TotalFound:    res.TotalFound,
		FilteredCount: res.FilteredCount,
		MinScoreUsed:  res.MinScoreUsed,
	})
}

func (h *SearchHandler) RAG(w http.ResponseWriter, r *http.Request) {
	var req RAGRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}
	k, err := h.validateQuery(req.Query, req.K, req.MinScore)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	maxLen := 0
	if req.MaxContextLength != nil {
		if *req.MaxContextLength <= 0 {
			api.Error(w, http.StatusBadRequest, "max_context_length must be positive")
			return
		}
		maxLen = *req.MaxContextLength
	}

	out, err := h.svc.RAG(r.Context(), service.RAGInput{
		Query:            req.Query,
		K:                k,
		MinScore:         req.MinScore,
		MaxContextLength: maxLen,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RAGResponse{
		Query:      out.Query,
		Context:    out.Context.Context,
		Sources:    out.Context.Sources,
		Scores:     out.Context.Scores,
		ChunkCount: out.Context.ChunkCount,
		Metadata:   out.Context.Metadata,
	})
}

func (h *SearchHandler) Embed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	single := req.Text != ""
	if single == (len(req.Texts) > 0) {
		api.Error(w, http.StatusBadRequest, "exactly one of text or texts is required")
		return
	}
	texts := req.Texts
	if single {
		texts = []string{req.Text}
	}

	vecs, err := h.svc.Embed(r.Context(), texts)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := EmbedResponse{Dimension: h.svc.Dimension(), Model: h.svc.ModelName()}
	if single {
		resp.Embedding = vecs[0]
	} else {
		resp.Embeddings = vecs
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *SearchHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}
	if len(req.Queries) == 0 {
		api.Error(w, http.StatusBadRequest, "queries is required")
		return
	}
	for i, q := range req.Queries {
		if strings.TrimSpace(q.Query) == "" {
			api.HandleError(w, domain.InvalidParameterError("queries[%d].query is required", i))
			return
		}
	}
	k, err := h.validateK(req.K)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	report, err := h.svc.Evaluate(r.Context(), req.Queries, k)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, report)
}

// validateQuery returns the requested k, or 0 when the service default
// applies.
func (h *SearchHandler) validateQuery(query string, k *int, minScore *float64) (int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, domain.InvalidParameterError("query is required")
	}
	if minScore != nil && (*minScore < 0 || *minScore > 1) {
		return 0, domain.InvalidParameterError("min_score must be in [0, 1]")
	}
	return h.validateK(k)
}

func (h *SearchHandler) validateK(k *int) (int, error) {
	if k == nil {
		return 0, nil
	}
	if *k < 1 || *k > h.limits.MaxTopK {
		return 0, domain.InvalidParameterError("k must be in [1, %d]", h.limits.MaxTopK)
	}
	return *k, nil
}
