package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/ragcore/internal/api"
	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/pagination"
	"github.com/cloo-solutions/ragcore/internal/service"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// IndexService exposes the state of the served index.
type IndexService interface {
	Health(ctx context.Context) (*service.HealthStatus, error)
	ListChunks(ctx context.Context, offset, limit int) (domain.ChunkPage, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}

type IndexHandler struct {
	svc     IndexService
	version string
}

func NewIndexHandler(svc IndexService, version string) *IndexHandler {
	return &IndexHandler{svc: svc, version: version}
}

type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	IndexLoaded    bool   `json:"index_loaded"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

type ChunkListResponse struct {
	pagination.PageResult[domain.Chunk]
	Generation uint64 `json:"generation"`
}

// Health reports readiness. The service is healthy even with an empty index,
// index_loaded tells the two apart.
func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Health(r.Context())
	if err != nil {
		api.JSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Version: h.version})
		return
	}

	api.JSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        h.version,
		IndexLoaded:    status.IndexLoaded,
		TotalChunks:    status.TotalChunks,
		EmbeddingModel: status.EmbeddingModel,
		Dimension:      status.Dimension,
	})
}

func (h *IndexHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxPageLimit)
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	offset := 0
	if cursor != nil {
		offset = cursor.Offset
	}

	page, err := h.svc.ListChunks(r.Context(), offset, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if err := cursor.Check(page.Generation); err != nil {
		if errors.Is(err, pagination.ErrStaleCursor) {
			api.Error(w, http.StatusConflict, err.Error())
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChunkListResponse{
		PageResult: pagination.NewPage(page.Chunks, offset, page.Total, page.Generation),
		Generation: page.Generation,
	})
}

func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}
