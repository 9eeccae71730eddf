package handlers

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/ragcore/internal/api"
	"github.com/cloo-solutions/ragcore/internal/domain"
)

// IngestJobService queues ingestion work for the background worker.
type IngestJobService interface {
	Submit(ctx context.Context, mode domain.IngestMode, docs []domain.Document) (*domain.IngestJob, error)
	Get(ctx context.Context, id string) (*domain.IngestJob, error)
}

type IngestHandler struct {
	svc IngestJobService
}

func NewIngestHandler(svc IngestJobService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestRequest struct {
	Mode      string            `json:"mode,omitempty"`
	Documents []domain.Document `json:"documents,omitempty"`
}

type IngestJobResponse struct {
	ID          string              `json:"id"`
	Mode        string              `json:"mode"`
	Status      string              `json:"status"`
	Documents   int                 `json:"documents"`
	Retries     int32               `json:"retries"`
	Error       string              `json:"error,omitempty"`
	Stats       *domain.IngestStats `json:"stats,omitempty"`
	CreatedAt   string              `json:"created_at"`
	ProcessedAt string              `json:"processed_at,omitempty"`
}

func jobToResponse(j *domain.IngestJob) *IngestJobResponse {
	resp := &IngestJobResponse{
		ID:        j.ID,
		Mode:      string(j.Mode),
		Status:    string(j.Status),
		Documents: len(j.Documents),
		Retries:   j.Retries,
		Error:     j.Error,
		Stats:     j.Stats,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *IngestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	mode := domain.IngestMode(req.Mode)
	if mode == "" {
		mode = domain.IngestModeReplace
	}
	if !domain.IsValidIngestMode(mode) {
		api.Error(w, http.StatusBadRequest, "mode must be replace or append")
		return
	}

	job, err := h.svc.Submit(r.Context(), mode, req.Documents)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Location", path.Join(r.URL.Path, job.ID))
	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func (h *IngestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}
