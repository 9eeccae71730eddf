package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/pagination"
	"github.com/cloo-solutions/ragcore/internal/service"
)

func get(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealth_Loaded(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "1.2.3")

	svc.On("Health", mock.Anything).Return(&service.HealthStatus{
		IndexLoaded:    true,
		TotalChunks:    12,
		EmbeddingModel: "all-MiniLM-L6-v2",
		Dimension:      384,
	}, nil)

	w := get(h.Health, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.True(t, resp.IndexLoaded)
	assert.Equal(t, 12, resp.TotalChunks)
	assert.Equal(t, 384, resp.Dimension)
}

func TestHealth_Unavailable(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	svc.On("Health", mock.Anything).Return(nil, errors.New("connection refused"))

	w := get(h.Health, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func chunks(ids ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		out[i] = domain.Chunk{ID: id, Text: "text " + id}
	}
	return out
}

func TestListChunks_FirstPage(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	svc.On("ListChunks", mock.Anything, 0, 2).
		Return(domain.ChunkPage{Chunks: chunks("a", "b"), Total: 5, Generation: 3}, nil)

	w := get(h.ListChunks, "/chunks?limit=2")

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChunkListResponse
	decodeData(t, w, &resp)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 5, resp.Total)
	assert.True(t, resp.HasMore)
	assert.Equal(t, uint64(3), resp.Generation)

	next, err := pagination.DecodeCursor(resp.Cursor)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Offset)
	assert.Equal(t, uint64(3), next.Generation)
}

func TestListChunks_WithCursor(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	svc.On("ListChunks", mock.Anything, 4, defaultPageLimit).
		Return(domain.ChunkPage{Chunks: chunks("e"), Total: 5, Generation: 3}, nil)

	w := get(h.ListChunks, "/chunks?cursor="+pagination.EncodeCursor(4, 3))

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChunkListResponse
	decodeData(t, w, &resp)
	assert.False(t, resp.HasMore)
	assert.Empty(t, resp.Cursor)
}

func TestListChunks_StaleCursor(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	svc.On("ListChunks", mock.Anything, 4, defaultPageLimit).
		Return(domain.ChunkPage{Chunks: chunks("x"), Total: 9, Generation: 4}, nil)

	w := get(h.ListChunks, "/chunks?cursor="+pagination.EncodeCursor(4, 3))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListChunks_BadParams(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	assert.Equal(t, http.StatusBadRequest, get(h.ListChunks, "/chunks?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(h.ListChunks, "/chunks?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(h.ListChunks, "/chunks?cursor=%21%21").Code)
	svc.AssertNotCalled(t, "ListChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestListChunks_LimitCapped(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	svc.On("ListChunks", mock.Anything, 0, maxPageLimit).Return(domain.ChunkPage{}, nil)

	w := get(h.ListChunks, "/chunks?limit=5000")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	svc := new(MockIndexService)
	h := NewIndexHandler(svc, "dev")

	svc.On("Stats", mock.Anything).Return(domain.IndexStats{
		Entries: 10, Sources: 3, Dimension: 384, Model: "m", Generation: 2,
	}, nil)

	w := get(h.Stats, "/stats")

	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.IndexStats
	decodeData(t, w, &stats)
	assert.Equal(t, 10, stats.Entries)
	assert.Equal(t, 3, stats.Sources)
	assert.Equal(t, "m", stats.Model)
}
