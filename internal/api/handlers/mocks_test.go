package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/service"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) (*domain.RetrievalResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrievalResult), args.Error(1)
}

func (m *MockSearchService) RAG(ctx context.Context, input service.RAGInput) (*service.RAGOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RAGOutput), args.Error(1)
}

func (m *MockSearchService) Evaluate(ctx context.Context, queries []domain.EvaluationQuery, k int) (*domain.EvaluationReport, error) {
	args := m.Called(ctx, queries, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EvaluationReport), args.Error(1)
}

func (m *MockSearchService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockSearchService) ModelName() string {
	return m.Called().String(0)
}

func (m *MockSearchService) Dimension() int {
	return m.Called().Int(0)
}

type MockIndexService struct {
	mock.Mock
}

func (m *MockIndexService) Health(ctx context.Context) (*service.HealthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HealthStatus), args.Error(1)
}

func (m *MockIndexService) ListChunks(ctx context.Context, offset, limit int) (domain.ChunkPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(domain.ChunkPage), args.Error(1)
}

func (m *MockIndexService) Stats(ctx context.Context) (domain.IndexStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.IndexStats), args.Error(1)
}

type MockIngestJobService struct {
	mock.Mock
}

func (m *MockIngestJobService) Submit(ctx context.Context, mode domain.IngestMode, docs []domain.Document) (*domain.IngestJob, error) {
	args := m.Called(ctx, mode, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobService) Get(ctx context.Context, id string) (*domain.IngestJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// decodeData unwraps the {"data": ...} envelope into v.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
