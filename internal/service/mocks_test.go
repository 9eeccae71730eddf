package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// MockEmbedder mocks an embedding provider
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) Dimension() int    { return 3 }
func (m *MockEmbedder) ModelName() string { return "mock-model" }

// MockVectorIndex mocks a vector index backend
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockVectorIndex) Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *MockVectorIndex) Size(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockQueryRetriever mocks the retriever used by the evaluator
type MockQueryRetriever struct {
	mock.Mock
}

func (m *MockQueryRetriever) Retrieve(ctx context.Context, query string, k int, minScore float64) (*domain.RetrievalResult, error) {
	args := m.Called(ctx, query, k, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrievalResult), args.Error(1)
}

func chunkFrom(id, source, text string) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, Metadata: domain.ChunkMetadata{Source: source}}
}

func hit(id, source string, score float32) domain.SearchResult {
	return domain.SearchResult{Chunk: chunkFrom(id, source, "text "+id), Score: score}
}

func scored(id, source, text string, score float32) domain.ScoredResult {
	return domain.ScoredResult{Chunk: chunkFrom(id, source, text), Score: score}
}
