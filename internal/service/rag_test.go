package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/embedding"
	"github.com/cloo-solutions/ragcore/internal/index"
	"github.com/cloo-solutions/ragcore/internal/logging"
)

func newTestRAG(t *testing.T) (*RAGService, *index.MemoryIndex) {
	t.Helper()
	embedder := embedding.NewHashEmbedder(128, embedding.HashModelName)
	live := index.NewMemoryIndex(128, embedding.HashModelName)

	ingest := NewIngestService(newTestChunker(t), directBatcher{embedder}, index.NewPublisher(live, nil, nil), nil, logging.Discard())
	_, err := ingest.Ingest(context.Background(), domain.IngestModeReplace, []domain.Document{
		{ID: "intro", SourceName: "intro.txt", Text: "Ragcore splits documents into overlapping chunks and embeds them into vectors."},
		{ID: "faq", SourceName: "faq.txt", Text: "Billing questions: invoices are sent monthly by email."},
		{ID: "setup", SourceName: "setup.md", Text: "Install the daemon, set the port and start serving requests."},
	})
	require.NoError(t, err)

	svc := NewRAGService(embedder, live, live, DefaultRelevanceConfig(), 0, RAGConfig{DefaultTopK: 3, MaxContextLength: 500})
	return svc, live
}

func ptr(f float64) *float64 { return &f }

func TestRAGService_SearchRanksMatchingSourceFirst(t *testing.T) {
	svc, _ := newTestRAG(t)

	res, err := svc.Search(context.Background(), SearchInput{Query: "invoices billing monthly", MinScore: ptr(0)})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "faq.txt", res.Results[0].Chunk.Metadata.Source)
	assert.LessOrEqual(t, len(res.Results), 3)
	assert.Equal(t, 0.0, res.MinScoreUsed)
}

func TestRAGService_RAG(t *testing.T) {
	svc, _ := newTestRAG(t)

	out, err := svc.RAG(context.Background(), RAGInput{Query: "overlapping chunks vectors", K: 2, MinScore: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, "overlapping chunks vectors", out.Query)
	require.NotEmpty(t, out.Context.Sources)
	assert.Equal(t, "intro.txt", out.Context.Sources[0])
	assert.LessOrEqual(t, out.Context.Metadata.TotalChars, 500)
}

func TestRAGService_RAGInsufficientResults(t *testing.T) {
	svc, _ := newTestRAG(t)

	_, err := svc.RAG(context.Background(), RAGInput{Query: "overlapping chunks", K: 2, MinScore: ptr(1.1)})
	assert.ErrorIs(t, err, domain.ErrInsufficientResults)
}

func TestRAGService_Evaluate(t *testing.T) {
	svc, _ := newTestRAG(t)

	report, err := svc.Evaluate(context.Background(), []domain.EvaluationQuery{
		{Query: "install daemon port", ExpectedSources: []string{"setup.md"}},
		{Query: "invoices email", ExpectedSources: []string{"faq.txt"}},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.AvgRecall)
	assert.Equal(t, 1.0, report.HitRate)
	assert.Equal(t, 1.0, report.MRR)
}

func TestRAGService_EmbedAndHealth(t *testing.T) {
	svc, live := newTestRAG(t)
	ctx := context.Background()

	vecs, err := svc.Embed(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 128)

	_, err = svc.Embed(ctx, []string{"ok", " "})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	health, err := svc.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.IndexLoaded)
	assert.Equal(t, live.Len(), health.TotalChunks)
	assert.Equal(t, embedding.HashModelName, health.EmbeddingModel)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Sources)

	page, err := svc.ListChunks(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.Chunks, 2)
	assert.Equal(t, live.Len(), page.Total)
}
