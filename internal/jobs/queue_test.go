package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

func TestMemoryJobQueue_ClaimsInOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryJobQueue(2)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Create(ctx, domain.NewIngestJob(id, "", nil, time.Now())))
	}

	first, err := q.GetPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "b", first[1].ID)

	second, err := q.GetPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].ID)

	none, err := q.GetPendingJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryJobQueue_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryJobQueue(0)

	job := domain.NewIngestJob("a", domain.IngestModeAppend, nil, time.Now())
	require.NoError(t, q.Create(ctx, job))
	job.Status = domain.IngestJobStatusFailed

	got, err := q.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusPending, got.Status)

	got.Retries = 99
	again, err := q.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(0), again.Retries)
}

func TestMemoryJobQueue_Lifecycle(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryJobQueue(10)

	docs := []domain.Document{{ID: "d", Text: "x", SourceName: "d.txt"}}
	require.NoError(t, q.Create(ctx, domain.NewIngestJob("a", "", docs, time.Now())))

	require.NoError(t, q.RecordFailure(ctx, "a", domain.IngestJobStatusPending, "retry 1: boom"))

	got, err := q.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusPending, got.Status)
	assert.Equal(t, int32(1), got.Retries)
	assert.Equal(t, "retry 1: boom", got.Error)
	assert.Nil(t, got.ProcessedAt)

	reclaimed, err := q.GetPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	stats := &domain.IngestStats{Documents: 1, Chunks: 1, IndexSize: 1}
	require.NoError(t, q.CompleteJob(ctx, "a", stats))

	got, err = q.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, stats, got.Stats)
	assert.NotNil(t, got.ProcessedAt)
	assert.Nil(t, got.Documents)
}

func TestMemoryJobQueue_RecordFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryJobQueue(10)
	require.NoError(t, q.Create(ctx, domain.NewIngestJob("a", "", nil, time.Now())))
	_, err := q.GetPendingJobs(ctx)
	require.NoError(t, err)

	require.NoError(t, q.RecordFailure(ctx, "a", domain.IngestJobStatusFailed, "max retries exceeded: boom"))

	got, err := q.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusFailed, got.Status)
	assert.Equal(t, int32(1), got.Retries)
	assert.NotNil(t, got.ProcessedAt)

	none, err := q.GetPendingJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryJobQueue_NotFound(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryJobQueue(10)

	_, err := q.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrIngestJobNotFound)
	assert.ErrorIs(t, q.CompleteJob(ctx, "missing", nil), domain.ErrIngestJobNotFound)
	assert.ErrorIs(t, q.RecordFailure(ctx, "missing", domain.IngestJobStatusFailed, ""), domain.ErrIngestJobNotFound)
}
