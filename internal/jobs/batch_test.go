package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/logging"
)

// fakeBatchAPI encodes each text's position as the first vector component.
type fakeBatchAPI struct {
	mu       sync.Mutex
	calls    int
	sizes    []int
	failures map[string]int
	err      error
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeBatchAPI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.sizes = append(f.sizes, len(texts))
	if left := f.failures[texts[0]]; left > 0 {
		f.failures[texts[0]] = left - 1
		f.mu.Unlock()
		return nil, f.err
	}
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		var n float32
		_, _ = fmt.Sscanf(t, "t%f", &n)
		out[i] = []float32{n, 1}
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestBatchEmbedder_PreservesOrder(t *testing.T) {
	api := &fakeBatchAPI{}
	b := NewBatchEmbedder(api, BatchConfig{BatchSize: 3, Workers: 4}, logging.Discard())

	vecs, err := b.EmbedAll(context.Background(), texts(10))
	require.NoError(t, err)
	require.Len(t, vecs, 10)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
	assert.Equal(t, 4, api.calls)
	assert.ElementsMatch(t, []int{3, 3, 3, 1}, api.sizes)
	assert.LessOrEqual(t, api.peak.Load(), int32(4))
}

func TestBatchEmbedder_Empty(t *testing.T) {
	api := &fakeBatchAPI{}
	b := NewBatchEmbedder(api, BatchConfig{}, logging.Discard())

	vecs, err := b.EmbedAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, api.calls)
}

func TestBatchEmbedder_RetriesTransientFailure(t *testing.T) {
	api := &fakeBatchAPI{
		failures: map[string]int{"t0": 2},
		err:      domain.EmbeddingError("timeout", errors.New("deadline")),
	}
	b := NewBatchEmbedder(api, BatchConfig{BatchSize: 5, Workers: 1, MaxAttempts: 3}, logging.Discard())

	vecs, err := b.EmbedAll(context.Background(), texts(5))
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, 3, api.calls)
}

func TestBatchEmbedder_GivesUpAfterMaxAttempts(t *testing.T) {
	api := &fakeBatchAPI{
		failures: map[string]int{"t0": 10},
		err:      domain.EmbeddingError("timeout", errors.New("deadline")),
	}
	b := NewBatchEmbedder(api, BatchConfig{BatchSize: 5, Workers: 1, MaxAttempts: 2}, logging.Discard())

	_, err := b.EmbedAll(context.Background(), texts(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Equal(t, 2, api.calls)
}

func TestBatchEmbedder_PermanentErrorNotRetried(t *testing.T) {
	api := &fakeBatchAPI{
		failures: map[string]int{"t0": 10},
		err:      domain.InvalidParameterError("text 0 cannot be empty"),
	}
	b := NewBatchEmbedder(api, BatchConfig{BatchSize: 5, Workers: 1, MaxAttempts: 3}, logging.Discard())

	_, err := b.EmbedAll(context.Background(), texts(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	assert.Equal(t, 1, api.calls)
}

func TestBatchEmbedder_CancelledContext(t *testing.T) {
	api := &fakeBatchAPI{}
	b := NewBatchEmbedder(api, BatchConfig{BatchSize: 1}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.EmbedAll(ctx, texts(3))
	assert.ErrorIs(t, err, context.Canceled)
}
