package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64, "")
	ctx := context.Background()

	a, err := e.Embed(ctx, "Vector search with cosine similarity")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Vector search with cosine similarity")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	assert.Equal(t, HashModelName, e.ModelName())
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewHashEmbedder(256, "")
	ctx := context.Background()

	q, _ := e.Embed(ctx, "how does chunk overlap work")
	near, _ := e.Embed(ctx, "chunk overlap keeps context between windows")
	far, _ := e.Embed(ctx, "bananas are rich in potassium")

	assert.Greater(t, Dot(q, near), Dot(q, far))
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(16, "")

	_, err := e.Embed(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestHashEmbedder_NeverReturnsZeroVector(t *testing.T) {
	e := NewHashEmbedder(32, "")
	ctx := context.Background()

	for _, text := range []string{"the of and", "le la les", "?!", "--- ...", "a"} {
		t.Run(text, func(t *testing.T) {
			v, err := e.Embed(ctx, text)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, norm(v), 1e-5)
		})
	}

	stop, err := e.Embed(ctx, "the of and")
	require.NoError(t, err)
	other, err := e.Embed(ctx, "to be or")
	require.NoError(t, err)
	assert.NotEqual(t, stop, other)
}

func TestHashEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	e := NewHashEmbedder(32, "")
	ctx := context.Background()
	texts := []string{"first text", "second text", "third text"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestHashEmbedder_CancelledContext(t *testing.T) {
	e := NewHashEmbedder(16, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "text")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)

	src := []float32{2, 0}
	cp := Normalized(src)
	assert.Equal(t, float32(2), src[0])
	assert.Equal(t, float32(1), cp[0])
}
