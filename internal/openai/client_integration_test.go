//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_EmbedBatch_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	vecs, err := client.EmbedBatch(ctx, []string{
		"This is a test document for generating embeddings.",
		"A second, unrelated sentence.",
	})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], DefaultEmbeddingDimensions)
}
