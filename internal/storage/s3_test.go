//go:build integration

package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/testutil"
)

func TestS3Client_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "ragcore-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	_, err = client.Get(ctx, "missing.ragx")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	payload := []byte("RAGX snapshot bytes")
	require.NoError(t, client.Put(ctx, "processed/index.ragx", io.MultiReader(bytes.NewReader(payload)), int64(len(payload))))

	body, err := client.Get(ctx, "processed/index.ragx")
	require.NoError(t, err)
	got, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	meta, err := client.Stat(ctx, "processed/index.ragx")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), meta.ContentLength)
	assert.False(t, meta.LastModified.IsZero())

	require.NoError(t, client.Delete(ctx, "processed/index.ragx"))
	_, err = client.Get(ctx, "processed/index.ragx")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = client.Stat(ctx, "processed/index.ragx")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
