//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpusd/internal/testutil"
)

func TestS3ClientIntegration(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { rc.Terminate(ctx) })

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	const bucket = "corpus-docs"

	t.Run("ensure bucket is idempotent", func(t *testing.T) {
		require.NoError(t, client.EnsureBucket(ctx, bucket))
		require.NoError(t, client.EnsureBucket(ctx, bucket))
	})

	t.Run("put, head, and get round trip", func(t *testing.T) {
		body := []byte("# S3 Document\n\ncontent stored in object storage")
		require.NoError(t, client.PutObject(ctx, bucket, "guides/doc.md", body))

		meta, err := client.HeadObject(ctx, bucket, "guides/doc.md")
		require.NoError(t, err)
		assert.Equal(t, int64(len(body)), meta.ContentLength)
		assert.False(t, meta.LastModified.IsZero())

		data, err := client.GetObject(ctx, bucket, "guides/doc.md")
		require.NoError(t, err)
		assert.Equal(t, body, data)
	})

	t.Run("missing object is an error", func(t *testing.T) {
		_, err := client.GetObject(ctx, bucket, "missing/key.md")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing/key.md")
	})
}
