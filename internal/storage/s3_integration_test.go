//go:build integration

package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/imtdakar/imtbot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(ctx context.Context, t *testing.T) (*S3Client, func()) {
	rc := testutil.NewRustFSContainer(ctx, t)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "imtbot-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	// second call is a no-op
	require.NoError(t, client.EnsureBucket(ctx))

	return client, func() { rc.Terminate(ctx) }
}

func TestIntegration_UploadDownload(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	payload := []byte(`{"version":1,"strategy":"paragraph","chunks":[]}`)
	require.NoError(t, client.Upload(ctx, DefaultIndexKey, bytes.NewReader(payload), int64(len(payload))))

	meta, err := client.HeadObject(ctx, DefaultIndexKey)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), meta.ContentLength)

	var buf bytes.Buffer
	n, err := client.Download(ctx, DefaultIndexKey, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestIntegration_DownloadMissing(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	_, err := client.Download(ctx, "index/absent.json", &bytes.Buffer{})

	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestIntegration_PushPullFile(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	dir := t.TempDir()
	src := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"version":1}`), 0o644))

	size, err := client.PushFile(ctx, src, DefaultIndexKey)
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)

	dst := filepath.Join(dir, "pulled", "index.json")
	n, err := client.PullFile(ctx, DefaultIndexKey, dst)
	require.NoError(t, err)
	assert.Equal(t, size, n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(got))
}

func TestIntegration_PullMissingLeavesExistingFile(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	dst := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(dst, []byte(`{"version":1}`), 0o644))

	_, err := client.PullFile(ctx, "index/absent.json", dst)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(got))
}
