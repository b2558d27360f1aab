package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	s := &Store{prefix: "results/"}
	assert.Equal(t, "results/abc.csv", s.key("abc"))
	s.prefix = ""
	assert.Equal(t, "abc.csv", s.key("abc"))
}

// TestStore_Integration needs a reachable MinIO; set DOCMIND_TEST_MINIO_ENDPOINT
// (and optionally _ACCESS_KEY / _SECRET_KEY).
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("DOCMIND_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("DOCMIND_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: envOr("DOCMIND_TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("DOCMIND_TEST_MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    "docmind-test",
		Prefix:    "results",
	}, nil)
	require.NoError(t, err)

	id := docmind.NewID()
	loc, err := s.Put(ctx, id, []byte("x\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3://docmind-test/results/"+id+".csv", loc)

	rc, err := s.Open(ctx, id)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "x\n1\n", string(data))

	_, err = s.Open(ctx, docmind.NewID())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
