package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	s := New(dir)
	ctx := context.Background()

	loc, err := s.Put(ctx, "0190a6b2-7c1d-7000-8000-000000000001", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "0190a6b2-7c1d-7000-8000-000000000001.csv"), loc)

	rc, err := s.Open(ctx, "0190a6b2-7c1d-7000-8000-000000000001")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestOpenMissing(t *testing.T) {
	_, err := New(t.TempDir()).Open(context.Background(), "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	for _, id := range []string{"", "../x", "a/b", ".hidden"} {
		_, err := s.Put(context.Background(), id, nil)
		assert.Error(t, err, id)
	}
}
