package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestPutObjectWritesAndReturnsURI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "run-1/shot.png", "image/png", []byte("png"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "run-1", "shot.png"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "shot.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("png"), data)
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.png", "image/png", []byte("x"))
	require.Error(t, err)
}
