package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*WatermarkStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "watermarks.txt")
	store, err := NewWatermarkStore(path)
	require.NoError(t, err)
	return store, path
}

func TestGet_AbsentFile(t *testing.T) {
	store, _ := newStore(t)

	itemID, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "", itemID)
}

func TestSetAndGet(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "alice", "item100"))

	itemID, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "item100", itemID)
}

func TestSet_ReplacesExisting(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "alice", "item100"))
	require.NoError(t, store.Set(ctx, "bob", "item900"))
	require.NoError(t, store.Set(ctx, "alice", "item200"))

	itemID, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "item200", itemID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice: item200\nbob: item900\n", string(data))
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()

	content := "alice: item100\ngarbage line without separator\n: orphan\nbob: item900\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	itemID, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "item100", itemID)

	itemID, err = store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "item900", itemID)
}

func TestSet_DropsMalformedLinesOnRewrite(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()

	content := "alice: item100\ngarbage line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, store.Set(ctx, "bob", "item900"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice: item100\nbob: item900\n", string(data))
}
