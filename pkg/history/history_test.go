package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.json"), logger.Nop())
	require.NoError(t, err)
	return store
}

func TestAddAndIsKnown(t *testing.T) {
	store := newTestStore(t)

	assert.False(t, store.IsKnown("1001"))
	store.Add("1001")
	assert.True(t, store.IsKnown("1001"))
	assert.Equal(t, 1, store.Size())

	// Adding the same id again does not grow the set.
	store.Add("1001")
	assert.Equal(t, 1, store.Size())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	store, err := NewStore(path, logger.Nop())
	require.NoError(t, err)
	store.Add("a")
	store.Add("b")
	store.Add("c")
	require.NoError(t, store.Save())

	reloaded, err := NewStore(path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, 3, reloaded.Size())
	assert.True(t, reloaded.IsKnown("a"))
	assert.True(t, reloaded.IsKnown("b"))
	assert.True(t, reloaded.IsKnown("c"))
	assert.False(t, reloaded.IsKnown("d"))
	assert.False(t, reloaded.LastUpdated().IsZero())
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Load())
	assert.Equal(t, 0, store.Size())
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store, err := NewStore(path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Load())
	assert.Equal(t, 0, store.Size())
}

func TestSaveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	store, err := NewStore(path, logger.Nop())
	require.NoError(t, err)
	store.Add("x")

	require.NoError(t, store.Save())
	require.NoError(t, store.Save())
	require.NoError(t, store.Save())

	reloaded, err := NewStore(path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 1, reloaded.Size())
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	store, err := NewStore(path, logger.Nop())
	require.NoError(t, err)
	store.Add("x")
	require.NoError(t, store.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "history.json", entries[0].Name())
}
