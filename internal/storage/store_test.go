package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("absent key", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte(`{"a":1}`)))
		value, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte(`{"a":1}`), value)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "copy", []byte(`"x"`)))
		value, _, err := store.Get(ctx, "copy")
		require.NoError(t, err)
		value[0] = '!'

		again, _, err := store.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"x"`), again)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", []byte(`1`)))
		require.NoError(t, store.Delete(ctx, "gone"))
		_, ok, err := store.Get(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting again is not an error.
		require.NoError(t, store.Delete(ctx, "gone"))
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	t.Run("missing file reads empty", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "anything")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("values survive a reopen", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "session", []byte(`{"token":"abc"}`)))

		reopened, err := NewFileStore(path)
		require.NoError(t, err)
		value, ok, err := reopened.Get(ctx, "session")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"token":"abc"}`, string(value))
	})

	t.Run("delete persists", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "session"))

		reopened, err := NewFileStore(path)
		require.NoError(t, err)
		_, ok, err := reopened.Get(ctx, "session")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("file mode is private", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte(`1`)))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("creates parent directories", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "a", "b", "store.json")
		s, err := NewFileStore(nested)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "k", []byte(`true`)))
	})

	t.Run("empty path rejected", func(t *testing.T) {
		_, err := NewFileStore("")
		require.Error(t, err)
	})
}
