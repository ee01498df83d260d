package polymind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()

	t.Run("MissingIsNotAnError", func(t *testing.T) {
		_, ok, err := store.Get("chats", "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("PutGetDelete", func(t *testing.T) {
		require.NoError(t, store.Put("chats", "a", []byte(`{"id":"a"}`)))

		value, ok, err := store.Get("chats", "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"id":"a"}`, string(value))

		require.NoError(t, store.Delete("chats", "a"))
		_, ok, err = store.Get("chats", "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteMissingIsIdempotent", func(t *testing.T) {
		assert.NoError(t, store.Delete("chats", "never-existed"))
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put("messages", "m1", []byte(`{"id":"m1"}`)))
		require.NoError(t, store.Put("messages", "m2", []byte(`{"id":"m2"}`)))

		records, err := store.List("messages")
		require.NoError(t, err)
		assert.Len(t, records, 2)

		empty, err := store.List("empty-collection")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		require.NoError(t, store.Put("chats", "same-id", []byte(`"chat"`)))
		require.NoError(t, store.Put("messages", "same-id", []byte(`"messages"`)))

		value, ok, err := store.Get("chats", "same-id")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `"chat"`, string(value))
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Put("chats", "a", []byte(`{"id":"a"}`)))

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	value, ok, err := second.Get("chats", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"a"}`, string(value))
}
