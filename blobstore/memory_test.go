package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	writeBlob(t, store, "a", []byte("alpha"))

	b, err := store.Open(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(5), b.Size())

	got := make([]byte, 5)
	_, err = b.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), got)
	require.NoError(t, b.Close())
}

func TestMemoryStoreAbortDiscards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "a")
	require.NoError(t, err)
	_, err = w.Write([]byte("never"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = store.Open(ctx, "a")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	writeBlob(t, store, "p/b", []byte("1"))
	writeBlob(t, store, "p/a", []byte("2"))
	writeBlob(t, store, "q/c", []byte("3"))

	names, err := store.List(ctx, "p/")
	require.NoError(t, err)
	require.Equal(t, []string{"p/a", "p/b"}, names)

	require.NoError(t, store.Delete(ctx, "p/a"))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"p/b", "q/c"}, names)
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	writeBlob(t, store, "a", []byte("v1"))
	b, err := store.Open(ctx, "a")
	require.NoError(t, err)

	// Overwrite after open; the handle keeps the old contents.
	writeBlob(t, store, "a", []byte("v2"))

	got := make([]byte, 2)
	_, err = b.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
}
