package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeBlob(t *testing.T, store BlobStore, name string, data []byte) {
	t.Helper()
	w, err := store.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	payload := []byte("hello feature bank")
	writeBlob(t, store, "banks/main.fbk", payload)

	b, err := store.Open(ctx, "banks/main.fbk")
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, int64(len(payload)), b.Size())

	got := make([]byte, len(payload))
	_, err = b.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	// Zero-copy access.
	m, ok := b.(Mappable)
	require.True(t, ok)
	raw, err := m.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, raw)
}

func TestLocalStoreAtomicCreate(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	w, err := store.Create(context.Background(), "bank.fbk")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not visible before Close.
	_, err = os.Stat(filepath.Join(root, "bank.fbk"))
	require.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, w.Close())
	_, err = os.Stat(filepath.Join(root, "bank.fbk"))
	require.NoError(t, err)

	// The temp file is gone.
	_, err = os.Stat(filepath.Join(root, "bank.fbk.tmp"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalStoreAbort(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	w, err := store.Create(context.Background(), "bank.fbk")
	require.NoError(t, err)
	_, err = w.Write([]byte("doomed"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLocalStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	writeBlob(t, store, "banks/b.fbk", []byte("b"))
	writeBlob(t, store, "banks/a.fbk", []byte("a"))
	writeBlob(t, store, "other/c.fbk", []byte("c"))

	names, err := store.List(ctx, "banks/")
	require.NoError(t, err)
	require.Equal(t, []string{"banks/a.fbk", "banks/b.fbk"}, names)

	require.NoError(t, store.Delete(ctx, "banks/a.fbk"))
	require.NoError(t, store.Delete(ctx, "banks/a.fbk")) // idempotent

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"banks/b.fbk", "other/c.fbk"}, names)
}

func TestLocalStoreOpenMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(context.Background(), "nope.fbk")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStoreReadAtPastEnd(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	writeBlob(t, store, "x", []byte("abc"))

	b, err := store.Open(context.Background(), "x")
	require.NoError(t, err)
	defer b.Close()

	buf := make([]byte, 8)
	n, err := b.ReadAt(buf, 1)
	require.Equal(t, 2, n)
	require.Equal(t, io.EOF, err)
	require.Equal(t, []byte("bc"), buf[:n])

	_, err = b.ReadAt(buf, 10)
	require.Equal(t, io.EOF, err)
}
