package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	f, err := Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("hello"), 3)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	info, err := Default.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(8), info.Size())

	renamed := filepath.Join(dir, "renamed.bin")
	require.NoError(t, Default.Rename(path, renamed))
	require.NoError(t, Default.Remove(renamed))
}

func TestFaultyFS_WriteLimit(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("limited", Fault{FailAfterBytes: 10})

	f, err := ffs.OpenFile(filepath.Join(dir, "limited.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write(make([]byte, 10))
	require.NoError(t, err)
	_, err = f.Write([]byte{0})
	require.ErrorIs(t, err, ErrInjected)
	_, err = f.WriteAt([]byte{0}, 0)
	require.ErrorIs(t, err, ErrInjected)
}

func TestFaultyFS_SyncAndUnmatched(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("bad", Fault{FailAfterBytes: -1, FailOnSync: true})

	bad, err := ffs.OpenFile(filepath.Join(dir, "bad.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Write([]byte("x"))
	require.NoError(t, err)
	require.ErrorIs(t, bad.Sync(), ErrInjected)

	good, err := ffs.OpenFile(filepath.Join(dir, "good.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	require.NoError(t, good.Sync())
	require.NoError(t, good.Close())
}
