package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("feature store contents")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, content, m.Bytes())
	require.NoError(t, m.Close())
	require.Nil(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
