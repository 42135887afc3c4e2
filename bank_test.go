package featurebank

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/store"
	"github.com/k-tonal/featurebank/testutil"
)

func buildBank(t *testing.T, durations []int) ([]string, *Bank) {
	t.Helper()
	dir, paths := testutil.SourceDir(t, testutil.NewRNG(30), durations)
	out := filepath.Join(t.TempDir(), "bank.fbk")

	_, err := New(out, WithRoots(dir), WithExtractor(rampExtractor(2))).Run(context.Background())
	require.NoError(t, err)

	bank, err := OpenBank(out)
	require.NoError(t, err)
	t.Cleanup(func() { bank.Close() })
	return paths, bank
}

func TestBankSubsetSelection(t *testing.T) {
	paths, bank := buildBank(t, []int{10, 20, 5})

	sources, err := bank.Sources("f")
	require.NoError(t, err)
	require.Equal(t, paths, sources)

	// Rows of the middle source alone.
	indices, err := bank.Indices("f", paths[1])
	require.NoError(t, err)
	require.Len(t, indices, 20)
	require.Equal(t, uint64(10), indices[0])
	require.Equal(t, uint64(29), indices[19])

	bm, err := bank.Bitmap("f", paths[0], paths[2])
	require.NoError(t, err)
	require.Equal(t, uint64(15), bm.GetCardinality())
	require.True(t, bm.Contains(0))
	require.True(t, bm.Contains(34))
	require.False(t, bm.Contains(10))

	_, err = bank.RowsOf("f", "no/such/source")
	var uerr *layout.UnknownSegmentError
	require.True(t, errors.As(err, &uerr))
}

func TestBankReadRows(t *testing.T) {
	_, bank := buildBank(t, []int{4, 4})

	d, err := bank.ReadRows("f", 2, 6)
	require.NoError(t, err)
	require.Equal(t, 4, d.Rows())

	full, err := bank.ReadAll("f")
	require.NoError(t, err)
	require.Equal(t, 8, full.Rows())
}

func TestBankUnknownFeature(t *testing.T) {
	_, bank := buildBank(t, []int{4})

	_, err := bank.Layout("nope")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = bank.TotalRows("nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBankRejectsCorruptLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fbk")
	w, err := store.Create(path)
	require.NoError(t, err)

	// Gap between segments violates contiguity.
	bad := layout.Index{
		{Name: "a", Start: 0, Stop: 5},
		{Name: "b", Start: 7, Stop: 9},
	}
	require.NoError(t, w.PutTable(layoutTablePrefix+"f", bad))
	require.NoError(t, w.Close())

	_, err = OpenBank(path)
	var cerr *layout.CorruptionError
	require.True(t, errors.As(err, &cerr))
}
