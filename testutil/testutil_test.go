package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicSamples(t *testing.T) {
	a := RandomFloat32s(NewRNG(42), 16)
	b := RandomFloat32s(NewRNG(42), 16)
	require.Equal(t, a, b)

	for _, v := range a {
		require.GreaterOrEqual(t, v, float32(-1))
		require.Less(t, v, float32(1))
	}
}

func TestFloat32BytesRoundTrip(t *testing.T) {
	samples := []float32{0, 1, -1, 0.5}
	raw := Float32Bytes(samples)
	require.Len(t, raw, 16)
}

func TestSourceDir(t *testing.T) {
	dir, paths := SourceDir(t, NewRNG(1), []int{10, 20, 5})
	require.Len(t, paths, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "src000.f32", entries[0].Name())

	info, err := os.Stat(paths[1])
	require.NoError(t, err)
	require.Equal(t, int64(80), info.Size())
}

func TestRandomTensor(t *testing.T) {
	d := RandomTensor(t, NewRNG(7), 4, 3)
	require.Equal(t, []int{4, 3}, d.Shape())
	require.Equal(t, 4, d.Rows())
}
