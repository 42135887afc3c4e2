package extract

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/tensor"
	"github.com/stretchr/testify/require"
)

func writeSamples(t *testing.T, dir, name string, vals []float32) string {
	t.Helper()
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func sine(n int, freq, rate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
	}
	return out
}

func TestSTFTShape(t *testing.T) {
	dir := t.TempDir()
	path := writeSamples(t, dir, "tone.f32", sine(2048, 440, 22050))

	s := NewSTFT(WithFFTSize(512), WithHop(128))
	res, err := s.Extract(context.Background(), path)
	require.NoError(t, err)

	f, ok := res["stft"]
	require.True(t, ok)
	require.True(t, f.IsDense())
	require.NoError(t, f.Validate())

	// 1 + (2048-512)/128 frames, 512/2+1 bins.
	require.Equal(t, []int{13, 257}, f.Dense.Shape())
	require.Equal(t, 512, f.Attrs["fft_size"])

	meta, ok := res["metadata"]
	require.True(t, ok)
	require.True(t, meta.IsTable())
	require.Len(t, meta.Table, 1)
	require.Equal(t, uint64(13), meta.Table.LastStop())
	require.Equal(t, "tone.f32", meta.Table[0].Name)
}

func TestSTFTPeakBin(t *testing.T) {
	dir := t.TempDir()
	const rate = 8192.0
	// Bin 8 of a 512-point FFT at 8192 Hz is 128 Hz.
	path := writeSamples(t, dir, "peak.f32", sine(4096, 128, rate))

	s := NewSTFT(WithFFTSize(512), WithHop(256), WithSampleRate(int(rate)))
	res, err := s.Extract(context.Background(), path)
	require.NoError(t, err)

	vals, err := res["stft"].Dense.Float32s()
	require.NoError(t, err)
	bins := 257

	// First frame: the strongest bin is the tone's bin.
	peak := 0
	for b := 1; b < bins; b++ {
		if vals[b] > vals[peak] {
			peak = b
		}
	}
	require.Equal(t, 8, peak)
}

func TestSTFTDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeSamples(t, dir, "tone.f32", sine(1024, 100, 22050))

	s := NewSTFT(WithFFTSize(256), WithHop(64))
	a, err := s.Extract(context.Background(), path)
	require.NoError(t, err)
	b, err := s.Extract(context.Background(), path)
	require.NoError(t, err)

	av, err := a["stft"].Dense.Float32s()
	require.NoError(t, err)
	bv, err := b["stft"].Dense.Float32s()
	require.NoError(t, err)
	require.Equal(t, av, bv)
}

func TestSTFTErrors(t *testing.T) {
	dir := t.TempDir()

	short := writeSamples(t, dir, "short.f32", sine(100, 100, 22050))
	_, err := NewSTFT(WithFFTSize(512)).Extract(context.Background(), short)
	require.Error(t, err)

	ragged := filepath.Join(dir, "ragged.f32")
	require.NoError(t, os.WriteFile(ragged, []byte{1, 2, 3}, 0o644))
	_, err = NewSTFT().Extract(context.Background(), ragged)
	require.Error(t, err)

	_, err = NewSTFT(WithWindow("triangle")).Extract(context.Background(), short)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSTFT().Extract(ctx, short)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFeatureValidate(t *testing.T) {
	require.Error(t, Feature{}.Validate())

	idx := layout.Index{{Name: "a", Start: 0, Stop: 1}}
	require.NoError(t, TableFeature(idx, nil).Validate())

	d, err := tensor.New(tensor.Float32, []int{1})
	require.NoError(t, err)
	require.NoError(t, DenseFeature(d, nil).Validate())
	require.Error(t, Feature{Dense: d, Table: idx}.Validate())
}
