// Package testutil provides deterministic fixtures for tests: seeded random
// sample data, raw float32 source files, and small tensors.
package testutil

import (
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/k-tonal/featurebank/tensor"
	"github.com/stretchr/testify/require"
)

// NewRNG returns a seeded random source so failures reproduce.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// RandomFloat32s returns n random samples in [-1, 1).
func RandomFloat32s(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

// Sine returns n samples of a sine at freq Hz sampled at rate Hz.
func Sine(freq, rate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
	}
	return out
}

// Float32Bytes encodes samples as little-endian raw bytes, the layout of a
// ".f32" source file.
func Float32Bytes(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// WriteSourceFile writes samples as a raw float32 file under dir and
// returns its path.
func WriteSourceFile(t *testing.T, dir, name string, samples []float32) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, Float32Bytes(samples), 0o644))
	return path
}

// SourceDir writes one raw float32 file per entry of durations, named
// src000.f32, src001.f32, ... with the given sample counts, into a fresh
// temp dir. It returns the dir and the file paths in name order.
func SourceDir(t *testing.T, rng *rand.Rand, durations []int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(durations))
	for i, n := range durations {
		name := fileName(i)
		paths[i] = WriteSourceFile(t, dir, name, RandomFloat32s(rng, n))
	}
	return dir, paths
}

func fileName(i int) string {
	const digits = "0123456789"
	return "src" + string([]byte{digits[i/100%10], digits[i/10%10], digits[i%10]}) + ".f32"
}

// RandomTensor returns a float32 tensor of the given shape filled with
// seeded random values.
func RandomTensor(t *testing.T, rng *rand.Rand, shape ...int) *tensor.Dense {
	t.Helper()
	d, err := tensor.FromFloat32(shape, RandomFloat32s(rng, tensor.ElemCount(shape)))
	require.NoError(t, err)
	return d
}
