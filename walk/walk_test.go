package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestSourcesFromRoots(t *testing.T) {
	dir := t.TempDir()
	b := touch(t, filepath.Join(dir, "b.f32"))
	a := touch(t, filepath.Join(dir, "a.f32"))
	nested := touch(t, filepath.Join(dir, "sub", "c.raw"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".hidden.f32"))

	w := New(WithRoots(dir))
	got, err := w.Sources()
	require.NoError(t, err)
	// Lexical walk order.
	require.Equal(t, []string{a, b, nested}, got)
}

func TestSourcesExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	x := touch(t, filepath.Join(dir, "x.f32"))
	y := touch(t, filepath.Join(dir, "y.f32"))
	txt := touch(t, filepath.Join(dir, "skip.txt"))

	w := New(WithFiles(y, x, txt))
	got, err := w.Sources()
	require.NoError(t, err)
	// Explicit files keep caller order; filtered extensions are dropped.
	require.Equal(t, []string{y, x}, got)
}

func TestSourcesRootsThenFiles(t *testing.T) {
	dir := t.TempDir()
	inRoot := touch(t, filepath.Join(dir, "root", "a.f32"))
	extra := touch(t, filepath.Join(dir, "extra.f32"))

	w := New(WithRoots(filepath.Join(dir, "root")), WithFiles(extra))
	got, err := w.Sources()
	require.NoError(t, err)
	require.Equal(t, []string{inRoot, extra}, got)
}

func TestCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	wav := touch(t, filepath.Join(dir, "a.wav"))
	touch(t, filepath.Join(dir, "b.f32"))

	w := New(WithRoots(dir), WithExtensions(".wav"))
	got, err := w.Sources()
	require.NoError(t, err)
	require.Equal(t, []string{wav}, got)
}

func TestMissingRootAndFile(t *testing.T) {
	dir := t.TempDir()

	_, err := New(WithRoots(filepath.Join(dir, "nope"))).Sources()
	require.Error(t, err)

	_, err = New(WithFiles(filepath.Join(dir, "nope.f32"))).Sources()
	require.Error(t, err)

	file := touch(t, filepath.Join(dir, "f.f32"))
	_, err = New(WithRoots(file)).Sources()
	require.Error(t, err)
}
