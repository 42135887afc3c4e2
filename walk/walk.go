// Package walk enumerates candidate source files from root directories and
// explicit file lists.
//
// Results are deterministic: roots are traversed in lexical order and
// explicit files keep their given order. The pipeline depends on a stable,
// caller-visible source ordering because the aggregate layout is built from
// it.
package walk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the sample-file extensions accepted when none are
// configured.
var DefaultExtensions = []string{"f32", "raw", "pcm"}

// Walker collects source files from roots (recursively) and from explicit
// file lists, filtering by extension. Hidden files are skipped regardless of
// how they were found.
type Walker struct {
	roots []string
	files []string
	exts  map[string]bool
}

// Option configures a Walker.
type Option func(*Walker)

// WithRoots adds directories to traverse recursively.
func WithRoots(roots ...string) Option {
	return func(w *Walker) { w.roots = append(w.roots, roots...) }
}

// WithFiles adds explicit candidate files. Files with a filtered-out
// extension are ignored, exactly like files found under a root.
func WithFiles(files ...string) Option {
	return func(w *Walker) { w.files = append(w.files, files...) }
}

// WithExtensions replaces the accepted extension set (no leading dot).
func WithExtensions(exts ...string) Option {
	return func(w *Walker) {
		w.exts = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.exts[strings.TrimPrefix(e, ".")] = true
		}
	}
}

// New creates a Walker.
func New(opts ...Option) *Walker {
	w := &Walker{}
	for _, opt := range opts {
		opt(w)
	}
	if w.exts == nil {
		WithExtensions(DefaultExtensions...)(w)
	}
	return w
}

// Accepts reports whether the file name passes the extension and hidden-file
// filters.
func (w *Walker) Accepts(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	return w.exts[ext]
}

// Sources returns the ordered list of accepted source files. Roots are
// walked first, in the order given, then explicit files. Every configured
// root and explicit file must exist.
func (w *Walker) Sources() ([]string, error) {
	var out []string

	for _, root := range w.roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("walk: root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("walk: root %s is not a directory", root)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if w.Accepts(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk: %s: %w", root, err)
		}
	}

	for _, f := range w.files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("walk: file %s: %w", f, err)
		}
		if w.Accepts(f) {
			out = append(out, f)
		}
	}

	return out, nil
}
