package blobstore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ifs "github.com/k-tonal/featurebank/internal/fs"
	"github.com/k-tonal/featurebank/internal/mmap"
)

// LocalStore implements BlobStore on a directory of the local file system.
//
// Writes go to a hidden temp file and are renamed into place on Close, so
// concurrent readers never see partial blobs. Reads are memory mapped.
type LocalStore struct {
	root string
	fsys ifs.FileSystem
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem overrides the file system used for writes. Reads still go
// through mmap on the real file system.
func WithFileSystem(fsys ifs.FileSystem) LocalOption {
	return func(s *LocalStore) { s.fsys = fsys }
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string, opts ...LocalOption) *LocalStore {
	s := &LocalStore{root: root, fsys: ifs.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create creates a new blob. The data lands in a ".tmp" sibling and is
// renamed to its final name on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := s.path(name)
	if err := s.fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	f, err := s.fsys.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{fsys: s.fsys, f: f, tmp: tmp, path: path}, nil
}

// Delete removes a blob. Missing blobs are ignored.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fsys.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the names of all blobs under the given prefix, sorted.
// Names use forward slashes relative to the store root.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(p []byte, off int64) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n = copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(len(b.m.Bytes()))
}

func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}

type localWritableBlob struct {
	fsys ifs.FileSystem
	f    ifs.File
	tmp  string
	path string
	done bool
}

func (b *localWritableBlob) Write(p []byte) (int, error) {
	return b.f.Write(p)
}

func (b *localWritableBlob) Close() error {
	if b.done {
		return os.ErrClosed
	}
	b.done = true
	if err := b.f.Sync(); err != nil {
		_ = b.f.Close()
		_ = b.fsys.Remove(b.tmp)
		return err
	}
	if err := b.f.Close(); err != nil {
		_ = b.fsys.Remove(b.tmp)
		return err
	}
	return b.fsys.Rename(b.tmp, b.path)
}

func (b *localWritableBlob) Abort() error {
	if b.done {
		return nil
	}
	b.done = true
	_ = b.f.Close()
	return b.fsys.Remove(b.tmp)
}
