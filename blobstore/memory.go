package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory BlobStore. It is safe for concurrent use and
// intended for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open opens a blob for reading. The returned Blob sees a snapshot of the
// data at open time.
func (s *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	s.mu.RLock()
	data, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &memoryBlob{r: bytes.NewReader(data), data: data}, nil
}

// Create creates a new blob. The blob is stored on Close.
func (s *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWritableBlob{store: s, name: name}, nil
}

// Delete removes a blob.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.blobs, name)
	s.mu.Unlock()
	return nil
}

// List returns all blob names with the given prefix, sorted.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

type memoryBlob struct {
	r    *bytes.Reader
	data []byte
}

func (b *memoryBlob) ReadAt(p []byte, off int64) (int, error) { return b.r.ReadAt(p, off) }
func (b *memoryBlob) Close() error                            { return nil }
func (b *memoryBlob) Size() int64                             { return int64(len(b.data)) }
func (b *memoryBlob) Bytes() ([]byte, error)                  { return b.data, nil }

type memoryWritableBlob struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (b *memoryWritableBlob) Write(p []byte) (int, error) {
	if b.done {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

func (b *memoryWritableBlob) Close() error {
	if b.done {
		return os.ErrClosed
	}
	b.done = true
	b.store.mu.Lock()
	b.store.blobs[b.name] = bytes.Clone(b.buf.Bytes())
	b.store.mu.Unlock()
	return nil
}

func (b *memoryWritableBlob) Abort() error {
	b.done = true
	return nil
}
