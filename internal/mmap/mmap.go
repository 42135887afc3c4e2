// Package mmap provides read-only memory mapping for store files.
//
// Readers of finished stores (scatter sources, banks) map the whole file and
// slice into dataset regions without copying. On platforms without a mapping
// implementation the file is read into memory instead; the Mapping contract
// is identical either way.
package mmap

import "os"

// Mapping is a read-only view of a file's contents.
type Mapping struct {
	data   []byte
	mapped bool
}

// Open maps the file at path read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	return openMapping(f, int(size))
}

// Bytes returns the mapped contents. The slice is valid until Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Close releases the mapping.
func (m *Mapping) Close() error {
	data := m.data
	m.data = nil
	if !m.mapped || data == nil {
		return nil
	}
	return munmap(data)
}
