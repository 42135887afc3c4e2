package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/k-tonal/featurebank/codec"
	"github.com/k-tonal/featurebank/internal/fs"
	"github.com/k-tonal/featurebank/tensor"
)

// Option configures store creation.
type Option func(*config)

type config struct {
	fsys fs.FileSystem
	cdc  codec.Codec
}

// WithFileSystem injects a filesystem, mainly for fault-injection tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(c *config) {
		if fsys != nil {
			c.fsys = fsys
		}
	}
}

// WithCodec sets the codec used for tables and attributes.
func WithCodec(cdc codec.Codec) Option {
	return func(c *config) {
		if cdc != nil {
			c.cdc = cdc
		}
	}
}

// DatasetOption configures a single dataset.
type DatasetOption func(*datasetConfig)

type datasetConfig struct {
	enc   Encoding
	attrs any
}

// WithEncoding selects the body encoding. Non-raw datasets are write-once
// and cannot be range addressed.
func WithEncoding(enc Encoding) DatasetOption {
	return func(c *datasetConfig) { c.enc = enc }
}

// WithAttrs attaches attribute metadata to the dataset.
func WithAttrs(v any) DatasetOption {
	return func(c *datasetConfig) { c.attrs = v }
}

type wdataset struct {
	name    string
	dt      tensor.DType
	shape   []int
	enc     Encoding
	attrs   jsonRawOptional
	offset  int64
	stored  int64
	rawSize int64
	rowSize int64
	crc     uint32
	written bool
}

// Writer is a store opened for writing. Dataset and table creation are
// serialized; row-range writes to disjoint ranges may run concurrently once
// all datasets are created.
type Writer struct {
	mu         sync.Mutex
	fsys       fs.FileSystem
	cdc        codec.Codec
	f          fs.File
	path       string
	tmpPath    string // empty when finalizing in place (append mode)
	end        int64
	datasets   map[string]*wdataset
	order      []string
	tables     []tocTable
	tableNames map[string]bool
	closed     bool
}

func newConfig(opts []Option) config {
	c := config{fsys: fs.Default, cdc: codec.Default}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Create creates a new store file at path. The file appears at path only
// after a successful Close; until then all writes go to <path>.tmp.
func Create(path string, opts ...Option) (*Writer, error) {
	c := newConfig(opts)

	tmp := path + ".tmp"
	f, err := c.fsys.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		fsys:       c.fsys,
		cdc:        c.cdc,
		f:          f,
		path:       path,
		tmpPath:    tmp,
		end:        headerSize,
		datasets:   make(map[string]*wdataset),
		tableNames: make(map[string]bool),
	}

	// Reserve the header region; the real header is written on Close.
	if err := w.writeHeader(fileHeader{Magic: magic, Version: version}); err != nil {
		f.Close()
		c.fsys.Remove(tmp)
		return nil, err
	}
	return w, nil
}

// OpenAppend reopens an existing store to add datasets or tables. Name
// collisions with existing datasets fail with ErrDuplicate: concatenating
// same-named features is the aggregation stage's job, not the store's.
func OpenAppend(path string, opts ...Option) (*Writer, error) {
	c := newConfig(opts)

	f, err := c.fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	hdr, t, err := readTOC(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	cdc, ok := codec.ByName(t.Codec)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("store: unknown codec %q in %s", t.Codec, path)
	}
	// Keep the file's codec; mixing codecs inside one file is not supported.
	c.cdc = cdc

	w := &Writer{
		fsys:       c.fsys,
		cdc:        c.cdc,
		f:          f,
		path:       path,
		end:        int64(hdr.TOCOffset),
		datasets:   make(map[string]*wdataset, len(t.Datasets)),
		tableNames: make(map[string]bool, len(t.Tables)),
		tables:     t.Tables,
	}

	for _, d := range t.Datasets {
		dt, err := tensor.ParseDType(d.DType)
		if err != nil {
			f.Close()
			return nil, err
		}
		enc, err := ParseEncoding(d.Encoding)
		if err != nil {
			f.Close()
			return nil, err
		}
		ds := &wdataset{
			name:    d.Name,
			dt:      dt,
			shape:   d.Shape,
			enc:     enc,
			attrs:   d.Attrs,
			offset:  d.Offset,
			stored:  d.Stored,
			rawSize: d.RawSize,
			rowSize: int64(tensor.ElemCount(d.Shape[1:]) * dt.Size()),
			crc:     d.CRC,
			written: true,
		}
		w.datasets[d.Name] = ds
		w.order = append(w.order, d.Name)
	}
	for _, tb := range t.Tables {
		w.tableNames[tb.Name] = true
	}

	// Drop the old TOC; it is rewritten on Close.
	if err := f.Truncate(w.end); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the final path of the store file.
func (w *Writer) Path() string { return w.path }

func (w *Writer) writeHeader(hdr fileHeader) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	_, err := w.f.WriteAt(buf.Bytes(), 0)
	return err
}

// CreateDataset declares a dataset of the given dtype and shape. Raw
// datasets are pre-sized immediately so row ranges can be written in any
// order; compressed datasets reserve nothing until WriteAll.
func (w *Writer) CreateDataset(name string, dt tensor.DType, shape []int, opts ...DatasetOption) error {
	dc := datasetConfig{}
	for _, opt := range opts {
		opt(&dc)
	}

	if dt.Size() == 0 {
		return fmt.Errorf("store: dataset %q: invalid dtype %s", name, dt)
	}
	if len(shape) == 0 {
		return fmt.Errorf("store: dataset %q: empty shape", name)
	}
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("store: dataset %q: negative dimension in %v", name, shape)
		}
	}

	var attrs jsonRawOptional
	if dc.attrs != nil {
		b, err := w.cdc.Marshal(dc.attrs)
		if err != nil {
			return fmt.Errorf("store: dataset %q: encoding attrs: %w", name, err)
		}
		attrs = b
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.datasets[name]; ok {
		return fmt.Errorf("%w: dataset %q", ErrDuplicate, name)
	}

	rawSize := int64(tensor.ElemCount(shape) * dt.Size())
	ds := &wdataset{
		name:    name,
		dt:      dt,
		shape:   append([]int(nil), shape...),
		enc:     dc.enc,
		attrs:   attrs,
		offset:  -1,
		rawSize: rawSize,
		rowSize: int64(tensor.ElemCount(shape[1:]) * dt.Size()),
	}

	if dc.enc == Raw {
		ds.offset = w.end
		ds.stored = rawSize
		w.end += rawSize
		if err := w.f.Truncate(w.end); err != nil {
			return err
		}
	}

	w.datasets[name] = ds
	w.order = append(w.order, name)
	return nil
}

func (w *Writer) dataset(name string) (*wdataset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	ds, ok := w.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", ErrNotFound, name)
	}
	return ds, nil
}

func (w *Writer) checkValue(ds *wdataset, t *tensor.Dense) error {
	if t.DType() != ds.dt {
		return fmt.Errorf("store: dataset %q: dtype %s, got %s", ds.name, ds.dt, t.DType())
	}
	if !tensor.EqualShape(t.TailShape(), ds.shape[1:]) {
		return fmt.Errorf("store: dataset %q: row shape %v, got %v", ds.name, ds.shape[1:], t.TailShape())
	}
	return nil
}

// WriteRows writes t into the dataset starting at the given leading-axis
// row. Only raw datasets are range addressable. Writes to disjoint ranges
// are safe to issue concurrently.
func (w *Writer) WriteRows(name string, row uint64, t *tensor.Dense) error {
	ds, err := w.dataset(name)
	if err != nil {
		return err
	}
	if ds.enc != Raw {
		return fmt.Errorf("%w: dataset %q is %s", ErrRangeWrite, name, ds.enc)
	}
	if err := w.checkValue(ds, t); err != nil {
		return err
	}
	if int64(row)+int64(t.Rows()) > int64(ds.shape[0]) {
		return fmt.Errorf("store: dataset %q: rows [%d, %d) out of %d", name, row, row+uint64(t.Rows()), ds.shape[0])
	}

	_, err = w.f.WriteAt(t.Bytes(), ds.offset+int64(row)*ds.rowSize)
	return err
}

// WriteAll writes the complete dataset body. For raw datasets the value must
// cover the full shape; compressed datasets are written exactly once.
func (w *Writer) WriteAll(name string, t *tensor.Dense) error {
	ds, err := w.dataset(name)
	if err != nil {
		return err
	}
	if ds.enc == Raw {
		if t.Rows() != ds.shape[0] {
			return fmt.Errorf("store: dataset %q: WriteAll needs %d rows, got %d", name, ds.shape[0], t.Rows())
		}
		return w.WriteRows(name, 0, t)
	}

	if err := w.checkValue(ds, t); err != nil {
		return err
	}
	if t.Rows() != ds.shape[0] {
		return fmt.Errorf("store: dataset %q: WriteAll needs %d rows, got %d", name, ds.shape[0], t.Rows())
	}

	stored, err := compress(ds.enc, t.Bytes())
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if ds.written {
		return fmt.Errorf("%w: dataset %q", ErrAlreadyWritten, name)
	}
	off, err := w.appendLocked(stored)
	if err != nil {
		return err
	}
	ds.offset = off
	ds.stored = int64(len(stored))
	ds.crc = checksum(t.Bytes())
	ds.written = true
	return nil
}

// PutTable encodes v with the store codec and appends it as a named table.
func (w *Writer) PutTable(name string, v any) error {
	data, err := w.cdc.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: table %q: %w", name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.tableNames[name] {
		return fmt.Errorf("%w: table %q", ErrDuplicate, name)
	}
	off, err := w.appendLocked(data)
	if err != nil {
		return err
	}
	w.tables = append(w.tables, tocTable{Name: name, Offset: off, Size: int64(len(data)), CRC: checksum(data)})
	w.tableNames[name] = true
	return nil
}

// appendLocked appends b at the end of the body. Caller holds w.mu.
func (w *Writer) appendLocked(b []byte) (int64, error) {
	off := w.end
	if _, err := w.f.WriteAt(b, off); err != nil {
		return 0, err
	}
	w.end += int64(len(b))
	return off, nil
}

// Flush forces written data to stable storage.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.f.Sync()
}

// Close finalizes the store: dataset checksums, table of contents, header,
// fsync, and (for newly created stores) the atomic rename into place.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	t := toc{Codec: w.cdc.Name(), Datasets: make([]tocDataset, 0, len(w.order)), Tables: w.tables}
	for _, name := range w.order {
		ds := w.datasets[name]
		if ds.enc != Raw && !ds.written {
			w.f.Close()
			return fmt.Errorf("store: dataset %q declared %s but never written", name, ds.enc)
		}
		if ds.enc == Raw {
			// Raw bodies may have been filled by concurrent range writes;
			// checksum what is actually on disk.
			crc, err := checksumRegion(w.f, ds.offset, ds.rawSize)
			if err != nil {
				w.f.Close()
				return err
			}
			ds.crc = crc
		}
		t.Datasets = append(t.Datasets, tocDataset{
			Name:     ds.name,
			DType:    ds.dt.String(),
			Shape:    ds.shape,
			Encoding: ds.enc.String(),
			Offset:   ds.offset,
			Stored:   ds.stored,
			RawSize:  ds.rawSize,
			CRC:      ds.crc,
			Attrs:    ds.attrs,
		})
	}

	// The TOC itself is always plain JSON so readers can decode it before
	// resolving the table codec.
	tocBytes, err := json.Marshal(t)
	if err != nil {
		w.f.Close()
		return err
	}
	tocOff, err := w.appendLocked(tocBytes)
	if err != nil {
		w.f.Close()
		return err
	}

	hdr := fileHeader{
		Magic:     magic,
		Version:   version,
		TOCOffset: uint64(tocOff),
		TOCSize:   uint64(len(tocBytes)),
		TOCCRC:    checksum(tocBytes),
	}
	if err := w.writeHeader(hdr); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return err
	}

	if w.tmpPath != "" {
		return w.fsys.Rename(w.tmpPath, w.path)
	}
	return nil
}

// Abort discards an in-progress store. Newly created files are removed; a
// store reopened with OpenAppend is only closed.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.f.Close()
	if w.tmpPath != "" {
		return w.fsys.Remove(w.tmpPath)
	}
	return nil
}
