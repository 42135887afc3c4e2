package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/k-tonal/featurebank/codec"
	"github.com/k-tonal/featurebank/internal/mmap"
	"github.com/k-tonal/featurebank/tensor"
)

// DatasetInfo describes a dataset without loading its body.
type DatasetInfo struct {
	Name     string
	DType    tensor.DType
	Shape    []int
	Encoding Encoding
	RawSize  int64
}

// Rows returns the leading-axis size.
func (i DatasetInfo) Rows() int {
	if len(i.Shape) == 0 {
		return 0
	}
	return i.Shape[0]
}

// TailShape returns the dimensions beyond the leading axis.
func (i DatasetInfo) TailShape() []int {
	if len(i.Shape) == 0 {
		return nil
	}
	return i.Shape[1:]
}

// readTOC parses and verifies the header and table of contents.
func readTOC(r io.ReaderAt) (fileHeader, toc, error) {
	var hdr fileHeader
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return hdr, toc{}, err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &hdr); err != nil {
		return hdr, toc{}, err
	}
	if hdr.Magic != magic {
		return hdr, toc{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, hdr.Magic)
	}
	if hdr.Version != version {
		return hdr, toc{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, hdr.Version)
	}

	tocBytes := make([]byte, hdr.TOCSize)
	if _, err := r.ReadAt(tocBytes, int64(hdr.TOCOffset)); err != nil {
		return hdr, toc{}, err
	}
	if err := verifyChecksum("toc", tocBytes, hdr.TOCCRC); err != nil {
		return hdr, toc{}, err
	}

	var t toc
	if err := json.Unmarshal(tocBytes, &t); err != nil {
		return hdr, toc{}, fmt.Errorf("store: decoding toc: %w", err)
	}
	return hdr, t, nil
}

// Reader is a store opened read-only, backed by a memory mapping. Safe for
// concurrent use.
type Reader struct {
	path     string
	m        *mmap.Mapping
	data     []byte
	cdc      codec.Codec
	datasets map[string]tocDataset
	dsOrder  []string
	tables   map[string]tocTable
	tbOrder  []string
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Open opens the store file at path for reading.
func Open(path string) (*Reader, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	data := m.Bytes()

	_, t, err := readTOC(byteReaderAt(data))
	if err != nil {
		m.Close()
		return nil, err
	}

	cdc, ok := codec.ByName(t.Codec)
	if !ok {
		m.Close()
		return nil, fmt.Errorf("store: unknown codec %q in %s", t.Codec, path)
	}

	r := &Reader{
		path:     path,
		m:        m,
		data:     data,
		cdc:      cdc,
		datasets: make(map[string]tocDataset, len(t.Datasets)),
		tables:   make(map[string]tocTable, len(t.Tables)),
	}
	for _, d := range t.Datasets {
		r.datasets[d.Name] = d
		r.dsOrder = append(r.dsOrder, d.Name)
	}
	for _, tb := range t.Tables {
		r.tables[tb.Name] = tb
		r.tbOrder = append(r.tbOrder, tb.Name)
	}
	return r, nil
}

// Path returns the path the store was opened from.
func (r *Reader) Path() string { return r.path }

// Datasets returns dataset names in creation order.
func (r *Reader) Datasets() []string {
	return append([]string(nil), r.dsOrder...)
}

// Tables returns table names in creation order.
func (r *Reader) Tables() []string {
	return append([]string(nil), r.tbOrder...)
}

func (r *Reader) entry(name string) (tocDataset, error) {
	d, ok := r.datasets[name]
	if !ok {
		return tocDataset{}, fmt.Errorf("%w: dataset %q", ErrNotFound, name)
	}
	return d, nil
}

// Info returns the dataset's shape, dtype and encoding.
func (r *Reader) Info(name string) (DatasetInfo, error) {
	d, err := r.entry(name)
	if err != nil {
		return DatasetInfo{}, err
	}
	dt, err := tensor.ParseDType(d.DType)
	if err != nil {
		return DatasetInfo{}, err
	}
	enc, err := ParseEncoding(d.Encoding)
	if err != nil {
		return DatasetInfo{}, err
	}
	return DatasetInfo{Name: d.Name, DType: dt, Shape: d.Shape, Encoding: enc, RawSize: d.RawSize}, nil
}

// Attrs decodes the dataset's attribute metadata into v.
func (r *Reader) Attrs(name string, v any) error {
	d, err := r.entry(name)
	if err != nil {
		return err
	}
	if len(d.Attrs) == 0 {
		return nil
	}
	return r.cdc.Unmarshal(d.Attrs, v)
}

func (r *Reader) region(off, size int64) ([]byte, error) {
	if off < 0 || off+size > int64(len(r.data)) {
		return nil, fmt.Errorf("store: region [%d, %d) outside file of %d bytes", off, off+size, len(r.data))
	}
	return r.data[off : off+size], nil
}

// ReadAll reads the full dataset, verifying its checksum. The returned value
// owns its memory and stays valid after Close.
func (r *Reader) ReadAll(name string) (*tensor.Dense, error) {
	d, err := r.entry(name)
	if err != nil {
		return nil, err
	}
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}

	stored, err := r.region(d.Offset, d.Stored)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(info.Encoding, stored, d.RawSize)
	if err != nil {
		return nil, fmt.Errorf("store: dataset %q: %w", name, err)
	}
	if err := verifyChecksum("dataset "+name, raw, d.CRC); err != nil {
		return nil, err
	}

	body := raw
	if info.Encoding == Raw {
		// Decompressed bodies already own their memory; raw ones alias the
		// mapping and must be copied out.
		body = append([]byte(nil), raw...)
	}
	return tensor.FromBytes(info.DType, info.Shape, body)
}

// ReadRows reads rows [start, stop) of a raw dataset without a checksum
// pass. The returned value owns its memory.
func (r *Reader) ReadRows(name string, start, stop uint64) (*tensor.Dense, error) {
	d, err := r.entry(name)
	if err != nil {
		return nil, err
	}
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}
	if info.Encoding != Raw {
		return nil, fmt.Errorf("%w: dataset %q is %s", ErrRangeWrite, name, info.Encoding)
	}
	if start > stop || stop > uint64(info.Rows()) {
		return nil, fmt.Errorf("store: dataset %q: rows [%d, %d) out of %d", name, start, stop, info.Rows())
	}

	rowSize := int64(tensor.ElemCount(info.TailShape()) * info.DType.Size())
	raw, err := r.region(d.Offset+int64(start)*rowSize, int64(stop-start)*rowSize)
	if err != nil {
		return nil, err
	}
	shape := append([]int{int(stop - start)}, info.TailShape()...)
	return tensor.FromBytes(info.DType, shape, append([]byte(nil), raw...))
}

// GetTable decodes the named table into v, verifying its checksum.
func (r *Reader) GetTable(name string, v any) error {
	tb, ok := r.tables[name]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, name)
	}
	data, err := r.region(tb.Offset, tb.Size)
	if err != nil {
		return err
	}
	if err := verifyChecksum("table "+name, data, tb.CRC); err != nil {
		return err
	}
	return r.cdc.Unmarshal(data, v)
}

// Close releases the mapping. Values returned by ReadAll/ReadRows remain
// valid.
func (r *Reader) Close() error {
	r.data = nil
	return r.m.Close()
}
