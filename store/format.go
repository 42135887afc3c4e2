// Package store implements the single-file columnar container that holds
// feature datasets and their side tables.
//
// A store file is laid out as a 64-byte header, a body of dataset regions and
// table blobs appended in creation order, and a JSON table of contents at the
// end. Dataset bodies are raw little-endian element bytes addressed by
// leading-axis rows, so a pre-sized dataset supports random-access range
// reads and writes without touching its neighbors. Write-once datasets may
// instead be stored compressed (zstd or lz4); range addressing then requires
// decompressing the whole body, which is exactly the access pattern of the
// scatter stage.
//
// Files are finalized atomically: writers produce <path>.tmp and rename on
// Close, so a crashed build never leaves a half-written store at the target
// path.
package store

import (
	"errors"
	"fmt"
)

const (
	// magic identifies feature bank store files (ASCII "FBNK").
	magic = 0x46424E4B
	// version is the current file format version.
	version = 0x00010000

	headerSize = 64
)

var (
	ErrInvalidMagic   = errors.New("store: invalid magic number")
	ErrInvalidVersion = errors.New("store: unsupported format version")

	// ErrNotFound is returned when a dataset or table does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a dataset or table name already exists.
	// Feature concatenation belongs to the aggregation stage, never to a
	// single store.
	ErrDuplicate = errors.New("store: name already exists")

	// ErrRangeWrite is returned for row-range writes to a non-raw dataset.
	ErrRangeWrite = errors.New("store: range access requires raw encoding")

	// ErrAlreadyWritten is returned when a write-once dataset is written twice.
	ErrAlreadyWritten = errors.New("store: dataset already written")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// fileHeader is the fixed 64-byte header at the start of every store file.
type fileHeader struct {
	Magic     uint32
	Version   uint32
	TOCOffset uint64
	TOCSize   uint64
	TOCCRC    uint32
	Reserved  [36]byte
}

// Encoding selects how a dataset body is stored.
type Encoding uint8

const (
	// Raw stores little-endian element bytes, row addressable.
	Raw Encoding = iota
	// Zstd stores the body zstd-compressed; write-once, read-full.
	Zstd
	// LZ4 stores the body lz4-compressed; write-once, read-full.
	LZ4
)

func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// ParseEncoding maps an encoding name back to its Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "raw":
		return Raw, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("store: unknown encoding %q", s)
	}
}

// tocDataset describes one dataset region.
type tocDataset struct {
	Name     string          `json:"name"`
	DType    string          `json:"dtype"`
	Shape    []int           `json:"shape"`
	Encoding string          `json:"encoding"`
	Offset   int64           `json:"offset"`
	Stored   int64           `json:"stored"`
	RawSize  int64           `json:"raw_size"`
	CRC      uint32          `json:"crc"`
	Attrs    jsonRawOptional `json:"attrs,omitempty"`
}

// tocTable describes one table blob.
type tocTable struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	CRC    uint32 `json:"crc"`
}

// toc is the table of contents, always encoded as plain JSON. The Codec
// field names the codec used for tables and attributes.
type toc struct {
	Codec    string       `json:"codec"`
	Datasets []tocDataset `json:"datasets"`
	Tables   []tocTable   `json:"tables"`
}

// jsonRawOptional behaves like json.RawMessage but survives both codecs.
type jsonRawOptional []byte

func (r jsonRawOptional) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *jsonRawOptional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = nil
		return nil
	}
	*r = append((*r)[:0], data...)
	return nil
}
