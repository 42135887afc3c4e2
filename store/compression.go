package store

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Shared zstd coders; EncodeAll/DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

func compress(enc Encoding, raw []byte) ([]byte, error) {
	switch enc {
	case Raw:
		return raw, nil
	case Zstd:
		return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	case LZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("store: cannot compress with %s", enc)
	}
}

func decompress(enc Encoding, stored []byte, rawSize int64) ([]byte, error) {
	switch enc {
	case Raw:
		return stored, nil
	case Zstd:
		return zstdDecoder.DecodeAll(stored, make([]byte, 0, rawSize))
	case LZ4:
		out := make([]byte, 0, rawSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(stored))); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("store: cannot decompress %s", enc)
	}
}
