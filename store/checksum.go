package store

import (
	"fmt"
	"hash/crc32"
	"io"
)

// CRC32 (IEEE) guards every dataset body and table blob against storage
// corruption. Not a tamper defense.

// ChecksumMismatchError reports a section whose stored checksum does not
// match its contents.
type ChecksumMismatchError struct {
	Section  string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("store: checksum mismatch in %s: expected 0x%08x, got 0x%08x", e.Section, e.Expected, e.Actual)
}

func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func verifyChecksum(section string, data []byte, expected uint32) error {
	if actual := checksum(data); actual != expected {
		return &ChecksumMismatchError{Section: section, Expected: expected, Actual: actual}
	}
	return nil
}

// checksumRegion computes the CRC32 of size bytes at off in r, in fixed-size
// chunks so finalizing a large aggregate does not buffer whole datasets.
func checksumRegion(r io.ReaderAt, off, size int64) (uint32, error) {
	const chunk = 64 << 10
	buf := make([]byte, chunk)
	var crc uint32
	for size > 0 {
		n := int64(chunk)
		if n > size {
			n = size
		}
		if _, err := r.ReadAt(buf[:n], off); err != nil {
			return 0, err
		}
		crc = crc32.Update(crc, crc32.IEEETable, buf[:n])
		off += n
		size -= n
	}
	return crc, nil
}
