// Package tensor defines the dense value type carried through the pipeline:
// an N-dimensional array addressed by its leading (row) axis, backed by raw
// little-endian bytes so it can round-trip through storage without copies.
package tensor

import (
	"errors"
	"fmt"
	"unsafe"
)

// DType identifies the element type of a dense array. The numeric values are
// part of the on-disk format and must not be reordered.
type DType uint8

const (
	Float32 DType = iota + 1
	Float64
	Int16
	Int32
	Int64
	Uint8
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Int16:
		return 2
	case Uint8:
		return 1
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// ParseDType maps a dtype name back to its DType.
func ParseDType(s string) (DType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "uint8":
		return Uint8, nil
	default:
		return 0, fmt.Errorf("tensor: unknown dtype %q", s)
	}
}

var (
	// ErrDTypeMismatch is returned by typed views when the element type differs.
	ErrDTypeMismatch = errors.New("tensor: dtype mismatch")

	// ErrShape is returned for invalid shapes or mismatched data lengths.
	ErrShape = errors.New("tensor: invalid shape")
)

// ElemCount returns the number of elements implied by shape.
func ElemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Dense is a contiguous N-dimensional array. The first shape dimension is the
// row (time) axis; everything after it is the per-row layout shared by all
// sources of one feature.
type Dense struct {
	dtype DType
	shape []int
	data  []byte
}

// New allocates a zeroed Dense of the given dtype and shape.
func New(dt DType, shape []int) (*Dense, error) {
	if dt.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDTypeMismatch, dt)
	}
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
	}
	return &Dense{
		dtype: dt,
		shape: append([]int(nil), shape...),
		data:  make([]byte, ElemCount(shape)*dt.Size()),
	}, nil
}

// FromBytes wraps raw little-endian bytes without copying.
func FromBytes(dt DType, shape []int, data []byte) (*Dense, error) {
	want := ElemCount(shape) * dt.Size()
	if len(data) != want {
		return nil, fmt.Errorf("%w: %d bytes for shape %v of %s (want %d)", ErrShape, len(data), shape, dt, want)
	}
	return &Dense{dtype: dt, shape: append([]int(nil), shape...), data: data}, nil
}

// FromFloat32 wraps a float32 slice as a Dense of the given shape.
func FromFloat32(shape []int, vals []float32) (*Dense, error) {
	if ElemCount(shape) != len(vals) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(vals), shape)
	}
	var data []byte
	if len(vals) > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*4)
	}
	return &Dense{dtype: Float32, shape: append([]int(nil), shape...), data: data}, nil
}

// DType returns the element type.
func (t *Dense) DType() DType { return t.dtype }

// Shape returns the full shape. The returned slice must not be mutated.
func (t *Dense) Shape() []int { return t.shape }

// Rows returns the size of the leading axis (0 for a scalar).
func (t *Dense) Rows() int {
	if len(t.shape) == 0 {
		return 0
	}
	return t.shape[0]
}

// TailShape returns the dimensions beyond the leading axis.
func (t *Dense) TailShape() []int {
	if len(t.shape) == 0 {
		return nil
	}
	return t.shape[1:]
}

// RowSize returns the number of bytes per leading-axis row.
func (t *Dense) RowSize() int {
	return ElemCount(t.TailShape()) * t.dtype.Size()
}

// NumBytes returns the total byte size of the array.
func (t *Dense) NumBytes() int { return len(t.data) }

// Bytes returns the backing bytes. The slice aliases the array.
func (t *Dense) Bytes() []byte { return t.data }

// RowBytes returns the bytes of rows [start, stop). Bounds are checked.
func (t *Dense) RowBytes(start, stop int) ([]byte, error) {
	if start < 0 || stop < start || stop > t.Rows() {
		return nil, fmt.Errorf("%w: rows [%d, %d) of %d", ErrShape, start, stop, t.Rows())
	}
	rs := t.RowSize()
	return t.data[start*rs : stop*rs], nil
}

// Float32s returns a float32 view of the data. Fails unless dtype is Float32.
func (t *Dense) Float32s() ([]float32, error) {
	if t.dtype != Float32 {
		return nil, fmt.Errorf("%w: have %s, want float32", ErrDTypeMismatch, t.dtype)
	}
	if len(t.data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), len(t.data)/4), nil
}

// Float64s returns a float64 view of the data. Fails unless dtype is Float64.
func (t *Dense) Float64s() ([]float64, error) {
	if t.dtype != Float64 {
		return nil, fmt.Errorf("%w: have %s, want float64", ErrDTypeMismatch, t.dtype)
	}
	if len(t.data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&t.data[0])), len(t.data)/8), nil
}

// Clone returns a deep copy.
func (t *Dense) Clone() *Dense {
	data := make([]byte, len(t.data))
	copy(data, t.data)
	return &Dense{dtype: t.dtype, shape: append([]int(nil), t.shape...), data: data}
}

// EqualShape reports whether two shapes are identical.
func EqualShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
