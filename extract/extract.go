// Package extract defines the extraction capability consumed by the build
// pipeline: a function from one source file to named feature values.
//
// Extractors must be deterministic and side-effect-free with respect to
// their input; the pipeline may retry them.
package extract

import (
	"context"
	"errors"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/tensor"
)

// ErrInvalidFeature is returned when a feature value is neither dense nor
// tabular.
var ErrInvalidFeature = errors.New("extract: feature must be dense or tabular")

// Attrs is attribute metadata attached to a dense feature.
type Attrs map[string]any

// Feature is a tagged value: exactly one of Dense or Table is set. Dense
// values become datasets; tables go through the store's side-table channel.
type Feature struct {
	Attrs Attrs
	Dense *tensor.Dense
	Table layout.Index
}

// DenseFeature wraps a dense array as a feature.
func DenseFeature(t *tensor.Dense, attrs Attrs) Feature {
	return Feature{Attrs: attrs, Dense: t}
}

// TableFeature wraps a segment table as a feature.
func TableFeature(idx layout.Index, attrs Attrs) Feature {
	return Feature{Attrs: attrs, Table: idx}
}

// IsDense reports whether the feature carries a dense value.
func (f Feature) IsDense() bool { return f.Dense != nil }

// IsTable reports whether the feature carries a table value.
func (f Feature) IsTable() bool { return f.Dense == nil && f.Table != nil }

// Validate checks that exactly one variant is set.
func (f Feature) Validate() error {
	if f.Dense != nil && f.Table != nil {
		return ErrInvalidFeature
	}
	if f.Dense == nil && f.Table == nil {
		return ErrInvalidFeature
	}
	return nil
}

// Result maps feature names to extracted values.
type Result map[string]Feature

// Extractor turns one source file into named feature values.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, path string) (Result, error)

// Extract implements Extractor.
func (f Func) Extract(ctx context.Context, path string) (Result, error) {
	return f(ctx, path)
}
