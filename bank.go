package featurebank

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/store"
	"github.com/k-tonal/featurebank/tensor"
)

// Bank is a finished aggregate store reopened for reading. It answers
// subset selection from the persisted layout tables alone; the original
// sources are never touched.
type Bank struct {
	r       *store.Reader
	layouts map[string]layout.Index
}

// OpenBank opens the aggregate store at path and loads every feature's
// layout table. A layout that violates contiguity or ordering on reload is
// a fatal integrity failure, never repaired.
func OpenBank(path string) (*Bank, error) {
	r, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	b := &Bank{r: r, layouts: make(map[string]layout.Index)}
	for _, name := range r.Tables() {
		feat, ok := strings.CutPrefix(name, layoutTablePrefix)
		if !ok {
			continue
		}
		var idx layout.Index
		if err := r.GetTable(name, &idx); err != nil {
			r.Close()
			return nil, err
		}
		if err := idx.Validate(); err != nil {
			r.Close()
			return nil, fmt.Errorf("bank %s: feature %q: %w", path, feat, err)
		}
		b.layouts[feat] = idx
	}
	return b, nil
}

// Path returns the path the bank was opened from.
func (b *Bank) Path() string { return b.r.Path() }

// Features returns the aggregated feature names in creation order.
func (b *Bank) Features() []string {
	return b.r.Datasets()
}

// Sources returns the source names of a feature's layout, in build order.
func (b *Bank) Sources(feature string) ([]string, error) {
	idx, err := b.layout(feature)
	if err != nil {
		return nil, err
	}
	return idx.Names(), nil
}

// Layout returns the feature's layout index.
func (b *Bank) Layout(feature string) (layout.Index, error) {
	return b.layout(feature)
}

func (b *Bank) layout(feature string) (layout.Index, error) {
	idx, ok := b.layouts[feature]
	if !ok {
		return nil, fmt.Errorf("%w: no layout for feature %q", store.ErrNotFound, feature)
	}
	return idx, nil
}

// Info returns the per-source per-feature stats recorded at build time.
func (b *Bank) Info() ([]SourceInfo, error) {
	var infos []SourceInfo
	if err := b.r.GetTable("info", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// TotalRows returns the feature's aggregate leading-axis size.
func (b *Bank) TotalRows(feature string) (uint64, error) {
	idx, err := b.layout(feature)
	if err != nil {
		return 0, err
	}
	return idx.LastStop(), nil
}

// RowsOf reads the rows a single source contributed to a feature.
func (b *Bank) RowsOf(feature, source string) (*tensor.Dense, error) {
	idx, err := b.layout(feature)
	if err != nil {
		return nil, err
	}
	seg, ok := idx.Find(source)
	if !ok {
		return nil, &layout.UnknownSegmentError{Name: source}
	}
	return b.r.ReadRows(feature, seg.Start, seg.Stop)
}

// Indices returns the flat ordered absolute row indices covered by the
// named sources of a feature.
func (b *Bank) Indices(feature string, sources ...string) ([]uint64, error) {
	idx, err := b.layout(feature)
	if err != nil {
		return nil, err
	}
	return idx.AllIndices(sources...)
}

// Bitmap returns the rows covered by the named sources of a feature as a
// roaring bitmap.
func (b *Bank) Bitmap(feature string, sources ...string) (*roaring64.Bitmap, error) {
	idx, err := b.layout(feature)
	if err != nil {
		return nil, err
	}
	return idx.Bitmap(sources...)
}

// ReadRows reads rows [start, stop) of a feature dataset.
func (b *Bank) ReadRows(feature string, start, stop uint64) (*tensor.Dense, error) {
	return b.r.ReadRows(feature, start, stop)
}

// ReadAll reads a complete feature dataset, verifying its checksum.
func (b *Bank) ReadAll(feature string) (*tensor.Dense, error) {
	return b.r.ReadAll(feature)
}

// Attrs decodes a feature's attribute metadata into v.
func (b *Bank) Attrs(feature string, v any) error {
	return b.r.Attrs(feature, v)
}

// Metadata returns the concatenated per-source metadata table, if the
// extractor produced one for every source.
func (b *Bank) Metadata() (layout.Index, error) {
	var idx layout.Index
	if err := b.r.GetTable("metadata", &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Close releases the underlying store.
func (b *Bank) Close() error {
	return b.r.Close()
}
