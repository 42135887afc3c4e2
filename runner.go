package featurebank

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/k-tonal/featurebank/extract"
	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/store"
)

// FeatureInfo records one dense feature of one source: dtype, full shape
// and size on disk, as kept in the "info" side table.
type FeatureInfo struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Bytes int64  `json:"bytes"`
	Size  string `json:"size"`
}

// SourceInfo records one processed source: its path split into directory
// and name, the per-source store it was written to, and per-feature stats.
type SourceInfo struct {
	Directory string                 `json:"directory"`
	Name      string                 `json:"name"`
	StorePath string                 `json:"store_path"`
	Features  map[string]FeatureInfo `json:"features"`

	// tables holds the source's tabular features; they travel to the
	// allocator in memory, not through the info table.
	tables map[string]layout.Index
}

// Path returns the source path the info was built from.
func (s SourceInfo) Path() string {
	return filepath.Join(s.Directory, s.Name)
}

// extractSource runs the extractor on one source and writes the result to a
// fresh per-source store next to it. A failed source produces no store file.
func extractSource(ctx context.Context, o *options, source string) (SourceInfo, error) {
	res, err := o.extractor.Extract(ctx, source)
	if err != nil {
		return SourceInfo{}, &ExtractionError{Source: source, cause: err}
	}

	info := SourceInfo{
		Directory: filepath.Dir(source),
		Name:      filepath.Base(source),
		StorePath: source + o.storeExt,
		Features:  make(map[string]FeatureInfo, len(res)),
		tables:    make(map[string]layout.Index),
	}

	w, err := store.Create(info.StorePath, o.storeOptions()...)
	if err != nil {
		return SourceInfo{}, &ExtractionError{Source: source, cause: err}
	}

	if err := writeFeatures(w, res, o.encoding, &info); err != nil {
		_ = w.Abort()
		return SourceInfo{}, &ExtractionError{Source: source, cause: err}
	}
	if err := w.PutTable("info", info); err != nil {
		_ = w.Abort()
		return SourceInfo{}, &ExtractionError{Source: source, cause: err}
	}
	if err := w.Close(); err != nil {
		return SourceInfo{}, &ExtractionError{Source: source, cause: err}
	}
	return info, nil
}

// Append runs the extractor on source and adds the resulting features to
// its existing per-source store. A feature name already present in the
// store fails with DuplicateFeatureError; concatenation of same-named
// features belongs to the aggregation stage.
func Append(ctx context.Context, source string, opts ...Option) error {
	o := applyOptions(opts)

	res, err := o.extractor.Extract(ctx, source)
	if err != nil {
		return &ExtractionError{Source: source, cause: err}
	}

	path := source + o.storeExt
	w, err := store.OpenAppend(path, o.storeOptions()...)
	if err != nil {
		return err
	}

	info := SourceInfo{Features: make(map[string]FeatureInfo), tables: make(map[string]layout.Index)}
	if err := writeFeatures(w, res, o.encoding, &info); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

// writeFeatures writes an extraction result into w in sorted feature order,
// keeping the store bytes deterministic. Dense features become datasets,
// tabular features become side tables. info is updated in place.
func writeFeatures(w *store.Writer, res extract.Result, enc store.Encoding, info *SourceInfo) error {
	names := make([]string, 0, len(res))
	for name := range res {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := res[name]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}

		if f.IsTable() {
			if err := w.PutTable(name, f.Table); err != nil {
				return wrapDuplicate(name, w.Path(), err)
			}
			info.tables[name] = f.Table
			continue
		}

		dsOpts := []store.DatasetOption{store.WithEncoding(enc)}
		if len(f.Attrs) > 0 {
			dsOpts = append(dsOpts, store.WithAttrs(f.Attrs))
		}
		if err := w.CreateDataset(name, f.Dense.DType(), f.Dense.Shape(), dsOpts...); err != nil {
			return wrapDuplicate(name, w.Path(), err)
		}
		if err := w.WriteAll(name, f.Dense); err != nil {
			return err
		}

		info.Features[name] = FeatureInfo{
			DType: f.Dense.DType().String(),
			Shape: f.Dense.Shape(),
			Bytes: int64(f.Dense.NumBytes()),
			Size:  humanSize(int64(f.Dense.NumBytes())),
		}
	}
	return nil
}

func wrapDuplicate(feature, path string, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return &DuplicateFeatureError{Feature: feature, Path: path, cause: err}
	}
	return err
}

// humanSize renders a byte count the way the info table prints it.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
