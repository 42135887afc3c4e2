package featurebank

import (
	"sort"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/store"
)

// layoutTablePrefix namespaces the per-feature layout tables in the
// aggregate store.
const layoutTablePrefix = "layouts/"

// allocate pre-creates every aggregate dataset at its planned total shape
// and persists the side tables, before any scatter write begins. Datasets
// are always raw so disjoint row ranges can be written concurrently.
//
// Side tables: one "layouts/<feature>" per feature, the global "info"
// table with per-source per-feature stats, and one concatenated table per
// tabular feature shared by all sources (the extractor's "metadata" table
// ends up here, shifted into the aggregate row space).
func allocate(w *store.Writer, defs []FeatureDefinition, infos []SourceInfo) error {
	for _, def := range defs {
		if err := w.CreateDataset(def.Name, def.DType, def.TotalShape); err != nil {
			return err
		}
		if err := w.PutTable(layoutTablePrefix+def.Name, def.Layout); err != nil {
			return err
		}
	}

	if err := w.PutTable("info", infos); err != nil {
		return err
	}

	for _, name := range sharedTables(infos) {
		parts := make([]layout.Index, len(infos))
		for i, info := range infos {
			parts[i] = info.tables[name]
		}
		if err := w.PutTable(name, layout.Concat(parts...)); err != nil {
			return err
		}
	}
	return nil
}

// sharedTables returns, sorted, the tabular feature names present in every
// source. Tables only some sources carry cannot be concatenated into one
// aggregate row space and are skipped.
func sharedTables(infos []SourceInfo) []string {
	if len(infos) == 0 {
		return nil
	}
	var names []string
	for name := range infos[0].tables {
		shared := true
		for _, info := range infos[1:] {
			if _, ok := info.tables[name]; !ok {
				shared = false
				break
			}
		}
		if shared {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
