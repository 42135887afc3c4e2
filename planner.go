package featurebank

import (
	"sort"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/tensor"
)

// FeatureDefinition is the contract the allocator turns into one pre-sized
// aggregate dataset: total shape, dtype, and the layout mapping each source
// to its reserved row range.
type FeatureDefinition struct {
	Name       string
	DType      tensor.DType
	TotalShape []int
	Layout     layout.Index
}

// planLayout derives one FeatureDefinition per feature from the ordered
// SourceInfo collection. Every source must carry every feature with the
// same dtype and non-leading dimensions; a ragged aggregate cannot be
// addressed by a single layout per feature, so partial coverage and shape
// disagreements fail the plan before anything is allocated. All violations
// are collected, not just the first.
func planLayout(infos []SourceInfo) ([]FeatureDefinition, error) {
	// Feature names in first-seen order, following source order.
	var featNames []string
	seen := make(map[string]bool)
	for _, info := range infos {
		names := make([]string, 0, len(info.Features))
		for name := range info.Features {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				featNames = append(featNames, name)
			}
		}
	}

	var errs []error
	defs := make([]FeatureDefinition, 0, len(featNames))

	for _, feat := range featNames {
		var (
			refSource string
			refDType  tensor.DType
			refTail   []int
			missing   []string
			offenders []string
		)
		segNames := make([]string, 0, len(infos))
		durations := make([]uint64, 0, len(infos))

		for _, info := range infos {
			fi, ok := info.Features[feat]
			if !ok {
				missing = append(missing, info.Path())
				continue
			}

			dt, err := tensor.ParseDType(fi.DType)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			if refSource == "" {
				refSource = info.Path()
				refDType = dt
				refTail = fi.Shape[1:]
			} else if dt != refDType || !tensor.EqualShape(fi.Shape[1:], refTail) {
				offenders = append(offenders, info.Path())
			}

			segNames = append(segNames, info.Path())
			durations = append(durations, uint64(fi.Shape[0]))
		}

		if len(missing) > 0 {
			errs = append(errs, &MissingFeatureError{Feature: feat, Sources: missing})
			continue
		}
		if len(offenders) > 0 {
			errs = append(errs, &ShapeMismatchError{Feature: feat, Sources: append([]string{refSource}, offenders...)})
			continue
		}

		idx, err := layout.FromDurations(segNames, durations)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		total := make([]int, 0, 1+len(refTail))
		total = append(total, int(idx.LastStop()))
		total = append(total, refTail...)

		defs = append(defs, FeatureDefinition{
			Name:       feat,
			DType:      refDType,
			TotalShape: total,
			Layout:     idx,
		})
	}

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return defs, nil
}
