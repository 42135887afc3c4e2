package featurebank

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/tensor"
)

func sourceInfo(dir, name string, feats map[string]FeatureInfo) SourceInfo {
	return SourceInfo{Directory: dir, Name: name, Features: feats}
}

func denseInfo(rows int, tail ...int) FeatureInfo {
	shape := append([]int{rows}, tail...)
	return FeatureInfo{DType: tensor.Float32.String(), Shape: shape}
}

func TestPlanLayout(t *testing.T) {
	infos := []SourceInfo{
		sourceInfo("d", "a", map[string]FeatureInfo{"f": denseInfo(10, 8)}),
		sourceInfo("d", "b", map[string]FeatureInfo{"f": denseInfo(20, 8)}),
		sourceInfo("d", "c", map[string]FeatureInfo{"f": denseInfo(5, 8)}),
	}

	defs, err := planLayout(infos)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	require.Equal(t, "f", def.Name)
	require.Equal(t, tensor.Float32, def.DType)
	require.Equal(t, []int{35, 8}, def.TotalShape)
	require.Equal(t, layout.Index{
		{Name: "d/a", Start: 0, Stop: 10},
		{Name: "d/b", Start: 10, Stop: 30},
		{Name: "d/c", Start: 30, Stop: 35},
	}, def.Layout)
	require.NoError(t, def.Layout.Validate())
}

func TestPlanLayoutShapeMismatch(t *testing.T) {
	infos := []SourceInfo{
		sourceInfo("d", "a", map[string]FeatureInfo{"f": denseInfo(100, 8)}),
		sourceInfo("d", "b", map[string]FeatureInfo{"f": denseInfo(50, 16)}),
	}

	_, err := planLayout(infos)
	var serr *ShapeMismatchError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, "f", serr.Feature)
	require.Equal(t, []string{"d/a", "d/b"}, serr.Sources)
}

func TestPlanLayoutDTypeMismatch(t *testing.T) {
	infos := []SourceInfo{
		sourceInfo("d", "a", map[string]FeatureInfo{"f": {DType: tensor.Float32.String(), Shape: []int{4, 2}}}),
		sourceInfo("d", "b", map[string]FeatureInfo{"f": {DType: tensor.Float64.String(), Shape: []int{4, 2}}}),
	}

	_, err := planLayout(infos)
	var serr *ShapeMismatchError
	require.True(t, errors.As(err, &serr))
}

func TestPlanLayoutMissingFeature(t *testing.T) {
	infos := []SourceInfo{
		sourceInfo("d", "a", map[string]FeatureInfo{"f": denseInfo(4, 2), "g": denseInfo(4, 2)}),
		sourceInfo("d", "b", map[string]FeatureInfo{"f": denseInfo(4, 2)}),
	}

	_, err := planLayout(infos)
	var merr *MissingFeatureError
	require.True(t, errors.As(err, &merr))
	require.Equal(t, "g", merr.Feature)
	require.Equal(t, []string{"d/b"}, merr.Sources)
}

func TestPlanLayoutCollectsAllViolations(t *testing.T) {
	infos := []SourceInfo{
		sourceInfo("d", "a", map[string]FeatureInfo{
			"f": denseInfo(4, 2),
			"g": denseInfo(4, 3),
		}),
		sourceInfo("d", "b", map[string]FeatureInfo{
			"f": denseInfo(4, 9), // mismatch
			// g missing
		}),
	}

	_, err := planLayout(infos)
	require.Error(t, err)

	var serr *ShapeMismatchError
	var merr *MissingFeatureError
	require.True(t, errors.As(err, &serr))
	require.True(t, errors.As(err, &merr))
}

func TestPlanLayoutZeroDuration(t *testing.T) {
	infos := []SourceInfo{
		sourceInfo("d", "a", map[string]FeatureInfo{"f": denseInfo(0, 2)}),
	}

	_, err := planLayout(infos)
	var zerr *layout.ZeroDurationError
	require.True(t, errors.As(err, &zerr))
}
