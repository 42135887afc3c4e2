package featurebank

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/k-tonal/featurebank/extract"
	"github.com/k-tonal/featurebank/store"
	"github.com/k-tonal/featurebank/tensor"
	"github.com/k-tonal/featurebank/testutil"
)

func TestExtractSourceWritesStore(t *testing.T) {
	ctx := context.Background()
	dir, paths := testutil.SourceDir(t, testutil.NewRNG(20), []int{12})
	_ = dir

	o := applyOptions([]Option{WithExtractor(rampExtractor(2))})
	info, err := extractSource(ctx, &o, paths[0])
	require.NoError(t, err)

	require.Equal(t, "src000.f32", info.Name)
	require.Equal(t, paths[0], info.Path())
	require.Equal(t, paths[0]+DefaultStoreExt, info.StorePath)
	require.Equal(t, []int{12, 2}, info.Features["f"].Shape)
	require.Equal(t, "float32", info.Features["f"].DType)
	require.Equal(t, int64(12*2*4), info.Features["f"].Bytes)

	r, err := store.Open(info.StorePath)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, []string{"f"}, r.Datasets())
	require.Contains(t, r.Tables(), "info")
	require.Contains(t, r.Tables(), "metadata")

	var attrs map[string]any
	require.NoError(t, r.Attrs("f", &attrs))
	require.EqualValues(t, 2, attrs["tail"])
}

func TestExtractSourceFailureLeavesNoStore(t *testing.T) {
	ctx := context.Background()
	_, paths := testutil.SourceDir(t, testutil.NewRNG(21), []int{8})

	o := applyOptions([]Option{WithExtractor(extract.Func(
		func(ctx context.Context, path string) (extract.Result, error) {
			return nil, fmt.Errorf("boom")
		}))})

	_, err := extractSource(ctx, &o, paths[0])
	var xerr *ExtractionError
	require.True(t, errors.As(err, &xerr))
	require.Equal(t, paths[0], xerr.Source)

	_, err = os.Stat(paths[0] + DefaultStoreExt)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAppendNewFeature(t *testing.T) {
	ctx := context.Background()
	_, paths := testutil.SourceDir(t, testutil.NewRNG(22), []int{8})

	o := applyOptions([]Option{WithExtractor(rampExtractor(1))})
	_, err := extractSource(ctx, &o, paths[0])
	require.NoError(t, err)

	gExtractor := extract.Func(func(ctx context.Context, path string) (extract.Result, error) {
		d, err := tensor.FromFloat32([]int{8, 1}, make([]float32, 8))
		if err != nil {
			return nil, err
		}
		return extract.Result{"g": extract.DenseFeature(d, nil)}, nil
	})

	require.NoError(t, Append(ctx, paths[0], WithExtractor(gExtractor)))

	r, err := store.Open(paths[0] + DefaultStoreExt)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, []string{"f", "g"}, r.Datasets())
}

func TestAppendDuplicateFeature(t *testing.T) {
	ctx := context.Background()
	_, paths := testutil.SourceDir(t, testutil.NewRNG(23), []int{8})

	o := applyOptions([]Option{WithExtractor(rampExtractor(1))})
	_, err := extractSource(ctx, &o, paths[0])
	require.NoError(t, err)

	err = Append(ctx, paths[0], WithExtractor(rampExtractor(1)))
	var derr *DuplicateFeatureError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, "f", derr.Feature)
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestHumanSize(t *testing.T) {
	require.Equal(t, "512 B", humanSize(512))
	require.Equal(t, "1.0 KiB", humanSize(1024))
	require.Equal(t, "1.5 MiB", humanSize(3*1024*1024/2))
}
