package featurebank

import (
	"context"
	"fmt"
	"sync"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/resource"
	"github.com/k-tonal/featurebank/store"
)

// scatterPair is one unit of scatter work: one feature of one source and
// its reserved row range in the aggregate.
type scatterPair struct {
	feature   string
	source    string
	storePath string
	seg       layout.Segment
}

// runScatter copies every (feature, source) pair from its per-source store
// into the aggregate at the rows the layout reserved. Ranges never overlap
// by the layout's contiguity invariant, so all pairs run in parallel
// through one shared writer handle. A pair's failure is isolated and
// reported with its feature, source, and target range.
func runScatter(ctx context.Context, o *options, ctrl *resource.Controller, w *store.Writer, defs []FeatureDefinition, infos []SourceInfo) []error {
	stores := make(map[string]SourceInfo, len(infos))
	for _, info := range infos {
		stores[info.Path()] = info
	}

	var pairs []scatterPair
	for _, def := range defs {
		for _, seg := range def.Layout {
			pairs = append(pairs, scatterPair{
				feature:   def.Name,
				source:    seg.Name,
				storePath: stores[seg.Name].StorePath,
				seg:       seg,
			})
		}
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	log := o.logger.WithStage("scatter")
	for _, p := range pairs {
		if err := ctrl.AcquireWorker(ctx); err != nil {
			fail(err)
			break
		}

		wg.Add(1)
		go func(p scatterPair) {
			defer wg.Done()
			defer ctrl.ReleaseWorker()

			if err := scatterOne(ctx, o, ctrl, w, p); err != nil {
				log.WithFeature(p.feature).WithSource(p.source).Error("scatter failed", "error", err)
				fail(&IntegrationError{
					Feature: p.feature,
					Source:  p.source,
					Start:   p.seg.Start,
					Stop:    p.seg.Stop,
					cause:   err,
				})
			}
		}(p)
	}
	wg.Wait()
	return errs
}

func scatterOne(ctx context.Context, o *options, ctrl *resource.Controller, w *store.Writer, p scatterPair) error {
	r, err := store.Open(p.storePath)
	if err != nil {
		return err
	}
	defer r.Close()

	info, err := r.Info(p.feature)
	if err != nil {
		return err
	}
	size := info.RawSize
	if err := ctrl.AcquireMemory(ctx, size); err != nil {
		return err
	}
	defer ctrl.ReleaseMemory(size)

	t, err := r.ReadAll(p.feature)
	if err != nil {
		return err
	}
	if uint64(t.Rows()) != p.seg.Len() {
		return fmt.Errorf("source has %d rows, layout reserved %d", t.Rows(), p.seg.Len())
	}

	if err := ctrl.WaitIO(ctx, t.NumBytes()); err != nil {
		return err
	}
	return w.WriteRows(p.feature, p.seg.Start, t)
}
