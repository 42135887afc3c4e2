package featurebank

import (
	"context"

	"github.com/k-tonal/featurebank/store"
	"github.com/k-tonal/featurebank/walk"
)

// Pipeline builds one aggregate feature bank from a collection of source
// files. Construct it with New, configure it with Options, then call Run.
type Pipeline struct {
	out  string
	opts options
}

// Result reports the outcome of a build.
type Result struct {
	// Path of the finished aggregate store.
	Path string

	// Sources that made it into the aggregate, in input order.
	Sources []SourceInfo

	// Features that were aggregated.
	Features []FeatureDefinition

	// Failed collects per-source extraction failures. In lenient mode the
	// build can still succeed with Failed non-empty.
	Failed []error
}

// New creates a Pipeline writing its aggregate store to out.
func New(out string, opts ...Option) *Pipeline {
	return &Pipeline{out: out, opts: applyOptions(opts)}
}

// Run executes the full build: walk sources, extract them in parallel into
// per-source stores, plan the layout, pre-allocate the aggregate, scatter
// every source into its reserved rows, and finalize.
//
// In strict mode any extraction failure fails the build before the
// aggregate is created; per-source stores already written are left on disk
// for a resume. In lenient mode failed sources are excluded and reported
// in the Result. Per-source stores are deleted afterwards only when
// RemoveSources is set and every scatter write succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	o := &p.opts
	log := o.logger
	ctrl := o.controller()

	walkOpts := []walk.Option{
		walk.WithRoots(o.roots...),
		walk.WithFiles(o.files...),
	}
	if len(o.extensions) > 0 {
		walkOpts = append(walkOpts, walk.WithExtensions(o.extensions...))
	}
	sources, err := walk.New(walkOpts...).Sources()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	log.WithStage("extract").Info("starting build", "sources", len(sources), "workers", o.workers)

	infos, ok, failed := runScheduler(ctx, ctrl, log.WithStage("extract"), sources, func(ctx context.Context, src string) (SourceInfo, error) {
		return extractSource(ctx, o, src)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(failed) > 0 && !o.lenient {
		return nil, joinErrors(failed)
	}

	// Keep input order among the survivors; the layout is built from this
	// exact order.
	kept := infos[:0]
	for i := range infos {
		if ok[i] {
			kept = append(kept, infos[i])
		}
	}
	if len(kept) == 0 {
		return nil, joinErrors(append(failed, ErrAllSourcesFailed))
	}
	for _, err := range failed {
		log.WithStage("extract").Warn("source excluded", "error", err)
	}

	defs, err := planLayout(kept)
	if err != nil {
		return nil, err
	}
	log.WithStage("plan").Info("layout planned", "features", len(defs), "sources", len(kept))

	w, err := store.Create(p.out, o.storeOptions()...)
	if err != nil {
		return nil, err
	}
	if err := allocate(w, defs, kept); err != nil {
		_ = w.Abort()
		return nil, err
	}

	scatterErrs := runScatter(ctx, o, ctrl, w, defs, kept)

	// Finalize even on partial scatter so the reported ranges can be
	// redone against a readable store.
	if err := w.Close(); err != nil {
		if len(scatterErrs) == 0 {
			return nil, err
		}
		scatterErrs = append(scatterErrs, err)
	}

	res := &Result{Path: p.out, Sources: kept, Features: defs, Failed: failed}
	if len(scatterErrs) > 0 {
		return res, joinErrors(scatterErrs)
	}

	if o.removeSources {
		for _, info := range kept {
			if err := o.fsys.Remove(info.StorePath); err != nil {
				log.WithStage("cleanup").Warn("removing per-source store failed", "path", info.StorePath, "error", err)
			}
		}
	}
	log.WithStage("done").Info("build complete", "path", p.out, "features", len(defs), "sources", len(kept))
	return res, nil
}
