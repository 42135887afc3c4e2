package featurebank

import (
	"context"
	"sync"

	"github.com/k-tonal/featurebank/resource"
)

// sourceTask is one unit of scheduler work.
type sourceTask func(ctx context.Context, source string) (SourceInfo, error)

// runScheduler fans run out over sources with the controller bounding
// concurrency, and returns results positionally: infos[i] belongs to
// sources[i], regardless of completion order. Layout construction depends
// on that ordering, so it is threaded as data and never re-derived.
//
// A source's failure never aborts siblings; failures come back in failed
// with ok[i] reporting which slots succeeded. Cancellation stops new
// sources from starting but lets in-flight ones finish, so their stores
// stay usable for a later resume.
func runScheduler(ctx context.Context, ctrl *resource.Controller, log *Logger, sources []string, run sourceTask) (infos []SourceInfo, ok []bool, failed []error) {
	infos = make([]SourceInfo, len(sources))
	ok = make([]bool, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		if err := ctrl.AcquireWorker(ctx); err != nil {
			errs[i] = err
			break
		}

		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			defer ctrl.ReleaseWorker()

			log.WithSource(src).Debug("extracting")
			info, err := run(ctx, src)
			if err != nil {
				log.WithSource(src).Error("extraction failed", "error", err)
				errs[i] = err
				return
			}
			infos[i] = info
			ok[i] = true
		}(i, src)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return infos, ok, failed
}
