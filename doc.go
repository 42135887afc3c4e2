// Package featurebank builds contiguous, randomly addressable feature banks
// from collections of sample files.
//
// A build runs in two stages. First, every source file is handed to an
// extractor and its features are written to an isolated per-source store,
// with a bounded worker pool fanning extraction out across sources. Then a
// layout is planned from the collected shapes, one aggregate store is
// pre-allocated to the total size, and each source's rows are scattered
// into their reserved row ranges in parallel.
//
// The aggregate store is self-describing: it carries one layout table per
// feature mapping source names to row ranges, so later consumers can answer
// "all rows of source X" without touching the original sources. Use Bank to
// reopen a finished aggregate.
//
//	result, err := featurebank.New("bank.fbk",
//	    featurebank.WithRoots("samples/"),
//	    featurebank.WithWorkers(8),
//	).Run(ctx)
package featurebank
