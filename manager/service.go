package manager

import (
	"context"

	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/svc"
)

// Service is the uniform handle Manager holds for every running
// specialization, whether it is a single-shot MetadataIndexer or a
// long-running batchindexer.Engine.
type Service interface {
	Name() string
	// Run blocks until the service stops on its own (MetadataIndexer, one
	// message then done) or Stop is called. Manager always calls Run in
	// its own goroutine.
	Run(ctx context.Context) error
	// Stop requests the service wind down and blocks until it has. A
	// service that already terminates on its own (no running loop to
	// interrupt) implements this as a no-op.
	Stop()
	Status() svc.Status
}

// runner adapts an indexer.Base plus its indexer.Worker into a Service.
// stopFn is nil for workers that terminate on their own once IndexRun
// returns (indexers.MetadataIndexer); batchindexer.Engine-backed workers
// pass engine.Stop.
type runner struct {
	base   *indexer.Base
	worker indexer.Worker
	stopFn func()
}

func newRunner(base *indexer.Base, worker indexer.Worker, stopFn func()) *runner {
	return &runner{base: base, worker: worker, stopFn: stopFn}
}

func (r *runner) Name() string { return r.base.Name }

func (r *runner) Run(ctx context.Context) error {
	return r.base.Start(ctx, r.worker)
}

func (r *runner) Stop() {
	if r.stopFn != nil {
		r.stopFn()
	}
}

func (r *runner) Status() svc.Status { return r.base.Status() }
