package indexers

import (
	"context"

	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/simtypes"
)

// DummyIndexer is a control specialization for pipeline smoke tests: no
// database writes beyond counting, optional buffering same as any other
// specialization. Per spec §4.4, it increments runs_processed /
// batches_processed only — batches_processed is already the engine's own
// ACK-driven metric, so DummyIndexer's own bookkeeping is limited to
// runs_processed, once per run.
type DummyIndexer struct {
	Base *indexer.Base
}

// PrepareSchema implements batchindexer.Preparer. DummyIndexer has no
// schema of its own; this is where the once-per-run counter lives.
func (d *DummyIndexer) PrepareSchema(ctx context.Context, runID simtypes.RunID) error {
	d.Base.Metrics.Inc("runs_processed", 1)
	return nil
}

// FlushTicks implements batchindexer.Flusher as a no-op.
func (d *DummyIndexer) FlushTicks(ctx context.Context, ticks []simtypes.TickRecord) error {
	return nil
}
