package indexer

import (
	"context"

	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/svc"
	"github.com/simlattice/indexer/xerrors"
)

// Worker is the extension point a batch-indexer engine or standalone
// indexer (MetadataIndexer) implements once run-id discovery has resolved
// runID, per spec §4.2's "indexRun(runId) is invoked on the worker".
type Worker interface {
	IndexRun(ctx context.Context, runID simtypes.RunID) error
}

// Base embeds the service base and adds run-id discovery, per spec §4.2.
// Indexer specializations embed Base (directly, or via batchindexer.Engine)
// to get Start/Stop/Status plus a resolved RunID before their Worker hook
// runs.
type Base struct {
	*svc.Base

	Discoverer *RunDiscoverer
	RunID      simtypes.RunID
}

// NewBase builds an indexer Base named name, discovering runs via
// discoverer.
func NewBase(name string, discoverer *RunDiscoverer) *Base {
	return &Base{Base: svc.NewBase(name), Discoverer: discoverer}
}

// Start resolves the run id and hands off to worker.IndexRun, running
// synchronously in the caller's goroutine — the manager's per-service
// runner calls this from the dedicated goroutine Manager.Start launches for
// each service, matching spec's "single worker per indexer".
//
// On successful discovery, transitions STOPPED -> STARTING -> RUNNING
// before invoking worker.IndexRun. On discovery failure/timeout, fails with
// xerrors.RunNotFound and does not invoke worker.IndexRun, per spec §4.2's
// "On timeout, transition to ERROR with RUN_NOT_FOUND".
func (b *Base) Start(ctx context.Context, worker Worker) error {
	if !b.BeginStart() {
		return nil
	}

	runID, err := b.Discoverer.Discover(ctx)
	if err != nil {
		b.Metrics.Inc("runs_failed", 1)
		b.Fail(xerrors.RunNotFound, err.Error())
		return err
	}
	b.RunID = runID

	if !b.MarkRunning() {
		return nil
	}

	return worker.IndexRun(ctx, runID)
}
