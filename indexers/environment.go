package indexers

import (
	"context"

	"github.com/simlattice/indexer/simdb"
	"github.com/simlattice/indexer/simtypes"
)

// EnvironmentIndexer is a thin batchindexer.Flusher wrapping
// simdb.EnvironmentWriter: it learns the run's grid shape from SetMetadata
// (the Metadata component calls this before the main loop starts) and
// translates cell flat indices through it on every flush.
type EnvironmentIndexer struct {
	Pool   *simdb.Pool
	Writer *simdb.EnvironmentWriter

	// BindWriter resolves Writer against the resolved run id, for callers
	// (manager.Manager) that cannot bind a run-scoped writer until
	// discovery has picked a run — e.g. tail/parallel mode. Consulted only
	// when Writer is nil. Direct callers that already know the run id up
	// front (post-mortem mode, tests) just set Writer.
	BindWriter func(ctx context.Context, runID simtypes.RunID) (*simdb.EnvironmentWriter, error)

	shape []int
}

// SetMetadata implements batchindexer.MetadataAware.
func (e *EnvironmentIndexer) SetMetadata(meta simtypes.SimulationMetadata) {
	e.shape = meta.Environment.Shape
}

// PrepareSchema implements batchindexer.Preparer.
func (e *EnvironmentIndexer) PrepareSchema(ctx context.Context, runID simtypes.RunID) error {
	if err := e.Pool.PrepareSchema(ctx, runID); err != nil {
		return err
	}
	if e.Writer == nil && e.BindWriter != nil {
		w, err := e.BindWriter(ctx, runID)
		if err != nil {
			return err
		}
		e.Writer = w
	}
	return nil
}

// FlushTicks implements batchindexer.Flusher.
func (e *EnvironmentIndexer) FlushTicks(ctx context.Context, ticks []simtypes.TickRecord) error {
	return e.Writer.FlushTicks(ctx, e.shape, ticks)
}
