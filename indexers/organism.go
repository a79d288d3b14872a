package indexers

import (
	"context"

	"github.com/simlattice/indexer/simdb"
	"github.com/simlattice/indexer/simtypes"
)

// OrganismIndexer is a thin batchindexer.Flusher wrapping
// simdb.OrganismWriter.
type OrganismIndexer struct {
	Pool   *simdb.Pool
	Writer *simdb.OrganismWriter

	// BindWriter resolves Writer against the resolved run id when the
	// caller can't know it up front (manager.Manager in tail/parallel
	// mode). See EnvironmentIndexer.BindWriter.
	BindWriter func(ctx context.Context, runID simtypes.RunID) (*simdb.OrganismWriter, error)
}

// PrepareSchema implements batchindexer.Preparer.
func (o *OrganismIndexer) PrepareSchema(ctx context.Context, runID simtypes.RunID) error {
	if err := o.Pool.PrepareSchema(ctx, runID); err != nil {
		return err
	}
	if o.Writer == nil && o.BindWriter != nil {
		w, err := o.BindWriter(ctx, runID)
		if err != nil {
			return err
		}
		o.Writer = w
	}
	return nil
}

// FlushTicks implements batchindexer.Flusher.
func (o *OrganismIndexer) FlushTicks(ctx context.Context, ticks []simtypes.TickRecord) error {
	return o.Writer.FlushTicks(ctx, ticks)
}
