// Package indexers holds the indexer specializations named in spec §4.4:
// MetadataIndexer (a standalone single-message lifecycle atop indexer.Base),
// and EnvironmentIndexer / OrganismIndexer / DummyIndexer (thin
// batchindexer.Flusher implementations consumed by batchindexer.Engine).
package indexers

import (
	"context"
	"errors"
	"time"

	"github.com/simlattice/indexer/blobstore"
	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/simdb"
	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/topic"
	"github.com/simlattice/indexer/xerrors"
)

// MetadataIndexer is a single-message lifecycle, per spec §4.4: poll the
// metadata topic once, read the referenced blob, create the run schema,
// upsert the metadata row, ack, stop. It runs directly atop indexer.Base —
// unlike the other specializations it is not a batchindexer.Flusher, since
// there is exactly one message to ever process per run.
type MetadataIndexer struct {
	Base    *indexer.Base
	Topic   topic.Reader
	Storage blobstore.Reader
	Pool    *simdb.Pool
	Writer  *simdb.MetadataWriter

	// BindWriter resolves Writer against the resolved run id when the
	// caller can't know it up front. See EnvironmentIndexer.BindWriter.
	BindWriter func(ctx context.Context, runID simtypes.RunID) (*simdb.MetadataWriter, error)

	PollTimeout       time.Duration
	PollRetryInterval time.Duration
}

var _ indexer.Worker = (*MetadataIndexer)(nil)

// IndexRun implements indexer.Worker. The caller has already transitioned
// the service to RUNNING; this resolves to either STOPPED (success) or
// ERROR (any failure, per spec's "poll timeout -> ERROR with no ACK" /
// "database failure after read -> ERROR, no ACK").
func (m *MetadataIndexer) IndexRun(ctx context.Context, runID simtypes.RunID) error {
	retry := m.PollRetryInterval
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	msg, ok, err := m.pollWithBudget(ctx, retry)
	if err != nil {
		m.Base.Metrics.Inc("metadata_failed", 1)
		m.Base.Fail(xerrors.MetadataTimeout, err.Error())
		return err
	}
	if !ok {
		m.Base.Metrics.Inc("metadata_failed", 1)
		err := xerrors.New(xerrors.MetadataTimeout, "metadata topic poll timed out")
		m.Base.Fail(xerrors.MetadataTimeout, err.Error())
		return err
	}

	info, err := msg.DecodeMetadataInfo()
	if err != nil {
		m.Base.Metrics.Inc("metadata_failed", 1)
		m.Base.Fail(xerrors.InvalidBatch, err.Error())
		return err
	}

	var meta simtypes.SimulationMetadata
	if err := m.Storage.ReadMessage(ctx, info.StorageKey, &meta); err != nil {
		m.Base.Metrics.Inc("metadata_failed", 1)
		m.Base.Fail(xerrors.FatalWrite, err.Error())
		return err
	}

	if err := m.Pool.PrepareSchema(ctx, runID); err != nil {
		m.Base.Metrics.Inc("metadata_failed", 1)
		m.Base.Fail(xerrors.FatalWrite, err.Error())
		return err
	}

	if m.Writer == nil && m.BindWriter != nil {
		w, err := m.BindWriter(ctx, runID)
		if err != nil {
			m.Base.Metrics.Inc("metadata_failed", 1)
			m.Base.Fail(xerrors.FatalWrite, err.Error())
			return err
		}
		m.Writer = w
	}

	if err := m.Writer.WriteMetadata(ctx, meta); err != nil {
		m.Base.Metrics.Inc("metadata_failed", 1)
		m.Base.Fail(xerrors.FatalWrite, err.Error())
		return err
	}

	_ = m.Topic.Ack(ctx, msg.Token)
	m.Base.Metrics.Inc("metadata_indexed", 1)

	m.Base.BeginStop()
	m.Base.Stopped()
	return nil
}

func (m *MetadataIndexer) pollWithBudget(ctx context.Context, retry time.Duration) (topic.Message, bool, error) {
	deadline := time.Now().Add(m.PollTimeout)
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		msg, err := m.Topic.Poll(ctx)
		if err == nil {
			return msg, true, nil
		}
		if !errors.Is(err, topic.ErrNoMessage) {
			return topic.Message{}, false, err
		}
		if time.Now().After(deadline) {
			return topic.Message{}, false, nil
		}
		select {
		case <-ctx.Done():
			return topic.Message{}, false, ctx.Err()
		case <-ticker.C:
		}
	}
}
