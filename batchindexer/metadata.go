package batchindexer

import (
	"context"
	"time"

	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/xerrors"
)

// MetadataReader is the narrow read capability the Metadata component polls
// — simdb.Reader satisfies this without batchindexer importing simdb
// directly.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, runID simtypes.RunID) (simtypes.SimulationMetadata, error)
}

// MetadataConfig holds the poll parameters named in spec §6.
type MetadataConfig struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
}

// Metadata is the optional component that blocks engine startup until a
// run's metadata row exists, per spec's "poll the metadata database until
// the run's metadata row exists, load it, and make it available to
// flushTicks. Timeout → fatal."
type Metadata struct {
	reader MetadataReader
	cfg    MetadataConfig
	now    func() time.Time
}

// NewMetadata builds a Metadata component over reader using cfg.
func NewMetadata(reader MetadataReader, cfg MetadataConfig) *Metadata {
	return &Metadata{reader: reader, cfg: cfg, now: time.Now}
}

// Await polls reader.ReadMetadata(runID) every cfg.PollInterval until it
// succeeds or cfg.MaxDuration elapses, in which case it returns an
// xerrors.MetadataTimeout error.
func (m *Metadata) Await(ctx context.Context, runID simtypes.RunID) (simtypes.SimulationMetadata, error) {
	deadline := m.now().Add(m.cfg.MaxDuration)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		meta, err := m.reader.ReadMetadata(ctx, runID)
		if err == nil {
			return meta, nil
		}

		if m.now().After(deadline) {
			return simtypes.SimulationMetadata{}, xerrors.New(xerrors.MetadataTimeout, "metadata did not appear before metadataMaxPollDurationMs elapsed")
		}

		select {
		case <-ctx.Done():
			return simtypes.SimulationMetadata{}, xerrors.Wrap(xerrors.MetadataTimeout, "metadata wait cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}
