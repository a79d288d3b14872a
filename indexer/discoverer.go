// Package indexer is the indexer base: run-id discovery on top of the
// service base (svc.Base), shared by every specialization in the
// indexers package (the batch specializations reach it through
// batchindexer.Engine; MetadataIndexer uses it directly).
package indexer

import (
	"context"
	"time"

	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/xerrors"
)

// RunLister is the narrow capability RunDiscoverer depends on —
// blobstore.Reader satisfies it without indexer importing blobstore
// directly, keeping the dependency direction leaf-ward.
type RunLister interface {
	ListRunIds(ctx context.Context, since time.Time) ([]simtypes.RunID, error)
}

// DiscoveryConfig holds the poll parameters named in spec §6's
// configuration-keys table.
type DiscoveryConfig struct {
	RunID             simtypes.RunID // post-mortem mode when non-empty
	PollInterval      time.Duration
	MaxPollDuration   time.Duration
}

// RunDiscoverer resolves the run id an indexer should process: directly, in
// post-mortem mode, or by polling storage for a newly appeared run in
// parallel/tail mode, per spec §4.2.
type RunDiscoverer struct {
	lister RunLister
	cfg    DiscoveryConfig
	now    func() time.Time
}

// NewRunDiscoverer builds a RunDiscoverer over lister using cfg.
func NewRunDiscoverer(lister RunLister, cfg DiscoveryConfig) *RunDiscoverer {
	return &RunDiscoverer{lister: lister, cfg: cfg, now: time.Now}
}

// Discover returns the run id to process. In post-mortem mode it returns
// cfg.RunID immediately. In parallel/tail mode it polls ListRunIds(since)
// every PollInterval until a run appears or MaxPollDuration elapses, in
// which case it returns an xerrors.RunNotFound error.
func (d *RunDiscoverer) Discover(ctx context.Context) (simtypes.RunID, error) {
	if d.cfg.RunID != "" {
		return d.cfg.RunID, nil
	}

	since := d.now()
	deadline := since.Add(d.cfg.MaxPollDuration)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		runIDs, err := d.lister.ListRunIds(ctx, since)
		if err != nil {
			return "", xerrors.Wrap(xerrors.RunNotFound, "list run ids", err)
		}
		if len(runIDs) > 0 {
			return runIDs[0], nil
		}

		if d.now().After(deadline) {
			return "", xerrors.New(xerrors.RunNotFound, "no run appeared before maxPollDurationMs elapsed")
		}

		select {
		case <-ctx.Done():
			return "", xerrors.Wrap(xerrors.RunNotFound, "discovery cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}
