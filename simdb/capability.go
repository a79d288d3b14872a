package simdb

import (
	"context"

	"github.com/simlattice/indexer/organism"
	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/simtypes"
)

// Usage contracts this resource supports, per spec's capability-typed
// writer examples (metadata, environment cells, organism rows).
const (
	UsageMetadataWrite    = "db-metadata-write"
	UsageEnvironmentWrite = "db-environment-write"
	UsageOrganismWrite    = "db-organism-write"
	UsageRead             = "db-read"
)

// Name identifies this resource in ResourceBinding.resourceName.
func (p *Pool) Name() string { return p.resourceName }

// Capability mints a run-scoped writer or reader handle, per
// resource.Resource. Every writer is pinned to runID at bind time, so a
// specialization's flushTicks can never accidentally write into another
// run's schema through the same handle. UsageOrganismWrite accepts an
// optional "codec" option ("raw" or "lz4", defaulting to "lz4").
func (p *Pool) Capability(ctx context.Context, usageType string, runID simtypes.RunID, opts resource.Options) (resource.Handle, error) {
	switch usageType {
	case UsageMetadataWrite:
		return &MetadataWriter{pool: p, runID: runID}, nil
	case UsageEnvironmentWrite:
		return &EnvironmentWriter{pool: p, runID: runID}, nil
	case UsageOrganismWrite:
		codec := organismCodec(opts.String("codec", "lz4"))
		return &OrganismWriter{pool: p, runID: runID, codec: codec}, nil
	case UsageRead:
		return &pgReader{pool: p, runID: runID}, nil
	default:
		return nil, resource.ErrUnknownUsage(p.resourceName, usageType)
	}
}

func organismCodec(name string) organism.Codec {
	if name == "raw" {
		return organism.RawCodec{}
	}
	return organism.LZ4Codec{}
}

func (w *MetadataWriter) Close() error    { return nil }
func (w *EnvironmentWriter) Close() error { return nil }
func (w *OrganismWriter) Close() error    { return nil }
