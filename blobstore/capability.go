package blobstore

import (
	"context"
	"time"

	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/simtypes"
)

// Usage contracts this resource supports, per spec's "blob-write,
// blob-read" resource binding examples.
const (
	UsageWrite = "blob-write"
	UsageRead  = "blob-read"
)

// Writer is the narrow capability a producer or batch indexer depends on:
// writing immutable batch/message blobs. Consumers never see ListRunIds or
// the underlying S3Client.
type Writer interface {
	resource.Handle
	WriteBatch(ctx context.Context, runID simtypes.RunID, firstTick, lastTick int64, records []simtypes.TickRecord) (simtypes.StoragePath, error)
	WriteMessage(ctx context.Context, runID simtypes.RunID, name string, payload interface{}) (simtypes.StoragePath, error)
}

// Reader is the narrow capability an indexer depends on: reading blobs the
// topic told it about, plus discovering run ids for the base indexer's
// polling loop.
type Reader interface {
	resource.Handle
	ReadBatch(ctx context.Context, path simtypes.StoragePath) ([]simtypes.TickRecord, error)
	ReadMessage(ctx context.Context, path simtypes.StoragePath, out interface{}) error
	ListRunIds(ctx context.Context, since time.Time) ([]simtypes.RunID, error)
}

// writer implements Writer.
type writer struct{ store *Store }

func (w *writer) WriteBatch(ctx context.Context, runID simtypes.RunID, firstTick, lastTick int64, records []simtypes.TickRecord) (simtypes.StoragePath, error) {
	return w.store.WriteBatch(ctx, runID, firstTick, lastTick, records)
}

func (w *writer) WriteMessage(ctx context.Context, runID simtypes.RunID, name string, payload interface{}) (simtypes.StoragePath, error) {
	return w.store.WriteMessage(ctx, runID, name, payload)
}

func (w *writer) Close() error { return nil }

// reader implements Reader.
type reader struct{ store *Store }

func (r *reader) ReadBatch(ctx context.Context, path simtypes.StoragePath) ([]simtypes.TickRecord, error) {
	return r.store.ReadBatch(ctx, path)
}

func (r *reader) ReadMessage(ctx context.Context, path simtypes.StoragePath, out interface{}) error {
	return r.store.ReadMessage(ctx, path, out)
}

func (r *reader) ListRunIds(ctx context.Context, since time.Time) ([]simtypes.RunID, error) {
	return r.store.ListRunIds(ctx, since)
}

func (r *reader) Close() error { return nil }

// Name identifies this resource in ResourceBinding.resourceName.
func (s *Store) Name() string { return s.resourceName }

// Capability mints a Reader or Writer handle, per resource.Resource. The
// blob store is not run-scoped the way a topic consumer group is — every
// handle can address any run id — so runID is accepted but unused beyond
// satisfying the interface.
func (s *Store) Capability(_ context.Context, usageType string, _ simtypes.RunID, _ resource.Options) (resource.Handle, error) {
	switch usageType {
	case UsageWrite:
		return &writer{store: s}, nil
	case UsageRead:
		return &reader{store: s}, nil
	default:
		return nil, resource.ErrUnknownUsage(s.resourceName, usageType)
	}
}

// Close releases the underlying store. The AWS SDK client holds no
// long-lived connection to close, so this is a no-op kept for symmetry
// with resource.Resource and future client implementations that do.
func (s *Store) Close() error { return nil }
