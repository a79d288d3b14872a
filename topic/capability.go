package topic

import (
	"context"
	"time"

	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/simtypes"
)

// Usage contracts this resource supports, per spec's
// "db-env-write, topic-read with a consumer-group option" examples.
const (
	UsageWrite = "topic-write"
	UsageRead  = "topic-read"
)

// Reader is the narrow capability a consuming indexer depends on: poll and
// ack, scoped to one schema and consumer group. Indexers never see Send or
// the underlying Postgres type.
type Reader interface {
	resource.Handle
	Poll(ctx context.Context) (Message, error)
	Ack(ctx context.Context, token Token) error
}

// Writer is the narrow capability a producer depends on.
type Writer interface {
	resource.Handle
	Send(ctx context.Context, runID simtypes.RunID, payload interface{}) error
}

// reader implements Reader, pinned to one schema/consumer-group/lease at
// bind time so an indexer cannot accidentally poll a different group
// through the same handle.
type reader struct {
	topic         *Postgres
	schema        string
	consumerGroup string
	leaseTTL      time.Duration
}

func (r *reader) Poll(ctx context.Context) (Message, error) {
	return r.topic.PollWithLease(ctx, r.schema, r.consumerGroup, r.leaseTTL)
}

func (r *reader) Ack(ctx context.Context, token Token) error {
	return r.topic.Ack(ctx, token)
}

func (r *reader) Close() error { return nil }

// writer implements Writer, pinned to one schema.
type writer struct {
	topic  *Postgres
	schema string
}

func (w *writer) Send(ctx context.Context, runID simtypes.RunID, payload interface{}) error {
	return w.topic.Send(ctx, w.schema, runID, payload)
}

func (w *writer) Close() error { return nil }

// Name identifies this resource in ResourceBinding.resourceName.
func (p *Postgres) Name() string { return p.resourceName }

// Capability mints a Reader or Writer handle, per resource.Resource.
// Options recognized: "schema" (required, one of SchemaBatchInfo/
// SchemaMetadataInfo), "consumerGroup" (required for topic-read),
// "claimTimeoutMs" (optional int milliseconds, defaults to p.defaultTTL).
func (p *Postgres) Capability(ctx context.Context, usageType string, runID simtypes.RunID, opts resource.Options) (resource.Handle, error) {
	schema := opts.String("schema", "")
	if schema == "" {
		return nil, resource.ErrUnknownUsage(p.resourceName, usageType+" (missing schema option)")
	}

	switch usageType {
	case UsageWrite:
		return &writer{topic: p, schema: schema}, nil
	case UsageRead:
		group := opts.String("consumerGroup", "")
		if group == "" {
			return nil, resource.ErrUnknownUsage(p.resourceName, usageType+" (missing consumerGroup option)")
		}
		ttl := p.defaultTTL
		if ms := opts.Int("claimTimeoutMs", 0); ms > 0 {
			ttl = time.Duration(ms) * time.Millisecond
		}
		return &reader{topic: p, schema: schema, consumerGroup: group, leaseTTL: ttl}, nil
	default:
		return nil, resource.ErrUnknownUsage(p.resourceName, usageType)
	}
}
