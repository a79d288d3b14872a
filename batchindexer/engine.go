// Package batchindexer implements the batch-indexer engine: the topic-poll
// / storage-read / tick-wise-flush / cross-batch-ACK / retry-DLQ loop every
// indexer specialization shares, per spec §4.3. Component composition
// (Metadata, Buffer, DLQ are optional collaborators set on Engine, not base
// classes to subclass) lets EnvironmentIndexer, OrganismIndexer and
// DummyIndexer reuse one loop implementation while varying only the Flusher
// and which optional components they wire in. MetadataIndexer (package
// indexers) is not a Flusher and runs its own single-message loop instead.
package batchindexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/simlattice/indexer/blobstore"
	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/topic"
	"github.com/simlattice/indexer/xerrors"
)

// Flusher is the specialization hook: persist a batch of ticks atomically,
// or fail leaving the database exactly as it was before the call. Must be
// idempotent under repeated flushes of the same (runId, tickNumber) key.
// Empty input is a no-op.
type Flusher interface {
	FlushTicks(ctx context.Context, ticks []simtypes.TickRecord) error
}

// Preparer is implemented by specializations needing idempotent
// schema/table creation before the main loop starts (EnvironmentIndexer,
// OrganismIndexer). Optional — a Flusher that doesn't need a schema simply
// doesn't implement it.
type Preparer interface {
	PrepareSchema(ctx context.Context, runID simtypes.RunID) error
}

// MetadataAware is implemented by specializations whose flush logic needs
// the run's SimulationMetadata (EnvironmentIndexer needs environment.shape
// to translate flat indices). Optional.
type MetadataAware interface {
	SetMetadata(meta simtypes.SimulationMetadata)
}

// Config holds the batch-indexer tunables named in spec §6.
type Config struct {
	TopicPollTimeout time.Duration
	InsertBatchSize  int // 0 means tick-by-tick flush regardless of Buffer
	FlushTimeout     time.Duration
	PollRetryInterval time.Duration // internal retry cadence within one TopicPollTimeout budget
}

// Engine runs the main loop of spec §4.3 over a Flusher specialization. The
// three named components (Metadata, Buffer, DLQ) are all optional; a nil
// Buffer forces tick-by-tick flush, a nil Metadata skips the prerequisite
// poll, a nil DLQ means failed messages are simply left un-acked for
// topic-lease redelivery forever.
type Engine struct {
	Base     *indexer.Base
	Flusher  Flusher
	Topic    topic.Reader
	Storage  blobstore.Reader
	Metadata *Metadata
	Buffer   *Buffer
	DLQ      *DLQ
	Config   Config

	ledger *PendingAckLedger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEngine builds an Engine ready to run as an indexer.Worker.
func NewEngine(base *indexer.Base, flusher Flusher, topicReader topic.Reader, storage blobstore.Reader, cfg Config) *Engine {
	if cfg.PollRetryInterval <= 0 {
		cfg.PollRetryInterval = 50 * time.Millisecond
	}
	return &Engine{
		Base:    base,
		Flusher: flusher,
		Topic:   topicReader,
		Storage: storage,
		Config:  cfg,
		ledger:  NewPendingAckLedger(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Stop requests the main loop perform its final drain and transition to
// STOPPED, then blocks until it has done so.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	<-e.doneCh
}

// IndexRun implements indexer.Worker. The caller (indexer.Base.Start) has
// already resolved runID and transitioned the service to RUNNING before
// invoking this — the metadata wait below can still move the service to
// ERROR per spec's "service transitions STARTING -> RUNNING -> ERROR with
// METADATA_TIMEOUT" (S5).
func (e *Engine) IndexRun(ctx context.Context, runID simtypes.RunID) error {
	defer close(e.doneCh)

	if e.Metadata != nil {
		meta, err := e.Metadata.Await(ctx, runID)
		if err != nil {
			e.Base.Metrics.Inc("metadata_failed", 1)
			e.Base.Fail(xerrors.MetadataTimeout, err.Error())
			return err
		}
		if aware, ok := e.Flusher.(MetadataAware); ok {
			aware.SetMetadata(meta)
		}
	}

	if preparer, ok := e.Flusher.(Preparer); ok {
		if err := preparer.PrepareSchema(ctx, runID); err != nil {
			e.Base.Fail(xerrors.FatalWrite, err.Error())
			return err
		}
	}

	e.run(ctx)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drainAndStop(context.Background())
			return
		case <-e.stopCh:
			e.drainAndStop(context.Background())
			return
		default:
		}

		msg, ok, err := e.pollWithBudget(ctx)
		if err != nil {
			// ctx cancelled mid-poll: loop back to the select above, which
			// will take the ctx.Done() branch.
			continue
		}
		if !ok {
			e.checkBufferAge(ctx)
			continue
		}

		e.processMessage(ctx, msg)
	}
}

// pollWithBudget polls the topic repeatedly at PollRetryInterval until a
// message arrives or TopicPollTimeout elapses, translating the substrate's
// immediate ErrNoMessage into the blocking-poll-with-timeout semantics
// spec §4.3 describes ("msg := topic.poll(topicPollTimeoutMs); on nil
// (timeout)...").
func (e *Engine) pollWithBudget(ctx context.Context) (topic.Message, bool, error) {
	deadline := time.Now().Add(e.Config.TopicPollTimeout)
	ticker := time.NewTicker(e.Config.PollRetryInterval)
	defer ticker.Stop()

	for {
		msg, err := e.Topic.Poll(ctx)
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
		case <-e.stopCh:
			return topic.Message{}, false, nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) checkBufferAge(ctx context.Context) {
	if e.Buffer == nil || e.Buffer.Size() == 0 {
		return
	}
	if e.Buffer.OldestAge(time.Now()) < e.Config.FlushTimeout {
		return
	}
	drained := e.Buffer.DrainAll()
	if err := e.flushAndSettle(ctx, drained); err != nil {
		e.Base.Metrics.Inc("batches_failed", 1)
		e.Base.RecordError(xerrors.BatchProcessingFailed, err.Error())
	}
}

func (e *Engine) processMessage(ctx context.Context, msg topic.Message) {
	batch, err := msg.DecodeBatchInfo()
	if err != nil {
		e.Base.Metrics.Inc("batches_failed", 1)
		e.Base.RecordError(xerrors.InvalidBatch, err.Error())
		e.handleFailure(ctx, msg, "", err.Error())
		return
	}

	ticks, err := e.Storage.ReadBatch(ctx, batch.StoragePath)
	if err != nil {
		e.Base.Metrics.Inc("batches_failed", 1)
		e.Base.RecordError(xerrors.BatchProcessingFailed, err.Error())
		e.handleFailure(ctx, msg, batch.StoragePath, err.Error())
		return
	}

	e.ledger.Push(msg.Token, len(ticks))

	if len(ticks) == 0 {
		if e.ledger.Complete(msg.Token) {
			e.ack(ctx, msg.Token)
		}
		return
	}

	for _, tick := range ticks {
		if e.Buffer == nil || e.Config.InsertBatchSize <= 0 {
			if err := e.Flusher.FlushTicks(ctx, []simtypes.TickRecord{tick}); err != nil {
				e.Base.Metrics.Inc("batches_failed", 1)
				e.Base.RecordError(xerrors.BatchProcessingFailed, err.Error())
				e.handleFailure(ctx, msg, batch.StoragePath, err.Error())
				return
			}
			e.Base.Metrics.Inc("ticks_processed", 1)
			e.Base.Metrics.Inc("flush_count", 1)
			e.Base.Metrics.Set("last_flush_age_ms", 0)
			e.settle(ctx, e.ledger.RecordFlush(1))
			continue
		}

		e.Buffer.Append(tick)
		if e.Buffer.Size() < e.Config.InsertBatchSize {
			continue
		}
		drained := e.Buffer.Drain(e.Config.InsertBatchSize)
		if err := e.flushAndSettle(ctx, drained); err != nil {
			e.Base.Metrics.Inc("batches_failed", 1)
			e.Base.RecordError(xerrors.BatchProcessingFailed, err.Error())
			e.handleFailure(ctx, msg, batch.StoragePath, err.Error())
			return
		}
	}
}

// flushAndSettle flushes ticks, and on success credits the ledger and acks
// every batch the flush completed.
func (e *Engine) flushAndSettle(ctx context.Context, ticks []simtypes.TickRecord) error {
	if len(ticks) == 0 {
		return nil
	}
	age := ticks[0].Age(time.Now())
	if err := e.Flusher.FlushTicks(ctx, ticks); err != nil {
		return err
	}
	e.Base.Metrics.Inc("ticks_processed", float64(len(ticks)))
	e.Base.Metrics.Inc("flush_count", 1)
	e.Base.Metrics.Set("last_flush_age_ms", float64(age.Milliseconds()))
	e.settle(ctx, e.ledger.RecordFlush(len(ticks)))
	return nil
}

func (e *Engine) settle(ctx context.Context, acked []topic.Token) {
	for _, token := range acked {
		e.ack(ctx, token)
	}
}

func (e *Engine) ack(ctx context.Context, token topic.Token) {
	if err := e.Topic.Ack(ctx, token); err != nil {
		// Ack is a transport call against the same at-least-once substrate;
		// leaving it un-acked here just means the lease expires and the
		// message (already durably flushed, so idempotent to reprocess)
		// is redelivered and re-settled on the next attempt.
		return
	}
	e.Base.Metrics.Inc("batches_processed", 1)
}

func (e *Engine) handleFailure(ctx context.Context, msg topic.Message, path simtypes.StoragePath, reason string) {
	e.Base.Metrics.Inc("retry_count", 1)
	if e.DLQ == nil {
		return
	}
	if e.DLQ.RecordFailure(path, reason) {
		e.Base.Metrics.Inc("dlq_moved", 1)
		e.ack(ctx, msg.Token)
	}
}

func (e *Engine) drainAndStop(ctx context.Context) {
	e.Base.BeginStop()
	if e.Buffer != nil && e.Buffer.Size() > 0 {
		drained := e.Buffer.DrainAll()
		if err := e.flushAndSettle(ctx, drained); err != nil {
			e.Base.RecordError(xerrors.BatchProcessingFailed, err.Error())
		}
	}
	e.settle(ctx, e.ledger.SweepZero())
	e.Base.Stopped()
}
