package batchindexer

import "github.com/simlattice/indexer/simtypes"

// DLQSink receives a message moved to the dead-letter queue after exhausting
// retries. A nil sink means "drop and ack without recording" — acceptable
// for specializations (like DummyIndexer) that don't care where failed
// batches end up.
type DLQSink interface {
	Send(path simtypes.StoragePath, reason string) error
}

// DLQ tracks per-storagePath retry counts and decides when a message should
// be moved to the dead-letter queue (and the original acked) instead of
// redelivered again: maxRetries counts retries after the first attempt, so
// a message is moved on its (maxRetries+1)-th failed attempt.
type DLQ struct {
	maxRetries int
	sink       DLQSink
	retries    map[simtypes.StoragePath]int
}

// NewDLQ builds a DLQ with the given retry ceiling and an optional sink
// (nil is valid: failures still count toward maxRetries, the message is
// simply dropped instead of archived).
func NewDLQ(maxRetries int, sink DLQSink) *DLQ {
	return &DLQ{maxRetries: maxRetries, sink: sink, retries: make(map[simtypes.StoragePath]int)}
}

// RecordFailure counts one failed processing attempt for path. It returns
// true once the retry count exceeds maxRetries, meaning the caller should
// move the message to the DLQ and ack it rather than let it be redelivered
// again.
func (d *DLQ) RecordFailure(path simtypes.StoragePath, reason string) (movedToDLQ bool) {
	d.retries[path]++
	if d.retries[path] <= d.maxRetries {
		return false
	}
	if d.sink != nil {
		d.sink.Send(path, reason)
	}
	delete(d.retries, path)
	return true
}
