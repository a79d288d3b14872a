package batchindexer

import (
	"time"

	"github.com/simlattice/indexer/simtypes"
)

// Buffer accumulates ticks across batches for size/time-bounded flushing.
// Its absence (a nil *Buffer on Engine) forces tick-by-tick flush, per
// spec's "Buffering" component being optional.
type Buffer struct {
	ticks []simtypes.TickRecord
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Append adds one tick to the tail.
func (b *Buffer) Append(t simtypes.TickRecord) {
	b.ticks = append(b.ticks, t)
}

// Size reports how many ticks are currently buffered.
func (b *Buffer) Size() int { return len(b.ticks) }

// OldestAge reports how long the oldest buffered tick has been waiting,
// relative to now. Zero if the buffer is empty.
func (b *Buffer) OldestAge(now time.Time) time.Duration {
	if len(b.ticks) == 0 {
		return 0
	}
	return b.ticks[0].Age(now)
}

// Drain removes and returns the oldest min(n, Size()) ticks, in order.
func (b *Buffer) Drain(n int) []simtypes.TickRecord {
	if n > len(b.ticks) {
		n = len(b.ticks)
	}
	drained := make([]simtypes.TickRecord, n)
	copy(drained, b.ticks[:n])
	b.ticks = b.ticks[n:]
	return drained
}

// DrainAll removes and returns every buffered tick.
func (b *Buffer) DrainAll() []simtypes.TickRecord {
	return b.Drain(len(b.ticks))
}
