package batchindexer

import "github.com/simlattice/indexer/topic"

// ledgerEntry tracks one in-flight message: the token needed to ack it, and
// how many of its contributed ticks are still unflushed.
type ledgerEntry struct {
	token          topic.Token
	ticksRemaining int
}

// PendingAckLedger is the ordered queue of (messageToken, ticksRemaining)
// entries that makes cross-batch ACK correct: a flush drains ticks in the
// same FIFO order they were appended to the buffer, so crediting a flush of
// n ticks against the ledger head (in order) always attributes ticks to the
// batch that actually contributed them, even when one flush spans the tail
// of one BatchInfo and the head of the next.
//
// Entries at the head with ticksRemaining == 0 are fully flushed, ACKed,
// and removed — O(1) amortized per tick via a slice used as a ring-less
// FIFO (append at tail, slice off the front).
type PendingAckLedger struct {
	entries []ledgerEntry
}

// NewPendingAckLedger returns an empty ledger.
func NewPendingAckLedger() *PendingAckLedger {
	return &PendingAckLedger{}
}

// Push records that token contributed ticks ticks to the buffer. A zero-tick
// push (empty batch) is recorded and is released by Complete while it is the
// head entry, by a later RecordFlush(n > 0) that reaches it, or by SweepZero;
// RecordFlush(0) credits nothing and releases nothing.
//
// If token already has a pending entry — a prior attempt at the same
// message failed partway and left it in the ledger, and redelivery (which
// reuses the same message id, hence the same Token) is now reprocessing it
// from scratch — the existing entry is reset in place rather than appended
// a second time. A duplicate entry would double-count: the reprocessed
// batch only ever flushes `ticks` ticks total, never enough to satisfy two
// separate ticksRemaining counters for the same delivery.
func (l *PendingAckLedger) Push(token topic.Token, ticks int) {
	for i := range l.entries {
		if l.entries[i].token == token {
			l.entries[i].ticksRemaining = ticks
			return
		}
	}
	l.entries = append(l.entries, ledgerEntry{token: token, ticksRemaining: ticks})
}

// RecordFlush credits n freshly-flushed ticks against the ledger head, in
// FIFO order, and returns the tokens of every entry that reached zero
// remaining ticks as a result — the batches now ACKable. Those entries are
// removed from the ledger.
func (l *PendingAckLedger) RecordFlush(n int) []topic.Token {
	var acked []topic.Token

	i := 0
	for n > 0 && i < len(l.entries) {
		e := &l.entries[i]
		if e.ticksRemaining == 0 {
			acked = append(acked, e.token)
			i++
			continue
		}
		credit := n
		if credit > e.ticksRemaining {
			credit = e.ticksRemaining
		}
		e.ticksRemaining -= credit
		n -= credit
		if e.ticksRemaining == 0 {
			acked = append(acked, e.token)
			i++
		}
	}

	l.entries = l.entries[i:]
	return acked
}

// Complete immediately acks a zero-tick entry (an empty batch) without
// waiting for a flush to credit it. Returns true if token was the head entry
// and had zero ticks remaining.
func (l *PendingAckLedger) Complete(token topic.Token) bool {
	if len(l.entries) == 0 {
		return false
	}
	head := l.entries[0]
	if head.token != token || head.ticksRemaining != 0 {
		return false
	}
	l.entries = l.entries[1:]
	return true
}

// SweepZero removes and returns every already-flushed (ticksRemaining == 0)
// entry at the head of the ledger. A zero-tick batch (Push with ticks == 0)
// pushed behind a still-pending entry only gets credited when a later
// RecordFlush reaches it as head; if it is the last message of the run and
// no further flush ever happens, it would otherwise sit un-acked until
// lease redelivery. Called at final drain so trailing empty batches still
// get acked.
func (l *PendingAckLedger) SweepZero() []topic.Token {
	var acked []topic.Token
	i := 0
	for i < len(l.entries) && l.entries[i].ticksRemaining == 0 {
		acked = append(acked, l.entries[i].token)
		i++
	}
	l.entries = l.entries[i:]
	return acked
}

// Len reports how many messages are still pending (partially or fully
// unflushed).
func (l *PendingAckLedger) Len() int { return len(l.entries) }
