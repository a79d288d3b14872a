package batchindexer

import (
	"testing"

	"github.com/simlattice/indexer/topic"
)

func tok(id int64) topic.Token { return topic.Token{MessageID: id, ConsumerGroup: "g1"} }

func TestLedgerSingleEntryAcksWhenFullyDrained(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 5)

	acked := l.RecordFlush(5)
	if len(acked) != 1 || acked[0] != tok(1) {
		t.Fatalf("expected tok(1) acked, got %v", acked)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got len %d", l.Len())
	}
}

func TestLedgerPartialFlushDoesNotAck(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 5)

	acked := l.RecordFlush(3)
	if len(acked) != 0 {
		t.Fatalf("expected no acks yet, got %v", acked)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", l.Len())
	}

	acked = l.RecordFlush(2)
	if len(acked) != 1 || acked[0] != tok(1) {
		t.Fatalf("expected tok(1) acked after remaining credit, got %v", acked)
	}
}

func TestLedgerFlushSpanningMultipleEntries(t *testing.T) {
	// Mirrors S2: k1=100, k2=100, k3=100, then flush drains 250.
	l := NewPendingAckLedger()
	l.Push(tok(1), 100)
	l.Push(tok(2), 100)
	l.Push(tok(3), 100)

	acked := l.RecordFlush(250)
	if len(acked) != 2 {
		t.Fatalf("expected 2 batches acked, got %d (%v)", len(acked), acked)
	}
	if acked[0] != tok(1) || acked[1] != tok(2) {
		t.Fatalf("expected tok(1),tok(2) acked in order, got %v", acked)
	}
	if l.Len() != 1 {
		t.Fatalf("expected tok(3) still pending, got len %d", l.Len())
	}
}

func TestLedgerPushOnSameTokenResetsInPlace(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 10)
	l.RecordFlush(4) // leaves 6 remaining, simulating a partial attempt before failure

	l.Push(tok(1), 10) // redelivery of the same message, reprocessed from scratch
	if l.Len() != 1 {
		t.Fatalf("expected redelivery to reset in place, not duplicate, got len %d", l.Len())
	}

	acked := l.RecordFlush(10)
	if len(acked) != 1 || acked[0] != tok(1) {
		t.Fatalf("expected tok(1) acked after full reprocessing, got %v", acked)
	}
}

func TestLedgerEmptyBatchCompletesImmediately(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 0)

	if !l.Complete(tok(1)) {
		t.Fatal("expected empty-batch entry to complete immediately")
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger after Complete, got %d", l.Len())
	}
}

func TestLedgerCompleteRejectsNonHeadOrNonZero(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 3)

	if l.Complete(tok(1)) {
		t.Fatal("must not complete an entry with ticks still remaining")
	}
}

func TestLedgerSweepZeroAcksTrailingEmptyBatch(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 5)
	l.RecordFlush(5) // tok(1) settles and is removed

	l.Push(tok(2), 0) // last message of the run, an empty batch, no flush follows

	acked := l.SweepZero()
	if len(acked) != 1 || acked[0] != tok(2) {
		t.Fatalf("expected tok(2) swept, got %v", acked)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger after sweep, got %d", l.Len())
	}
}

func TestLedgerSweepZeroLeavesPartialEntryUntouched(t *testing.T) {
	l := NewPendingAckLedger()
	l.Push(tok(1), 5)
	l.RecordFlush(2) // 3 ticks remaining, still pending

	acked := l.SweepZero()
	if len(acked) != 0 {
		t.Fatalf("expected no acks, got %v", acked)
	}
	if l.Len() != 1 {
		t.Fatalf("expected tok(1) still pending, got len %d", l.Len())
	}
}
