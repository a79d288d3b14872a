package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/xerrors"
)

type fakeWorker struct {
	calledWith simtypes.RunID
	err        error
}

func (w *fakeWorker) IndexRun(ctx context.Context, runID simtypes.RunID) error {
	w.calledWith = runID
	return w.err
}

func TestStartResolvesRunAndInvokesWorker(t *testing.T) {
	lister := &fakeLister{runID: "r1"}
	b := NewBase("env-indexer", NewRunDiscoverer(lister, DiscoveryConfig{RunID: "r1"}))
	w := &fakeWorker{}

	if err := b.Start(context.Background(), w); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.calledWith != "r1" {
		t.Fatalf("expected worker invoked with r1, got %s", w.calledWith)
	}
}

func TestStartFailsWithRunNotFoundOnDiscoveryTimeout(t *testing.T) {
	lister := &fakeLister{callsBeforeHit: 1 << 20}
	b := NewBase("env-indexer", NewRunDiscoverer(lister, DiscoveryConfig{
		PollInterval:    time.Millisecond,
		MaxPollDuration: 10 * time.Millisecond,
	}))
	w := &fakeWorker{}

	err := b.Start(context.Background(), w)
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.KindOf(err) != xerrors.RunNotFound {
		t.Fatalf("expected RunNotFound, got %v", xerrors.KindOf(err))
	}
	if w.calledWith != "" {
		t.Fatal("worker must not be invoked on discovery failure")
	}
	if b.Metrics.Get("runs_failed") != 1 {
		t.Fatalf("expected runs_failed=1, got %v", b.Metrics.Get("runs_failed"))
	}
	if b.State() != "ERROR" {
		t.Fatalf("expected ERROR state, got %s", b.State())
	}
}

func TestStartIsNoOpUnlessStopped(t *testing.T) {
	lister := &fakeLister{runID: "r1"}
	b := NewBase("env-indexer", NewRunDiscoverer(lister, DiscoveryConfig{RunID: "r1"}))
	w := &fakeWorker{err: errors.New("worker failed")}
	_ = b.Start(context.Background(), w)

	calls := lister.calls
	if err := b.Start(context.Background(), w); err != nil {
		t.Fatalf("second Start must be a no-op, not an error: %v", err)
	}
	if lister.calls != calls {
		t.Fatalf("second Start must not re-run discovery, calls went from %d to %d", calls, lister.calls)
	}
}
