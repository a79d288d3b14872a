package svc

import (
	"testing"

	"github.com/simlattice/indexer/xerrors"
)

func TestLifecycleHappyPath(t *testing.T) {
	b := NewBase("env-indexer")

	if b.State() != Stopped {
		t.Fatalf("expected initial state STOPPED, got %s", b.State())
	}
	if !b.BeginStart() {
		t.Fatal("expected BeginStart to succeed from STOPPED")
	}
	if b.State() != Starting {
		t.Fatalf("expected STARTING, got %s", b.State())
	}
	if !b.MarkRunning() {
		t.Fatal("expected MarkRunning to succeed from STARTING")
	}
	if !b.Healthy() {
		t.Fatal("expected healthy while RUNNING with no fatal error")
	}
	if !b.BeginStop() {
		t.Fatal("expected BeginStop to succeed from RUNNING")
	}
	if !b.Stopped() {
		t.Fatal("expected Stopped to succeed from STOPPING")
	}
	if b.State() != Stopped {
		t.Fatalf("expected STOPPED, got %s", b.State())
	}
	if !b.Healthy() {
		t.Fatal("expected healthy while STOPPED with no fatal error")
	}
}

func TestStartIsNoOpUnlessStopped(t *testing.T) {
	b := NewBase("svc")
	b.BeginStart()
	b.MarkRunning()

	if b.BeginStart() {
		t.Fatal("expected BeginStart to be a no-op from RUNNING")
	}
	if b.State() != Running {
		t.Fatalf("state must be unchanged, got %s", b.State())
	}
}

func TestStopIsNoOpWhenAlreadyStoppedOrError(t *testing.T) {
	b := NewBase("svc")
	if b.BeginStop() {
		t.Fatal("expected BeginStop to be a no-op from STOPPED")
	}

	b.BeginStart()
	b.Fail(xerrors.RunNotFound, "no run appeared")
	if b.BeginStop() {
		t.Fatal("expected BeginStop to be a no-op from ERROR")
	}
}

func TestFatalErrorMarksUnhealthyAndTerminal(t *testing.T) {
	b := NewBase("svc")
	b.BeginStart()
	b.MarkRunning()

	b.Fail(xerrors.BatchProcessingFailed, "boom")

	if b.State() != Error {
		t.Fatalf("expected ERROR, got %s", b.State())
	}
	if b.Healthy() {
		t.Fatal("expected unhealthy after fatal error")
	}
	if len(b.Errors.Snapshot()) != 0 {
		t.Fatal("fatal errors must not be added to the recent-error ring")
	}
}

func TestRecordErrorDoesNotChangeState(t *testing.T) {
	b := NewBase("svc")
	b.BeginStart()
	b.MarkRunning()

	b.RecordError(xerrors.InvalidBatch, "bad batch")
	b.RecordError(xerrors.BatchProcessingFailed, "read failed")

	if b.State() != Running {
		t.Fatalf("expected to remain RUNNING, got %s", b.State())
	}
	errs := b.Errors.Snapshot()
	if len(errs) != 2 {
		t.Fatalf("expected 2 ring entries, got %d", len(errs))
	}
	if errs[0].ErrorType != string(xerrors.InvalidBatch) {
		t.Fatalf("expected oldest-first order, got %+v", errs)
	}
}

func TestStatusReportsSnapshot(t *testing.T) {
	b := NewBase("organism-indexer")
	b.SetBindings([]BindingInfo{{PortName: "db", ResourceName: "sim-db", UsageType: "db-organism-write"}})
	b.Metrics.Inc("ticks_processed", 3)

	st := b.Status()
	if st.Name != "organism-indexer" {
		t.Fatalf("unexpected name %q", st.Name)
	}
	if st.Metrics["ticks_processed"] != 3 {
		t.Fatalf("expected metric to be reflected in status, got %v", st.Metrics)
	}
	if len(st.Bindings) != 1 || st.Bindings[0].UsageType != "db-organism-write" {
		t.Fatalf("expected binding to be reflected in status, got %+v", st.Bindings)
	}
}
