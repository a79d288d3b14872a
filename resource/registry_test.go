package resource

import (
	"context"
	"testing"

	"github.com/simlattice/indexer/simtypes"
)

type fakeHandle struct {
	usageType string
	runID     simtypes.RunID
	closed    bool
}

func (h *fakeHandle) Close() error { h.closed = true; return nil }

type fakeResource struct {
	name     string
	usages   map[string]bool
	minted   []*fakeHandle
	closeErr error
	closed   bool
}

func newFakeResource(name string, usages ...string) *fakeResource {
	m := make(map[string]bool, len(usages))
	for _, u := range usages {
		m[u] = true
	}
	return &fakeResource{name: name, usages: m}
}

func (f *fakeResource) Name() string { return f.name }

func (f *fakeResource) Capability(ctx context.Context, usageType string, runID simtypes.RunID, opts Options) (Handle, error) {
	if !f.usages[usageType] {
		return nil, ErrUnknownUsage(f.name, usageType)
	}
	h := &fakeHandle{usageType: usageType, runID: runID}
	f.minted = append(f.minted, h)
	return h, nil
}

func (f *fakeResource) Close() error { f.closed = true; return f.closeErr }

func TestBindResolvesRegisteredUsage(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newFakeResource("sim-db", "db-env-write", "db-organism-write"))

	b, err := reg.Bind(context.Background(), "env-writer", "sim-db", "db-env-write", simtypes.RunID("run1"), nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	h := b.Handle.(*fakeHandle)
	if h.usageType != "db-env-write" || h.runID != "run1" {
		t.Fatalf("unexpected handle %+v", h)
	}
}

func TestBindFailsForUnregisteredResource(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Bind(context.Background(), "p", "missing", "db-env-write", "", nil); err == nil {
		t.Fatal("expected error for unregistered resource")
	}
}

func TestBindFailsForUnsupportedUsage(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newFakeResource("sim-db", "db-env-write"))

	if _, err := reg.Bind(context.Background(), "p", "sim-db", "topic-read", "", nil); err == nil {
		t.Fatal("expected error for unsupported usage type")
	}
}

func TestBindManyRollsBackOnPartialFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newFakeResource("sim-db", "db-env-write"))
	reg.Add(newFakeResource("topic", "topic-read"))

	_, err := reg.BindMany(context.Background(), []BindRequest{
		{PortName: "db", ResourceName: "sim-db", UsageType: "db-env-write", RunID: "r1"},
		{PortName: "topic", ResourceName: "topic", UsageType: "topic-write", RunID: "r1"},
	})
	if err == nil {
		t.Fatal("expected second binding to fail")
	}

	dbRes, _ := reg.Get("sim-db")
	minted := dbRes.(*fakeResource).minted
	if len(minted) != 1 || !minted[0].closed {
		t.Fatalf("expected the first successful binding to be closed on rollback, got %+v", minted)
	}
}

func TestCloseAllClosesEveryResource(t *testing.T) {
	reg := NewRegistry()
	a := newFakeResource("a")
	b := newFakeResource("b")
	reg.Add(a)
	reg.Add(b)

	if err := reg.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("expected every resource closed, got a=%v b=%v", a.closed, b.closed)
	}
}
