package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/svc"
)

// fakeService is a directly-implemented Service, letting manager_test
// exercise Manager's start/stop ordering and status rollup without going
// through Build's concrete resource-binding machinery.
type fakeService struct {
	name string

	mu      sync.Mutex
	state   svc.State
	stopped chan struct{}
}

func newFakeService(name string) *fakeService {
	return &fakeService{name: name, state: svc.Stopped, stopped: make(chan struct{})}
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Run(ctx context.Context) error {
	f.mu.Lock()
	f.state = svc.Running
	f.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-f.stopped:
	}

	f.mu.Lock()
	f.state = svc.Stopped
	f.mu.Unlock()
	return nil
}

func (f *fakeService) Stop() {
	close(f.stopped)
	// Give Run's goroutine a moment to observe the close and transition;
	// tests poll Status rather than relying on this being instantaneous.
}

func (f *fakeService) Status() svc.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return svc.Status{Name: f.name, State: f.state, Healthy: f.state == svc.Running || f.state == svc.Stopped}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestManagerStartRunsEveryService(t *testing.T) {
	m := NewManager(resource.NewRegistry())
	a := newFakeService("a")
	b := newFakeService("b")
	m.AddService(a)
	m.AddService(b)

	m.Start(context.Background())
	waitFor(t, func() bool {
		sa, _ := m.GetServiceStatus("a")
		sb, _ := m.GetServiceStatus("b")
		return sa.State == svc.Running && sb.State == svc.Running
	})

	m.Stop()
	waitFor(t, func() bool { return m.PipelineStatus() == PipelineStopped })
}

func TestManagerStopOrdersInReverse(t *testing.T) {
	var mu sync.Mutex
	var stopOrder []string

	a := newFakeService("a")
	b := newFakeService("b")
	c := newFakeService("c")

	wrap := func(f *fakeService) Service { return &orderTrackingService{fakeService: f, onStop: func() {
		mu.Lock()
		stopOrder = append(stopOrder, f.name)
		mu.Unlock()
	}} }
	m2 := NewManager(resource.NewRegistry())
	m2.AddService(wrap(a))
	m2.AddService(wrap(b))
	m2.AddService(wrap(c))

	m2.Start(context.Background())
	waitFor(t, func() bool {
		sc, _ := m2.GetServiceStatus("c")
		return sc.State == svc.Running
	})
	m2.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(stopOrder) != 3 || stopOrder[0] != "c" || stopOrder[1] != "b" || stopOrder[2] != "a" {
		t.Fatalf("expected stop order [c b a], got %v", stopOrder)
	}
}

// orderTrackingService wraps a fakeService to observe Stop call order
// without changing fakeService's own Stop semantics.
type orderTrackingService struct {
	*fakeService
	onStop func()
}

func (o *orderTrackingService) Stop() {
	o.onStop()
	o.fakeService.Stop()
}

func TestPipelineStatusRollup(t *testing.T) {
	m := NewManager(resource.NewRegistry())
	if m.PipelineStatus() != PipelineEmpty {
		t.Fatalf("expected PipelineEmpty for no services, got %s", m.PipelineStatus())
	}

	a := newFakeService("a")
	b := newFakeService("b")
	m.AddService(a)
	m.AddService(b)

	m.Start(context.Background())
	waitFor(t, func() bool { return m.PipelineStatus() == PipelineRunning })

	a.mu.Lock()
	a.state = svc.Error
	a.mu.Unlock()
	if m.PipelineStatus() != PipelineError {
		t.Fatalf("expected PipelineError when one service errors, got %s", m.PipelineStatus())
	}

	a.mu.Lock()
	a.state = svc.Running
	a.mu.Unlock()
	m.Stop()
}

func TestGetServiceStatusUnknownName(t *testing.T) {
	m := NewManager(resource.NewRegistry())
	if _, ok := m.GetServiceStatus("missing"); ok {
		t.Fatal("expected ok=false for unregistered service")
	}
}
