package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/svc"
)

// PipelineState rolls up every service's lifecycle state into one verdict
// for the whole manifest, worst-state-wins.
type PipelineState string

const (
	PipelineRunning PipelineState = "RUNNING"
	PipelineStarting PipelineState = "STARTING"
	PipelineStopping PipelineState = "STOPPING"
	PipelineStopped  PipelineState = "STOPPED"
	PipelineError    PipelineState = "ERROR"
	PipelineEmpty    PipelineState = "EMPTY"
)

// Manager owns a resource.Registry and every Service built against it,
// starting them in declared order and stopping them in reverse, per spec
// §4.7. One Manager corresponds to one manifest document.
type Manager struct {
	registry *resource.Registry
	services []Service

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runErrs map[string]error
}

// NewManager builds an empty Manager over registry. Services are added via
// Build or AddService before Start is called.
func NewManager(registry *resource.Registry) *Manager {
	return &Manager{registry: registry, runErrs: make(map[string]error)}
}

// AddService registers svc to be started in the order added and stopped in
// the reverse order.
func (m *Manager) AddService(s Service) {
	m.services = append(m.services, s)
}

// Registry returns the resource.Registry backing every bound service, so
// callers can register resources before calling Build.
func (m *Manager) Registry() *resource.Registry { return m.registry }

// Start launches every registered service's Run in its own goroutine,
// derived from ctx, in declared order. Start returns immediately; use
// GetServiceStatus/GetAllServiceStatus to observe progress and Stop to wind
// down.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	for _, s := range m.services {
		s := s
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			err := s.Run(runCtx)
			if err != nil {
				m.mu.Lock()
				m.runErrs[s.Name()] = err
				m.mu.Unlock()
			}
		}()
	}
}

// Stop requests every service wind down, in reverse declared order, waiting
// for each to fully stop before signalling the next, then closes every
// resource in the registry. Safe to call once after Start.
func (m *Manager) Stop() {
	for i := len(m.services) - 1; i >= 0; i-- {
		m.services[i].Stop()
	}

	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	_ = m.registry.CloseAll()
}

// GetServiceStatus returns the named service's status, or false if no
// service of that name is registered.
func (m *Manager) GetServiceStatus(name string) (svc.Status, bool) {
	for _, s := range m.services {
		if s.Name() == name {
			return s.Status(), true
		}
	}
	return svc.Status{}, false
}

// GetAllServiceStatus returns every service's status in declared order.
func (m *Manager) GetAllServiceStatus() []svc.Status {
	out := make([]svc.Status, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s.Status())
	}
	return out
}

// RunError returns the error (if any) a service's Run returned, set once
// its goroutine exits. Only meaningful after Start.
func (m *Manager) RunError(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErrs[name]
}

// PipelineStatus rolls every service's state up into one verdict:
// ERROR if any service errored, RUNNING iff every service is RUNNING,
// otherwise STARTING or STOPPING (whichever of the two the first such
// service in declared order is in), and STOPPED if no service is in either.
func (m *Manager) PipelineStatus() PipelineState {
	statuses := m.GetAllServiceStatus()
	if len(statuses) == 0 {
		return PipelineEmpty
	}

	allRunning := true
	for _, st := range statuses {
		if st.State == svc.Error {
			return PipelineError
		}
		if st.State != svc.Running {
			allRunning = false
		}
	}
	if allRunning {
		return PipelineRunning
	}
	for _, st := range statuses {
		switch st.State {
		case svc.Starting:
			return PipelineStarting
		case svc.Stopping:
			return PipelineStopping
		}
	}
	return PipelineStopped
}

// errServiceType reports an unrecognized ServiceSpec.Type during Build.
func errServiceType(name, typ string) error {
	return fmt.Errorf("manager: service %q: unknown type %q", name, typ)
}
