package svc

import (
	"sync"

	"github.com/simlattice/indexer/buildinfo"
	"github.com/simlattice/indexer/xerrors"
)

var (
	buildInfoOnce sync.Once
	cachedBuildInfo *buildinfo.Info
)

func currentBuildInfo() *buildinfo.Info {
	buildInfoOnce.Do(func() { cachedBuildInfo = buildinfo.Get() })
	return cachedBuildInfo
}

// BindingInfo is the subset of a resource binding ServiceStatus reports:
// which port it satisfies, which resource backs it, and under what usage
// contract. The full live binding (with its bound resource.Handle) lives in
// package resource; Base only needs this for status reporting, so it stays
// here to avoid resource importing svc just to hand back a status line.
type BindingInfo struct {
	PortName     string `json:"portName"`
	ResourceName string `json:"resourceName"`
	UsageType    string `json:"usageType"`
}

// Status is the external snapshot of a service: its lifecycle state,
// health, metrics, recent errors, and resource bindings — spec's
// ServiceStatus.
type Status struct {
	Name     string             `json:"name"`
	State    State              `json:"state"`
	Healthy  bool               `json:"healthy"`
	Metrics  map[string]float64 `json:"metrics"`
	Errors   []OperationalError `json:"errors"`
	Bindings []BindingInfo      `json:"bindings"`
	Build    *buildinfo.Info    `json:"build"`
}

// Base is the lifecycle and status layer embedded by every indexer
// service: a mutex-serialized state machine, a metrics map, and a bounded
// error ring. indexer.Base embeds this directly; batchindexer.Engine reaches
// it through its *indexer.Base field.
type Base struct {
	Name string

	mu          sync.Mutex
	state       State
	fatal       *OperationalError
	bindings    []BindingInfo
	Metrics     *Metrics
	Errors      *ErrorRing
}

// NewBase creates a Base in the STOPPED state.
func NewBase(name string) *Base {
	return &Base{
		Name:    name,
		state:   Stopped,
		Metrics: NewMetrics(),
		Errors:  NewErrorRing(DefaultErrorRingCapacity),
	}
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetBindings records the resolved resource bindings for status reporting.
func (b *Base) SetBindings(bindings []BindingInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings = bindings
}

// BeginStart transitions STOPPED -> STARTING. Returns false (a no-op) if the
// service is not currently STOPPED, per spec's "start() is a no-op if not
// STOPPED".
func (b *Base) BeginStart() bool { return b.transition(Starting) }

// MarkRunning transitions STARTING -> RUNNING.
func (b *Base) MarkRunning() bool { return b.transition(Running) }

// BeginStop transitions RUNNING -> STOPPING. Returns false (a no-op) if the
// service is already STOPPED or ERROR, per spec's "stop() is a no-op if
// already STOPPED/ERROR". Also accepts STARTING -> STOPPING so a service
// can be cancelled mid-bootstrap instead of only from RUNNING.
func (b *Base) BeginStop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Stopped || b.state == Error {
		return false
	}
	if canTransition(b.state, Stopping) || b.state == Starting {
		b.state = Stopping
		return true
	}
	return false
}

// Stopped transitions STOPPING -> STOPPED.
func (b *Base) Stopped() bool { return b.transition(Stopped) }

// Fail transitions to the terminal ERROR state and records the fatal cause.
// Per spec §4.1, fatal errors increment a *_failed counter via the caller
// but are NOT added to the recent-errors ring.
func (b *Base) Fail(kind xerrors.Kind, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Error
	oe := OperationalError{ErrorType: string(kind), Message: message}
	b.fatal = &oe
}

// RecordError appends a non-fatal error to the bounded ring without
// affecting lifecycle state, per spec's recordError(kind, message).
func (b *Base) RecordError(kind xerrors.Kind, message string) {
	b.Errors.Add(kind, message)
}

// Healthy reports state ∈ {RUNNING, STOPPED} and no fatal error recorded.
func (b *Base) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return (b.state == Running || b.state == Stopped) && b.fatal == nil
}

// Status returns the current ServiceStatus snapshot.
func (b *Base) Status() Status {
	b.mu.Lock()
	state := b.state
	healthy := (state == Running || state == Stopped) && b.fatal == nil
	bindings := make([]BindingInfo, len(b.bindings))
	copy(bindings, b.bindings)
	b.mu.Unlock()

	return Status{
		Name:     b.Name,
		State:    state,
		Healthy:  healthy,
		Metrics:  b.Metrics.Snapshot(),
		Errors:   b.Errors.Snapshot(),
		Bindings: bindings,
		Build:    currentBuildInfo(),
	}
}

func (b *Base) transition(to State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !canTransition(b.state, to) {
		return false
	}
	b.state = to
	return true
}
