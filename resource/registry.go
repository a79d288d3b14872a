package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/simlattice/indexer/simtypes"
)

// Registry holds every named backend resource a manifest declares, and
// resolves (portName -> resourceName, usageType) bindings for services
// being started. One Registry is owned by manager.Manager and
// outlives every service bound against it.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]Resource)}
}

// Add registers a backend resource under its own Name(). Overwrites any
// existing resource of the same name.
func (r *Registry) Add(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.Name()] = res
}

// Get returns the named resource, or false if it is not registered.
func (r *Registry) Get(name string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// Bind resolves a single port to a resource and usage type, minting a
// run-scoped Handle. Returns an error (callers should treat this as
// RESOURCE_BINDING_MISSING, per spec §7) if the resource is unregistered or
// rejects the usage type.
func (r *Registry) Bind(ctx context.Context, portName, resourceName, usageType string, runID simtypes.RunID, opts Options) (Binding, error) {
	res, ok := r.Get(resourceName)
	if !ok {
		return Binding{}, fmt.Errorf("resource %q not registered for port %q", resourceName, portName)
	}
	handle, err := res.Capability(ctx, usageType, runID, opts)
	if err != nil {
		return Binding{}, fmt.Errorf("binding port %q to resource %q usage %q: %w", portName, resourceName, usageType, err)
	}
	return Binding{
		PortName:     portName,
		ResourceName: resourceName,
		UsageType:    usageType,
		Options:      opts,
		Handle:       handle,
	}, nil
}

// BindMany resolves every requested binding, stopping at the first failure.
// A port may legitimately receive multiple bindings (spec: "an indexer may
// receive multiple bindings per port"), so callers pass one request per
// binding even when several share a portName.
func (r *Registry) BindMany(ctx context.Context, reqs []BindRequest) ([]Binding, error) {
	out := make([]Binding, 0, len(reqs))
	for _, req := range reqs {
		b, err := r.Bind(ctx, req.PortName, req.ResourceName, req.UsageType, req.RunID, req.Options)
		if err != nil {
			for _, done := range out {
				_ = done.Handle.Close()
			}
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// BindRequest is one entry in a service manifest's binding list.
type BindRequest struct {
	PortName     string
	ResourceName string
	UsageType    string
	RunID        simtypes.RunID
	Options      Options
}

// CloseAll closes every registered resource, logging nothing itself —
// callers should log per-resource failures with the service logger they
// already hold. Returns the first error encountered but attempts every
// close regardless.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstErr error
	for _, res := range r.resources {
		if err := res.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
