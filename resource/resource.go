// Package resource implements the capability-wrapper and resource-binding
// layer: a long-lived backend (database, storage substrate, topic) exposes
// narrow, role-specific capabilities — a reader, a writer, a schema-aware
// writer — rather than one god interface, and a Registry pairs an
// indexer's declared port with a resource under a usage contract.
//
// This is grounded on the teacher's db/repository package: CompositeRepository
// holds DocumentRepository/GraphRepository/MetricsRepository/CacheRepository,
// four narrow role interfaces behind one composite, looked up and wired by
// configuration rather than type-switching on a concrete backend. Resource
// generalizes that from "one fixed composite of four repositories" to "any
// number of named resources, each offering capabilities keyed by usage
// type", and — per the Design Note on run scoping — returns an immutable,
// already-run-scoped Handle from Capability() instead of a mutable
// setSimulationRun(runId) call threaded through a shared writer.
package resource

import (
	"context"
	"fmt"

	"github.com/simlattice/indexer/simtypes"
)

// Options carries per-binding capability configuration (e.g. consumerGroup,
// claimTimeoutMs) read from the service manifest.
type Options map[string]interface{}

// String returns the string value for key, or def if absent or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the int value for key, or def if absent or not numeric.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

// Handle is an opaque, already run-scoped capability value. Concrete
// resources return a type implementing one of the narrow role interfaces
// their domain defines (e.g. topic.Reader, simdb.OrganismWriter); callers
// type-assert the Handle to the interface their port expects.
type Handle interface {
	// Close releases any resources the capability holds open (e.g. a
	// prepared statement, a consumer-group cursor). Handles that hold
	// nothing open may implement this as a no-op.
	Close() error
}

// Resource is a long-lived backend capable of minting scoped capability
// handles. Implementations live in topic, blobstore, and simdb.
type Resource interface {
	// Name is the resource's identity as used in ResourceBinding.resourceName.
	Name() string

	// Capability mints a Handle for the given usage type, scoped to runID
	// (simtypes.RunID("") for resources that are not run-scoped, e.g. a
	// topic consumer binding that reads across runs). Returns the plain
	// ErrUnknownUsage error (it carries no xerrors.Kind) if usageType is
	// unknown.
	Capability(ctx context.Context, usageType string, runID simtypes.RunID, opts Options) (Handle, error)

	// Close shuts down the backend connection. Owned and called exactly
	// once by whatever assembled the Registry (manager.Manager),
	// after every dependent service has stopped.
	Close() error
}

// Binding is the resolved pairing of one indexer port with one resource
// under a usage contract — spec's ResourceBinding, plus the live Handle.
type Binding struct {
	PortName     string
	ResourceName string
	UsageType    string
	Options      Options
	Handle       Handle
}

// ErrUnknownUsage builds the standard error a Resource.Capability
// implementation returns when asked for a usage type it does not support,
// so every resource reports the failure identically.
func ErrUnknownUsage(resourceName, usageType string) error {
	return fmt.Errorf("resource %q: unsupported usage type %q", resourceName, usageType)
}
