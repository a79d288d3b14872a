// Package manager implements the ServiceManager: it reads a declarative
// manifest naming one or more indexer services, resolves each service's
// resource.Registry bindings, builds the corresponding indexer
// specialization, and starts/stops the resulting set in declared/reverse
// order. Grounded on the teacher's cli/root.go, which strings together
// config -> service construction -> HTTP server -> signal-driven graceful
// shutdown for one process; here the same shape drives N indexer
// goroutines instead of one HTTP server, plus status rollup across them.
package manager

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simlattice/indexer/simtypes"
)

func runIDOf(s string) simtypes.RunID { return simtypes.RunID(s) }

// Manifest is the top-level manifest document: a pipeline is just a list of
// services, each independently bound and started.
type Manifest struct {
	Services []ServiceSpec `yaml:"services"`
}

// ServiceSpec declares one service: its specialization Type, run-discovery
// mode, engine tunables, and the resource bindings it needs. Fields not
// meaningful to a given Type are simply left zero/empty.
type ServiceSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // metadata | environment | organism | dummy

	// Run discovery (indexer.DiscoveryConfig). RunID non-empty selects
	// post-mortem mode; empty selects tail/parallel mode, which requires a
	// "storage" binding able to list run ids.
	RunID                string `yaml:"runId"`
	PollIntervalMs       int    `yaml:"pollIntervalMs"`
	MaxPollDurationMs    int    `yaml:"maxPollDurationMs"`

	// Engine tunables (batchindexer.Config), meaningful to every Type.
	TopicPollTimeoutMs  int `yaml:"topicPollTimeoutMs"`
	PollRetryIntervalMs int `yaml:"pollRetryIntervalMs"`
	InsertBatchSize     int `yaml:"insertBatchSize"`
	FlushTimeoutMs      int `yaml:"flushTimeoutMs"`

	// Metadata-await tunables (batchindexer.MetadataConfig), only
	// consulted when the spec names a "metadataDb" binding.
	MetadataPollIntervalMs    int `yaml:"metadataPollIntervalMs"`
	MetadataMaxPollDurationMs int `yaml:"metadataMaxPollDurationMs"`

	// DLQ tunable; a zero value disables the DLQ component even when a
	// "dlq" binding is present.
	MaxRetries int `yaml:"maxRetries"`

	Bindings []BindingSpec `yaml:"bindings"`
}

// BindingSpec is one resource.BindRequest as written in the manifest.
type BindingSpec struct {
	Port     string                 `yaml:"port"`
	Resource string                 `yaml:"resource"`
	Usage    string                 `yaml:"usage"`
	Options  map[string]interface{} `yaml:"options"`
}

// LoadManifest reads and parses a YAML service manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manager: reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manager: parsing manifest %s: %w", path, err)
	}
	for i, s := range m.Services {
		if s.Name == "" {
			return nil, fmt.Errorf("manager: manifest %s: service %d missing name", path, i)
		}
		if s.Type == "" {
			return nil, fmt.Errorf("manager: manifest %s: service %q missing type", path, s.Name)
		}
	}
	return &m, nil
}
