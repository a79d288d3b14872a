package main

import (
	"github.com/simlattice/indexer/config"
	"github.com/simlattice/indexer/manager"
	"github.com/simlattice/indexer/simdb"
	"github.com/simlattice/indexer/topic"
)

// resourceNames are the fixed identities the three backends are registered
// under, shared by every service in the default manifest; a manifest file
// must name these same resources in its bindings to reach the backends.
const (
	resourceDB    = "sim-db"
	resourceTopic = "topic"
	resourceBlob  = "blob"
)

// defaultManifest builds the three-service pipeline (metadata, environment,
// organism) run when cfg.ManifestPath is empty: one of each specialization,
// all bound to the same database/topic/blob backends, each in tail mode
// (discovering run ids off the blob store rather than a fixed RunID). This
// is the common "index every run as it lands" deployment shape; a manifest
// file is only needed to run a subset of specializations, post-mortem mode,
// or a DLQ/metadata-await binding.
func defaultManifest(cfg *config.Config) *manager.Manifest {
	insertBatchSize := cfg.BufferMaxTicks
	flushTimeoutMs := int(cfg.BufferMaxAge.Milliseconds())
	pollIntervalMs := int(cfg.TopicPollInterval.Milliseconds())
	claimTimeoutMs := int(cfg.TopicLeaseTTL.Milliseconds())

	service := func(name, typ, consumerGroup, schema string) manager.ServiceSpec {
		return manager.ServiceSpec{
			Name:                name,
			Type:                typ,
			PollIntervalMs:      pollIntervalMs,
			TopicPollTimeoutMs:  pollIntervalMs,
			InsertBatchSize:     insertBatchSize,
			FlushTimeoutMs:      flushTimeoutMs,
			Bindings: []manager.BindingSpec{
				{Port: "topic", Resource: resourceTopic, Usage: topic.UsageRead, Options: map[string]interface{}{
					"schema":         schema,
					"consumerGroup":  consumerGroup,
					"claimTimeoutMs": claimTimeoutMs,
				}},
				{Port: "storage", Resource: resourceBlob, Usage: "blob-read"},
				{Port: "db", Resource: resourceDB, Usage: dbUsage(typ)},
			},
		}
	}

	return &manager.Manifest{
		Services: []manager.ServiceSpec{
			service("metadata", "metadata", "metadata", topic.SchemaMetadataInfo),
			service("environment", "environment", "environment", topic.SchemaBatchInfo),
			service("organism", "organism", "organism", topic.SchemaBatchInfo),
		},
	}
}

func dbUsage(specType string) string {
	switch specType {
	case "metadata":
		return simdb.UsageMetadataWrite
	case "environment":
		return simdb.UsageEnvironmentWrite
	case "organism":
		return simdb.UsageOrganismWrite
	default:
		return simdb.UsageRead
	}
}
