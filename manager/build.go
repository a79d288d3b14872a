package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/simlattice/indexer/batchindexer"
	"github.com/simlattice/indexer/blobstore"
	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/indexers"
	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/simdb"
	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/svc"
	"github.com/simlattice/indexer/topic"
)

// Build parses a manifest into a ready-to-Start Manager: every ServiceSpec
// is resolved against registry and turned into the matching specialization
// wrapped in a batchindexer.Engine (environment/organism/dummy) or run
// directly atop indexer.Base (metadata), per spec §4.4/§4.7.
func Build(ctx context.Context, manifest *Manifest, registry *resource.Registry) (*Manager, error) {
	m := NewManager(registry)
	for _, spec := range manifest.Services {
		svc, err := buildService(ctx, spec, registry)
		if err != nil {
			return nil, fmt.Errorf("manager: building service %q: %w", spec.Name, err)
		}
		m.AddService(svc)
	}
	return m, nil
}

func findBinding(spec ServiceSpec, port string) (BindingSpec, bool) {
	for _, b := range spec.Bindings {
		if b.Port == port {
			return b, true
		}
	}
	return BindingSpec{}, false
}

func lookupPool(registry *resource.Registry, resourceName string) (*simdb.Pool, error) {
	res, ok := registry.Get(resourceName)
	if !ok {
		return nil, fmt.Errorf("manager: resource %q not registered", resourceName)
	}
	pool, ok := res.(*simdb.Pool)
	if !ok {
		return nil, fmt.Errorf("manager: resource %q is not a simdb.Pool", resourceName)
	}
	return pool, nil
}

func bindingInfos(bindings []BindingSpec) []svc.BindingInfo {
	out := make([]svc.BindingInfo, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, svc.BindingInfo{PortName: b.Port, ResourceName: b.Resource, UsageType: b.Usage})
	}
	return out
}

func durationMs(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func buildService(ctx context.Context, spec ServiceSpec, registry *resource.Registry) (Service, error) {
	var lister indexer.RunLister
	var storageReader blobstore.Reader
	if b, ok := findBinding(spec, "storage"); ok {
		bound, err := registry.Bind(ctx, b.Port, b.Resource, b.Usage, runIDOf(""), resource.Options(b.Options))
		if err != nil {
			return nil, fmt.Errorf("binding port %q: %w", b.Port, err)
		}
		reader, ok := bound.Handle.(blobstore.Reader)
		if !ok {
			return nil, fmt.Errorf("port %q: expected blobstore.Reader", b.Port)
		}
		storageReader = reader
		lister = reader
	}

	var topicReader topic.Reader
	if b, ok := findBinding(spec, "topic"); ok {
		bound, err := registry.Bind(ctx, b.Port, b.Resource, b.Usage, runIDOf(""), resource.Options(b.Options))
		if err != nil {
			return nil, fmt.Errorf("binding port %q: %w", b.Port, err)
		}
		reader, ok := bound.Handle.(topic.Reader)
		if !ok {
			return nil, fmt.Errorf("port %q: expected topic.Reader", b.Port)
		}
		topicReader = reader
	}

	discoverer := indexer.NewRunDiscoverer(lister, indexer.DiscoveryConfig{
		RunID:           runIDOf(spec.RunID),
		PollInterval:    durationMs(spec.PollIntervalMs, 2*time.Second),
		MaxPollDuration: durationMs(spec.MaxPollDurationMs, 5*time.Minute),
	})
	base := indexer.NewBase(spec.Name, discoverer)
	base.SetBindings(bindingInfos(spec.Bindings))

	engCfg := batchindexer.Config{
		TopicPollTimeout:  durationMs(spec.TopicPollTimeoutMs, 5*time.Second),
		InsertBatchSize:   spec.InsertBatchSize,
		FlushTimeout:      durationMs(spec.FlushTimeoutMs, 5*time.Second),
		PollRetryInterval: durationMs(spec.PollRetryIntervalMs, 50*time.Millisecond),
	}

	switch spec.Type {
	case "metadata":
		return buildMetadataService(base, topicReader, storageReader, spec, registry, engCfg)
	case "environment":
		return buildFlusherService(ctx, base, topicReader, storageReader, spec, registry, engCfg, newEnvironmentFlusher)
	case "organism":
		return buildFlusherService(ctx, base, topicReader, storageReader, spec, registry, engCfg, newOrganismFlusher)
	case "dummy":
		return buildFlusherService(ctx, base, topicReader, storageReader, spec, registry, engCfg, newDummyFlusher)
	default:
		return nil, errServiceType(spec.Name, spec.Type)
	}
}

func buildMetadataService(base *indexer.Base, topicReader topic.Reader, storageReader blobstore.Reader, spec ServiceSpec, registry *resource.Registry, engCfg batchindexer.Config) (Service, error) {
	dbBinding, ok := findBinding(spec, "db")
	if !ok {
		return nil, fmt.Errorf("metadata service %q requires a %q binding", spec.Name, "db")
	}
	pool, err := lookupPool(registry, dbBinding.Resource)
	if err != nil {
		return nil, err
	}

	mi := &indexers.MetadataIndexer{
		Base:              base,
		Topic:             topicReader,
		Storage:           storageReader,
		Pool:              pool,
		PollTimeout:       engCfg.TopicPollTimeout,
		PollRetryInterval: engCfg.PollRetryInterval,
		BindWriter: func(ctx context.Context, runID simtypes.RunID) (*simdb.MetadataWriter, error) {
			bound, err := registry.Bind(ctx, dbBinding.Port, dbBinding.Resource, dbBinding.Usage, runID, resource.Options(dbBinding.Options))
			if err != nil {
				return nil, err
			}
			w, ok := bound.Handle.(*simdb.MetadataWriter)
			if !ok {
				return nil, fmt.Errorf("port %q: expected *simdb.MetadataWriter", dbBinding.Port)
			}
			return w, nil
		},
	}
	return newRunner(base, mi, nil), nil
}

// flusherFactory builds the batchindexer.Flusher (plus Preparer/
// MetadataAware where applicable) for one specialization type.
type flusherFactory func(base *indexer.Base, spec ServiceSpec, registry *resource.Registry) (batchindexer.Flusher, error)

func buildFlusherService(ctx context.Context, base *indexer.Base, topicReader topic.Reader, storageReader blobstore.Reader, spec ServiceSpec, registry *resource.Registry, engCfg batchindexer.Config, factory flusherFactory) (Service, error) {
	flusher, err := factory(base, spec, registry)
	if err != nil {
		return nil, err
	}

	engine := batchindexer.NewEngine(base, flusher, topicReader, storageReader, engCfg)

	if spec.InsertBatchSize > 0 {
		engine.Buffer = batchindexer.NewBuffer()
	}

	if b, ok := findBinding(spec, "metadataDb"); ok {
		bound, err := registry.Bind(ctx, b.Port, b.Resource, b.Usage, runIDOf(""), resource.Options(b.Options))
		if err != nil {
			return nil, fmt.Errorf("binding port %q: %w", b.Port, err)
		}
		reader, ok := bound.Handle.(batchindexer.MetadataReader)
		if !ok {
			return nil, fmt.Errorf("port %q: expected a metadata reader", b.Port)
		}
		engine.Metadata = batchindexer.NewMetadata(reader, batchindexer.MetadataConfig{
			PollInterval: durationMs(spec.MetadataPollIntervalMs, time.Second),
			MaxDuration:  durationMs(spec.MetadataMaxPollDurationMs, time.Minute),
		})
	}

	if spec.MaxRetries > 0 {
		if b, ok := findBinding(spec, "dlq"); ok {
			bound, err := registry.Bind(ctx, b.Port, b.Resource, b.Usage, runIDOf(""), resource.Options(b.Options))
			if err != nil {
				return nil, fmt.Errorf("binding port %q: %w", b.Port, err)
			}
			writer, ok := bound.Handle.(blobstore.Writer)
			if !ok {
				return nil, fmt.Errorf("port %q: expected blobstore.Writer", b.Port)
			}
			engine.DLQ = batchindexer.NewDLQ(spec.MaxRetries, &blobDLQSink{base: base, writer: writer})
		}
	}

	return newRunner(base, engine, engine.Stop), nil
}

func newEnvironmentFlusher(base *indexer.Base, spec ServiceSpec, registry *resource.Registry) (batchindexer.Flusher, error) {
	dbBinding, ok := findBinding(spec, "db")
	if !ok {
		return nil, fmt.Errorf("environment service %q requires a %q binding", spec.Name, "db")
	}
	pool, err := lookupPool(registry, dbBinding.Resource)
	if err != nil {
		return nil, err
	}
	return &indexers.EnvironmentIndexer{
		Pool: pool,
		BindWriter: func(ctx context.Context, runID simtypes.RunID) (*simdb.EnvironmentWriter, error) {
			bound, err := registry.Bind(ctx, dbBinding.Port, dbBinding.Resource, dbBinding.Usage, runID, resource.Options(dbBinding.Options))
			if err != nil {
				return nil, err
			}
			w, ok := bound.Handle.(*simdb.EnvironmentWriter)
			if !ok {
				return nil, fmt.Errorf("port %q: expected *simdb.EnvironmentWriter", dbBinding.Port)
			}
			return w, nil
		},
	}, nil
}

func newOrganismFlusher(base *indexer.Base, spec ServiceSpec, registry *resource.Registry) (batchindexer.Flusher, error) {
	dbBinding, ok := findBinding(spec, "db")
	if !ok {
		return nil, fmt.Errorf("organism service %q requires a %q binding", spec.Name, "db")
	}
	pool, err := lookupPool(registry, dbBinding.Resource)
	if err != nil {
		return nil, err
	}
	return &indexers.OrganismIndexer{
		Pool: pool,
		BindWriter: func(ctx context.Context, runID simtypes.RunID) (*simdb.OrganismWriter, error) {
			bound, err := registry.Bind(ctx, dbBinding.Port, dbBinding.Resource, dbBinding.Usage, runID, resource.Options(dbBinding.Options))
			if err != nil {
				return nil, err
			}
			w, ok := bound.Handle.(*simdb.OrganismWriter)
			if !ok {
				return nil, fmt.Errorf("port %q: expected *simdb.OrganismWriter", dbBinding.Port)
			}
			return w, nil
		},
	}, nil
}

func newDummyFlusher(base *indexer.Base, spec ServiceSpec, registry *resource.Registry) (batchindexer.Flusher, error) {
	return &indexers.DummyIndexer{Base: base}, nil
}
