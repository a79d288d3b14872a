// Command indexerd is the tick-indexing pipeline's process entrypoint: it
// loads configuration, opens the database/topic/blob backends, assembles a
// manager.Manager from either a declared manifest or the built-in
// three-service default, and runs it until SIGINT/SIGTERM, then drains
// every service before exiting. Grounded on the teacher's cli/root.go,
// which strings the same config -> services -> signal-driven shutdown
// sequence together for one HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simlattice/indexer/blobstore"
	"github.com/simlattice/indexer/config"
	"github.com/simlattice/indexer/manager"
	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/simdb"
	"github.com/simlattice/indexer/svc"
	"github.com/simlattice/indexer/topic"
	"github.com/simlattice/indexer/xlog"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "indexerd",
	Short: "runs the tick-indexing pipeline against a simulation run's topic/blob/database backends",
	Long: `indexerd

Consumes tick-batch and simulation-metadata messages off the topic
substrate, reads the referenced blobs, and persists them into the
relational database substrate through one or more indexer services
(metadata, environment, organism). Services are either declared in a
YAML manifest (--manifest-path) or, absent one, the built-in pipeline of
all three specializations against a single set of backends.

Configuration can be provided via command-line flags, environment
variables prefixed SIMIDX_, or a YAML/JSON/TOML config file, in that
order of precedence.`,
	RunE: runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (optional)")
	if err := config.BindFlags(rootCmd, viper.GetViper()); err != nil {
		panic(fmt.Sprintf("indexerd: binding flags: %v", err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	logger := xlog.New(xlog.Config{
		Level:      xlog.Level(cfg.LogLevel),
		Format:     cfg.LogFormat,
		TimeFormat: time.RFC3339,
	})
	log := xlog.ServiceLogger(logger, cfg.ServiceName, "indexerd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := openRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("indexerd: opening backends: %w", err)
	}

	manifest, err := loadOrDefaultManifest(cfg)
	if err != nil {
		_ = registry.CloseAll()
		return err
	}

	mgr, err := manager.Build(ctx, manifest, registry)
	if err != nil {
		_ = registry.CloseAll()
		return fmt.Errorf("indexerd: building services: %w", err)
	}

	var metricsServer *http.Server
	metricsRegistry := svc.NewRegistry(cfg.ServiceName)
	if cfg.MetricsEnabled {
		metricsServer = startMetricsServer(cfg, log)
	}

	log.Infof("starting %d services", len(manifest.Services))
	mgr.Start(ctx)

	statusTicker := time.NewTicker(10 * time.Second)
	defer statusTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

runLoop:
	for {
		select {
		case <-quit:
			log.Infof("shutdown signal received")
			break runLoop
		case <-statusTicker.C:
			exportMetrics(metricsRegistry, mgr)
			logPipelineStatus(log.Infof, mgr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	stopped := make(chan struct{})
	go func() {
		mgr.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warnf("shutdown budget exceeded, exiting with services still draining")
	}
	logPipelineStatus(log.Infof, mgr)

	if metricsServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = metricsServer.Shutdown(stopCtx)
	}

	log.Infof("shutdown complete")
	return nil
}

// openRegistry connects every backend named in cfg and registers them
// under the fixed resource names the default manifest (and any manifest
// file) addresses them by.
func openRegistry(ctx context.Context, cfg *config.Config) (*resource.Registry, error) {
	pool, err := simdb.Open(ctx, cfg.DatabaseDSN, resourceDB)
	if err != nil {
		return nil, fmt.Errorf("simdb: %w", err)
	}

	topicBackend, err := topic.Open(ctx, cfg.TopicDSN, resourceTopic)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("topic: %w", err)
	}

	blobBackend, err := blobstore.Open(ctx, blobstore.Config{
		Bucket:       cfg.BlobBucket,
		Region:       cfg.BlobRegion,
		Endpoint:     cfg.BlobEndpoint,
		ResourceName: resourceBlob,
	})
	if err != nil {
		_ = pool.Close()
		_ = topicBackend.Close()
		return nil, fmt.Errorf("blobstore: %w", err)
	}

	registry := resource.NewRegistry()
	registry.Add(pool)
	registry.Add(topicBackend)
	registry.Add(blobBackend)
	return registry, nil
}

func loadOrDefaultManifest(cfg *config.Config) (*manager.Manifest, error) {
	if cfg.ManifestPath == "" {
		return defaultManifest(cfg), nil
	}
	manifest, err := manager.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("indexerd: loading manifest: %w", err)
	}
	return manifest, nil
}

func startMetricsServer(cfg *config.Config, log *xlog.Fields) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	log.Infof("metrics server listening on :%d", cfg.MetricsPort)
	return server
}

func exportMetrics(reg *svc.Registry, mgr *manager.Manager) {
	reg.Export(mgr.GetAllServiceStatus())
}
