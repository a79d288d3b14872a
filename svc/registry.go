package svc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry exports a set of services' in-memory metrics maps through
// Prometheus, the way the teacher's tracing.Metrics registers a fixed set
// of promauto collectors up front. Here the metric names are dynamic (they
// come from each service's own counters/gauges: batches_processed,
// metadata_failed, …), so Registry keeps one GaugeVec keyed on
// (service, metric) rather than one collector per name.
type Registry struct {
	gauge *prometheus.GaugeVec
}

// NewRegistry creates a Registry and registers its single GaugeVec collector
// under namespace (defaulting to "simidx" if empty).
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "simidx"
	}
	return &Registry{
		gauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "service_metric",
				Help:      "Per-service metric value, labeled by service name and metric key.",
			},
			[]string{"service", "metric"},
		),
	}
}

// Export pushes every given status's metrics snapshot into the Prometheus
// GaugeVec. Intended to be called on a short interval by cmd/indexerd
// alongside serving /metrics (via manager.Manager.GetAllServiceStatus),
// since promauto collectors are pull-based but a service's Metrics map is
// push-accumulated.
func (r *Registry) Export(statuses []Status) {
	for _, st := range statuses {
		for metric, value := range st.Metrics {
			r.gauge.WithLabelValues(st.Name, metric).Set(value)
		}
	}
}
