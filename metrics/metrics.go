// Package metrics records HTTP request metrics in Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the request collectors.
type Options struct {
	Namespace string
	Buckets   []float64
}

// Registry tracks request metrics on a Prometheus registry.
type Registry struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New creates a registry with Go runtime and process collectors.
func New(options Options) *Registry {
	if options.Namespace == "" {
		options.Namespace = "yaade"
	}
	if len(options.Buckets) == 0 {
		options.Buckets = prometheus.DefBuckets
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: options.Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by operation, method and status.",
		}, []string{"operation", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: options.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by operation.",
			Buckets:   options.Buckets,
		}, []string{"operation"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: options.Namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
}

// Register adds extra collectors, such as database pool stats.
func (r *Registry) Register(collectors ...prometheus.Collector) error {
	for _, collector := range collectors {
		if err := r.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Start marks the start of a request.
func (r *Registry) Start() time.Time {
	r.inFlight.Inc()
	return time.Now()
}

// End records a completed request. Requests outside the contract are
// labeled "other" to keep label cardinality bounded.
func (r *Registry) End(start time.Time, operation, method string, status int) {
	r.inFlight.Dec()
	if operation == "" {
		operation = "other"
	}
	r.requests.WithLabelValues(operation, method, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
