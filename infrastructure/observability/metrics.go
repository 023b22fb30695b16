package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the service. Each collector owns
// its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Change log metrics
	ChangesProposed *prometheus.CounterVec
	ChangesResolved *prometheus.CounterVec
	ChangesUndone   *prometheus.CounterVec

	// Projection metrics
	SnapshotRebuilds *prometheus.HistogramVec
	LayoutDuration   prometheus.Histogram
	LayoutNodes      prometheus.Gauge
}

var _ ports.MetricsRecorder = (*Collector)(nil)

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ChangesProposed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_proposed_total",
				Help:      "Change records appended to the log",
			},
			[]string{"operation"},
		),
		ChangesResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_resolved_total",
				Help:      "Approval decisions by outcome",
			},
			[]string{"decision", "outcome"},
		),
		ChangesUndone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_undone_total",
				Help:      "Undo attempts by outcome",
			},
			[]string{"outcome"},
		),
		SnapshotRebuilds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_rebuild_duration_seconds",
				Help:      "Time to replay a workspace snapshot from the log",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"size"},
		),
		LayoutDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "layout_duration_seconds",
				Help:      "Time to compute a graph layout",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
			},
		),
		LayoutNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "layout_nodes",
				Help:      "Nodes placed by the most recent layout",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ChangesProposed,
		c.ChangesResolved,
		c.ChangesUndone,
		c.SnapshotRebuilds,
		c.LayoutDuration,
		c.LayoutNodes,
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ChangeProposed(op valueobjects.Operation) {
	c.ChangesProposed.WithLabelValues(string(op)).Inc()
}

func (c *Collector) ChangeResolved(decision valueobjects.Decision, outcome string) {
	c.ChangesResolved.WithLabelValues(string(decision), outcome).Inc()
}

func (c *Collector) ChangeUndone(outcome string) {
	c.ChangesUndone.WithLabelValues(outcome).Inc()
}

func (c *Collector) SnapshotRebuilt(records int, took time.Duration) {
	c.SnapshotRebuilds.WithLabelValues(sizeBucket(records)).Observe(took.Seconds())
}

func (c *Collector) LayoutComputed(nodes int, took time.Duration) {
	c.LayoutDuration.Observe(took.Seconds())
	c.LayoutNodes.Set(float64(nodes))
}

// Middleware records request counts and latencies by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// sizeBucket keeps the label set small
func sizeBucket(records int) string {
	switch {
	case records < 100:
		return "lt100"
	case records < 1000:
		return "lt1k"
	case records < 10000:
		return "lt10k"
	default:
		return "ge10k"
	}
}
