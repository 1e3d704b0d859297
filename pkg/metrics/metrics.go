// Package metrics instruments the connection/request lifecycle with
// Prometheus counters and histograms: connections accepted, connections
// closed by reason (keepalive_timeout/linger/error/client_close), requests
// by response status class, request/parse/write timings, and
// large-header-buffer pool pressure.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every metric this module registers. Construct one per
// worker process and pass it down to the connection engine and buffer
// pool; it is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsClosed   *prometheus.CounterVec // label: reason (keepalive_timeout, linger, error, client_close)
	RequestsTotal       *prometheus.CounterVec // label: status_class (2xx, 3xx, 4xx, 5xx)
	RequestDuration     prometheus.Histogram
	HeaderParseDuration prometheus.Histogram
	WriteDelayedSeconds prometheus.Histogram

	LargeBufferAllocated prometheus.Gauge
	LargeBufferReused    prometheus.Counter
	LargeBufferExhausted prometheus.Counter
}

// NewCollector builds and registers every metric against registry. If
// registry is nil, a fresh prometheus.Registry is created (tests should
// always pass their own to avoid cross-test registration collisions).
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpcore",
			Subsystem: "conn",
			Name:      "accepted_total",
			Help:      "Total TCP connections accepted.",
		}),
		ConnectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpcore",
			Subsystem: "conn",
			Name:      "closed_total",
			Help:      "Total connections closed, by reason.",
		}, []string{"reason"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpcore",
			Subsystem: "request",
			Name:      "total",
			Help:      "Total requests finalized, by response status class.",
		}, []string{"status_class"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "httpcore",
			Subsystem: "request",
			Name:      "duration_seconds",
			Help:      "End-to-end request duration from creation to finalize.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		HeaderParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "httpcore",
			Subsystem: "request",
			Name:      "header_parse_seconds",
			Help:      "Time spent in the request-line + header parser.",
			Buckets:   prometheus.DefBuckets,
		}),
		WriteDelayedSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "httpcore",
			Subsystem: "write",
			Name:      "delayed_seconds",
			Help:      "Time the write driver spent in the rate-limit delayed state.",
			Buckets:   prometheus.DefBuckets,
		}),
		LargeBufferAllocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpcore",
			Subsystem: "buffer_pool",
			Name:      "allocated",
			Help:      "Large-header buffers currently allocated.",
		}),
		LargeBufferReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpcore",
			Subsystem: "buffer_pool",
			Name:      "reused_total",
			Help:      "Large-header buffer Get() calls satisfied from the free list.",
		}),
		LargeBufferExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpcore",
			Subsystem: "buffer_pool",
			Name:      "exhausted_total",
			Help:      "Large-header buffer Get() calls that failed because the pool bound was reached.",
		}),
	}

	registry.MustRegister(
		c.ConnectionsAccepted,
		c.ConnectionsClosed,
		c.RequestsTotal,
		c.RequestDuration,
		c.HeaderParseDuration,
		c.WriteDelayedSeconds,
		c.LargeBufferAllocated,
		c.LargeBufferReused,
		c.LargeBufferExhausted,
	)
	return c
}

// Registry returns the registry metrics were registered against, for
// wiring an HTTP /metrics handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// StatusClass buckets an HTTP status into Prometheus's conventional
// "2xx"/"3xx"/"4xx"/"5xx" label values.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
