// Package prom implements tiercache.MetricsCollector backed by
// prometheus/client_golang, mirroring the wiring IvanBrykalov-shardcache uses
// for its own cache metrics adapter.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements tiercache.MetricsCollector. Safe for concurrent use:
// every Prometheus metric type is goroutine-safe.
type Adapter struct {
	getLatency      prometheus.Histogram
	hits            prometheus.Counter
	misses          prometheus.Counter
	setLatency      prometheus.Histogram
	deleteLatency   prometheus.Histogram
	contentionAbort prometheus.Counter
	selfEchoSkipped prometheus.Counter
	changeFeedLag   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter and registers its collectors
// with reg. If reg is nil, prometheus.DefaultRegisterer is used.
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	a := &Adapter{
		getLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "get_latency_seconds",
			Help:        "Latency of Get calls, near-cache hit or miss",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "near_cache_hits_total",
			Help:        "Near-cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "near_cache_misses_total",
			Help:        "Near-cache misses",
			ConstLabels: constLabels,
		}),
		setLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "set_latency_seconds",
			Help:        "Latency of Put/Replace calls against the authoritative store",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		deleteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "delete_latency_seconds",
			Help:        "Latency of Remove calls against the authoritative store",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		contentionAbort: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "contention_aborts_total",
			Help:        "Near-cache admissions denied by canAdmit due to a racing invalidation",
			ConstLabels: constLabels,
		}),
		selfEchoSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "self_echo_suppressed_total",
			Help:        "Change-feed delete records recognized as this node's own recent removal and skipped",
			ConstLabels: constLabels,
		}),
		changeFeedLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "change_feed_lag_milliseconds",
			Help:        "Age of the most recently processed change-feed record at dispatch time",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(
		a.getLatency, a.hits, a.misses, a.setLatency, a.deleteLatency,
		a.contentionAbort, a.selfEchoSkipped, a.changeFeedLag,
	)
	return a
}

// RecordGet implements tiercache.MetricsCollector.
func (a *Adapter) RecordGet(latencyNs int64, hit bool) {
	a.getLatency.Observe(float64(latencyNs) / 1e9)
	if hit {
		a.hits.Inc()
	} else {
		a.misses.Inc()
	}
}

// RecordSet implements tiercache.MetricsCollector.
func (a *Adapter) RecordSet(latencyNs int64) {
	a.setLatency.Observe(float64(latencyNs) / 1e9)
}

// RecordDelete implements tiercache.MetricsCollector.
func (a *Adapter) RecordDelete(latencyNs int64) {
	a.deleteLatency.Observe(float64(latencyNs) / 1e9)
}

// RecordContentionAbort implements tiercache.MetricsCollector.
func (a *Adapter) RecordContentionAbort() {
	a.contentionAbort.Inc()
}

// RecordSelfEchoSuppressed implements tiercache.MetricsCollector.
func (a *Adapter) RecordSelfEchoSuppressed() {
	a.selfEchoSkipped.Inc()
}

// RecordChangeFeedLagMillis implements tiercache.MetricsCollector.
func (a *Adapter) RecordChangeFeedLagMillis(lagMs int64) {
	a.changeFeedLag.Set(float64(lagMs))
}
