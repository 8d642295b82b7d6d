// Package metrics collects run counters for catalogue builds.
//
// A build is a batch job, so metrics are written once to a node-exporter
// textfile rather than served. All methods accept a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "astrolabium"

// Metrics holds the collectors of one run
type Metrics struct {
	registry *prometheus.Registry

	linesParsed  *prometheus.CounterVec
	linesSkipped *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	fetchBytes   *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	warnings     *prometheus.CounterVec
	systems      prometheus.Gauge
	stageSeconds *prometheus.HistogramVec
}

// New registers a fresh set of collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		linesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "lines_parsed_total",
			Help: "Catalogue lines decoded into entries.",
		}, []string{"catalogue"}),
		linesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "lines_skipped_total",
			Help: "Catalogue lines rejected with a parse error.",
		}, []string{"catalogue"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetches_total",
			Help: "HTTP fetches by host and outcome.",
		}, []string{"host", "outcome"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_bytes_total",
			Help: "Bytes downloaded by host, after decompression.",
		}, []string{"host"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "crossref_warnings_total",
			Help: "Cross-reference warnings by kind.",
		}, []string{"kind"}),
		systems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "galaxy_systems",
			Help: "Star systems in the last galaxy built.",
		}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Wall time of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.linesParsed, m.linesSkipped,
		m.fetches, m.fetchBytes,
		m.cacheLookups, m.warnings,
		m.systems, m.stageSeconds,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Parsed records one catalogue's parse outcome
func (m *Metrics) Parsed(catalogue string, entries, skipped int) {
	if m == nil {
		return
	}
	m.linesParsed.WithLabelValues(catalogue).Add(float64(entries))
	m.linesSkipped.WithLabelValues(catalogue).Add(float64(skipped))
}

// Fetched records a fetch; bytes is ignored on failure
func (m *Metrics) Fetched(host string, bytes int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.fetches.WithLabelValues(host, "error").Inc()
		return
	}
	m.fetches.WithLabelValues(host, "ok").Inc()
	m.fetchBytes.WithLabelValues(host).Add(float64(bytes))
}

// CacheLookup records a hit or miss
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// Warning counts one cross-reference warning
func (m *Metrics) Warning(kind string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Inc()
}

// Systems sets the galaxy size
func (m *Metrics) Systems(n int) {
	if m == nil {
		return
	}
	m.systems.Set(float64(n))
}

// Stage starts timing a stage; call the returned func when it ends
func (m *Metrics) Stage(name string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.stageSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// WriteTextfile writes all metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
