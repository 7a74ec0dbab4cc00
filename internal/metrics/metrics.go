// Package metrics exposes conversion counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Documents       *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	Orders          *prometheus.CounterVec
	LineItems       *prometheus.CounterVec
	Unresolved      *prometheus.CounterVec
	DocumentSeconds *prometheus.HistogramVec
	BatchSeconds    prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	QueueDepth      prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		reg: r,
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_documents_total",
			Help: "Documents processed, by source and status.",
		}, []string{"source", "status"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_failures_total",
			Help: "Document and order failures, by source and stage.",
		}, []string{"source", "stage"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_canonical_orders_total",
			Help: "Canonical orders emitted.",
		}, []string{"source"}),
		LineItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_line_items_total",
			Help: "Canonical line items emitted.",
		}, []string{"source"}),
		Unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_unresolved_identifiers_total",
			Help: "Identifiers that matched no active mapping, by key type.",
		}, []string{"key_type"}),
		DocumentSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "order_document_duration_seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		BatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_batch_duration_seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		CacheHits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "order_resolver_cache_hits_total"}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{Name: "order_resolver_cache_misses_total"}),
		QueueDepth:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "order_queue_depth"}),
	}
	r.MustRegister(
		m.Documents, m.Failures, m.Orders, m.LineItems, m.Unresolved,
		m.DocumentSeconds, m.BatchSeconds, m.CacheHits, m.CacheMisses, m.QueueDepth,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveDocument is nil-safe so callers without metrics can skip the check.
func (r *Registry) ObserveDocument(source, status string, orders, items int, d time.Duration) {
	if r == nil {
		return
	}
	r.Documents.WithLabelValues(source, status).Inc()
	r.Orders.WithLabelValues(source).Add(float64(orders))
	r.LineItems.WithLabelValues(source).Add(float64(items))
	r.DocumentSeconds.WithLabelValues(source).Observe(d.Seconds())
}

func (r *Registry) ObserveFailure(source, stage string) {
	if r == nil {
		return
	}
	r.Failures.WithLabelValues(source, stage).Inc()
}

// ObserveBatch records the batch duration and its resolver counters.
func (r *Registry) ObserveBatch(d time.Duration, hits, misses int, unresolved map[string]int) {
	if r == nil {
		return
	}
	r.BatchSeconds.Observe(d.Seconds())
	r.CacheHits.Add(float64(hits))
	r.CacheMisses.Add(float64(misses))
	for kt, n := range unresolved {
		r.Unresolved.WithLabelValues(kt).Add(float64(n))
	}
}

func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
