// Package metrics exposes Prometheus instrumentation for the renderer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Component render outcomes.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusFallback = "fallback"
)

// Response outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRedirect = "redirect"
	OutcomeNotFound = "not_found"
)

// Collector holds the renderer's metrics. A nil *Collector is valid and
// records nothing, so callers never need to check.
type Collector struct {
	componentRenders  *prometheus.CounterVec
	componentDuration *prometheus.HistogramVec
	storeLoads        *prometheus.CounterVec
	storeDuration     *prometheus.HistogramVec
	storeCache        *prometheus.CounterVec
	sharedLoads       *prometheus.CounterVec
	responses         *prometheus.CounterVec
}

// NewCollector registers the metrics on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		componentRenders: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_renders_total",
				Help:      "Component renders by component and status.",
			},
			[]string{"component", "status"},
		),
		componentDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_render_duration_seconds",
				Help:      "Time spent loading and rendering a component.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component"},
		),
		storeLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_loads_total",
				Help:      "Store data loads by store and status.",
			},
			[]string{"store", "status"},
		),
		storeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_load_duration_seconds",
				Help:      "Time spent in store Load.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"store"},
		),
		storeCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_cache_lookups_total",
				Help:      "Shared store cache lookups by result (hit, miss).",
			},
			[]string{"store", "result"},
		),
		sharedLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_shared_results_total",
				Help:      "Store results delivered to a caller that joined a running load.",
			},
			[]string{"store"},
		),
		responses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Rendered responses by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordComponent records one component render.
func (c *Collector) RecordComponent(component, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.componentRenders.WithLabelValues(component, status).Inc()
	c.componentDuration.WithLabelValues(component).Observe(d.Seconds())
}

// RecordStoreLoad records one execution of a store's Load.
func (c *Collector) RecordStoreLoad(store string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	c.storeLoads.WithLabelValues(store, status).Inc()
	c.storeDuration.WithLabelValues(store).Observe(d.Seconds())
}

// RecordStoreCache records a shared cache lookup.
func (c *Collector) RecordStoreCache(store string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.storeCache.WithLabelValues(store, result).Inc()
}

// RecordShared records a result that was shared with a joining caller.
func (c *Collector) RecordShared(store string) {
	if c == nil {
		return
	}
	c.sharedLoads.WithLabelValues(store).Inc()
}

// RecordResponse records how a response was finalized.
func (c *Collector) RecordResponse(outcome string) {
	if c == nil {
		return
	}
	c.responses.WithLabelValues(outcome).Inc()
}
