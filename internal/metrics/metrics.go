// Package metrics exposes Prometheus collectors for the enrichment pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache tiers.
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// Collector holds all Prometheus metrics for the application.
// Each Collector owns its registry so tests can build isolated instances.
type Collector struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	cacheWriteFails  prometheus.Counter
	backfillOutcomes *prometheus.CounterVec
	propertyEvents   *prometheus.CounterVec
}

// New creates a collector registered under namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_cache_lookups_total",
			Help:      "Address cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		cacheWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_cache_write_failures_total",
			Help:      "Asynchronous persistent cache writes that failed.",
		}),
		backfillOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_properties_total",
			Help:      "Properties handled by enrichment backfill, by outcome.",
		}, []string{"outcome"}),
		propertyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_events_total",
			Help:      "Property mutations by kind.",
		}, []string{"kind"}),
	}
	c.registry.MustRegister(
		c.cacheLookups,
		c.providerRequests,
		c.cacheWriteFails,
		c.backfillOutcomes,
		c.propertyEvents,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// CacheLookup records a lookup against one cache tier.
func (c *Collector) CacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(tier, result).Inc()
}

// ProviderCall records the outcome of a geocoding request.
func (c *Collector) ProviderCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.providerRequests.WithLabelValues(provider, outcome).Inc()
}

// CacheWriteFailed counts a dropped write-through.
func (c *Collector) CacheWriteFailed() {
	c.cacheWriteFails.Inc()
}

// BackfillOutcome counts one backfill decision: updated, skipped or error.
func (c *Collector) BackfillOutcome(outcome string) {
	c.backfillOutcomes.WithLabelValues(outcome).Inc()
}

// PropertyEvent counts a property mutation.
func (c *Collector) PropertyEvent(kind string) {
	c.propertyEvents.WithLabelValues(kind).Inc()
}
