// Package metrics exposes prometheus counters for the cache, backend requests and retries. Each Metrics owns its
// registry so several instances (tests, CLI one-shots) never collide on registration.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contextview"

type Metrics struct {
	registry *prometheus.Registry

	cacheEvents *prometheus.CounterVec
	requests    *prometheus.CounterVec
	retries     *prometheus.CounterVec
	hookErrors  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		// Labels: family (key prefix, e.g. search, graph), event (hit, miss, eviction)
		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Client cache hits, misses and evictions",
		}, []string{"family", "event"}),
		// Labels: operation, outcome (ok, not_found, client_error, server_error, network_error)
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Backend requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hooks",
			Name:      "retries_total",
			Help:      "Automatic retries scheduled by data hooks",
		}, []string{"hook"}),
		hookErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hooks",
			Name:      "errors_total",
			Help:      "Loads that ended in the error state",
		}, []string{"hook"}),
	}
}

func (m *Metrics) CacheHit(key string) {
	m.cacheEvents.WithLabelValues(keyFamily(key), "hit").Inc()
}

func (m *Metrics) CacheMiss(key string) {
	m.cacheEvents.WithLabelValues(keyFamily(key), "miss").Inc()
}

func (m *Metrics) CacheEviction(key string) {
	m.cacheEvents.WithLabelValues(keyFamily(key), "eviction").Inc()
}

func (m *Metrics) Request(operation, outcome string) {
	m.requests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Retry(hook string) {
	m.retries.WithLabelValues(hook).Inc()
}

func (m *Metrics) HookError(hook string) {
	m.hookErrors.WithLabelValues(hook).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func keyFamily(key string) string {
	if family, _, ok := strings.Cut(key, ":"); ok && family != "" {
		return family
	}
	return "other"
}
