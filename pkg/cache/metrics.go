package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livesub/metric"
)

// readThroughMetrics holds Prometheus metrics for cache operations.
type readThroughMetrics struct {
	hits          prometheus.Counter
	negHits       prometheus.Counter
	misses        prometheus.Counter
	fetches       prometheus.Counter
	joins         prometheus.Counter
	invalidations prometheus.Counter
}

// newReadThroughMetrics creates and registers cache metrics under prefix.
func newReadThroughMetrics(registrar metric.MetricsRegistrar, prefix string) (*readThroughMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &readThroughMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "livesub",
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Valid cache entries served without a fetch",
		}),
		negHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "livesub",
			Subsystem:   "cache",
			Name:        "negative_hits_total",
			ConstLabels: labels,
			Help:        "Cached errors served from the negative cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "livesub",
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Gets that found no valid entry",
		}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "livesub",
			Subsystem:   "cache",
			Name:        "fetches_total",
			ConstLabels: labels,
			Help:        "Backend fetch invocations",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "livesub",
			Subsystem:   "cache",
			Name:        "joined_waiters_total",
			ConstLabels: labels,
			Help:        "Gets that joined an in-flight fetch instead of starting one",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "livesub",
			Subsystem:   "cache",
			Name:        "invalidations_total",
			ConstLabels: labels,
			Help:        "Explicit single-key invalidations",
		}),
	}

	if err := registrar.RegisterCounter(prefix, "hits_total", m.hits); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "negative_hits_total", m.negHits); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "misses_total", m.misses); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "fetches_total", m.fetches); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "joined_waiters_total", m.joins); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "invalidations_total", m.invalidations); err != nil {
		return nil, err
	}

	return m, nil
}
