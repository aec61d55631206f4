package cache

import (
	"log/slog"
	"time"

	"github.com/c360/livesub/metric"
)

// DefaultTTL is how long successful fetches are served from cache.
const DefaultTTL = 60 * time.Second

// DefaultErrorTTL is how long failed fetches are served from the negative
// cache, suppressing retry storms. Set to 0 to disable negative caching.
const DefaultErrorTTL = 5 * time.Second

// Option configures a ReadThrough cache using the functional options pattern.
type Option[V any] func(*options[V])

type options[V any] struct {
	ttl           time.Duration
	errTTL        time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metricsReg    metric.MetricsRegistrar
	metricsPrefix string
}

// WithTTL sets how long successful entries stay valid. Values <= 0 are
// ignored.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(o *options[V]) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithErrorTTL sets the negative-cache TTL for failed fetches. Zero
// disables negative caching; negative values are ignored.
func WithErrorTTL[V any](ttl time.Duration) Option[V] {
	return func(o *options[V]) {
		if ttl >= 0 {
			o.errTTL = ttl
		}
	}
}

// WithClock overrides the time source, used by tests to drive TTL expiry
// deterministically.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(o *options[V]) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(o *options[V]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics export under the given component
// prefix. Ignored if registrar is nil or prefix empty.
func WithMetrics[V any](registrar metric.MetricsRegistrar, prefix string) Option[V] {
	return func(o *options[V]) {
		if registrar != nil && prefix != "" {
			o.metricsReg = registrar
			o.metricsPrefix = prefix
		}
	}
}

func applyOptions[V any](opts ...Option[V]) *options[V] {
	o := &options[V]{
		ttl:    DefaultTTL,
		errTTL: DefaultErrorTTL,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o
}
