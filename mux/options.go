package mux

import (
	"log/slog"
	"time"

	"github.com/c360/livesub/metric"
	"github.com/c360/livesub/ratelimit"
)

// DefaultGracePeriod is how long a key's physical channel stays open after
// its last registration unsubscribes. Rapid unmount/remount cycles in UI
// adapters land well inside this window.
const DefaultGracePeriod = 30 * time.Second

// Option configures a Multiplexer using the functional options pattern.
type Option[V any] func(*muxOptions[V])

type muxOptions[V any] struct {
	gracePeriod time.Duration
	limiter     ratelimit.Limiter
	logger      *slog.Logger
	metricsReg  metric.MetricsRegistrar
	filters     map[CallbackType]FilterFunc[V]
}

// WithGracePeriod overrides the teardown grace window. Values <= 0 are
// ignored.
func WithGracePeriod[V any](d time.Duration) Option[V] {
	return func(o *muxOptions[V]) {
		if d > 0 {
			o.gracePeriod = d
		}
	}
}

// WithRateLimiter sets the limiter consulted before every physical channel
// open. The default never rejects.
func WithRateLimiter[V any](l ratelimit.Limiter) Option[V] {
	return func(o *muxOptions[V]) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(o *muxOptions[V]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics export. If registrar is nil the
// option is ignored.
func WithMetrics[V any](registrar metric.MetricsRegistrar) Option[V] {
	return func(o *muxOptions[V]) {
		o.metricsReg = registrar
	}
}

// WithTypeFilter installs the predicate table for callback-type filtering.
// Types absent from the table receive every update.
func WithTypeFilter[V any](filters map[CallbackType]FilterFunc[V]) Option[V] {
	return func(o *muxOptions[V]) {
		o.filters = filters
	}
}

func applyOptions[V any](options ...Option[V]) *muxOptions[V] {
	opts := &muxOptions[V]{
		gracePeriod: DefaultGracePeriod,
		limiter:     ratelimit.Unlimited(),
		logger:      slog.Default(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}

// SubscribeOption configures a single registration.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	callbackType  CallbackType
	debounce      time.Duration
	logging       bool
	maxRetries    int
	errorRecovery bool
	onError       func(error)
}

// WithCallbackType tags the registration for payload filtering. Defaults
// to TypeGeneral. Unknown values make Subscribe fail with an invalid-input
// error.
func WithCallbackType(t CallbackType) SubscribeOption {
	return func(o *subscribeOptions) {
		o.callbackType = t
	}
}

// WithDebounce coalesces update bursts: the callback fires once per quiet
// period with the most recent payload. Zero (the default) delivers every
// update synchronously.
func WithDebounce(d time.Duration) SubscribeOption {
	return func(o *subscribeOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithSubscriberLogging enables per-delivery debug logging for this
// registration.
func WithSubscriberLogging(enabled bool) SubscribeOption {
	return func(o *subscribeOptions) {
		o.logging = enabled
	}
}

// WithMaxRetries records an advisory retry budget on the registration.
// The multiplexer never retries on its own; the value is surfaced through
// Subscription.MaxRetries for the caller to act on.
func WithMaxRetries(n int) SubscribeOption {
	return func(o *subscribeOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithErrorRecovery makes physical channel errors arrive as a nil payload
// instead of reaching the error handler. The channel itself stays open.
func WithErrorRecovery(enabled bool) SubscribeOption {
	return func(o *subscribeOptions) {
		o.errorRecovery = enabled
	}
}

// WithSubscriberErrorHandler receives physical channel errors for
// registrations that did not opt into error recovery. Without a handler
// such errors are only logged and counted.
func WithSubscriberErrorHandler(fn func(error)) SubscribeOption {
	return func(o *subscribeOptions) {
		o.onError = fn
	}
}

func applySubscribeOptions(options ...SubscribeOption) *subscribeOptions {
	opts := &subscribeOptions{
		callbackType: TypeGeneral,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
