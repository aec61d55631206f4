package config

import (
	"golang.org/x/time/rate"

	"github.com/c360/livesub/mux"
	"github.com/c360/livesub/pkg/cache"
	"github.com/c360/livesub/ratelimit"
)

// Limiter builds the channel-open limiter described by cfg.
func Limiter(cfg RateLimitConfig) ratelimit.Limiter {
	if !cfg.Enabled {
		return ratelimit.Unlimited()
	}
	return ratelimit.NewKeyedLimiter(rate.Limit(cfg.OpensPerSecond), cfg.Burst)
}

// MuxOptions translates cfg into multiplexer options. Callers append
// their own logger, metrics and filter options.
func MuxOptions[V any](cfg Config) []mux.Option[V] {
	return []mux.Option[V]{
		mux.WithGracePeriod[V](cfg.Mux.GracePeriod.Std()),
		mux.WithRateLimiter[V](Limiter(cfg.RateLimit)),
	}
}

// CacheOptions translates cfg into read-through cache options.
func CacheOptions[V any](cfg Config) []cache.Option[V] {
	return []cache.Option[V]{
		cache.WithTTL[V](cfg.Cache.TTL.Std()),
		cache.WithErrorTTL[V](cfg.Cache.ErrorTTL.Std()),
	}
}
