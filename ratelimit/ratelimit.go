// Package ratelimit gates physical channel opens in the multiplexer.
//
// The external store charges per open channel, so every open attempt is
// checked against a Limiter first. KeyedLimiter maintains one token bucket
// per key; Unlimited is a no-op for callers that do not need gating.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is consulted before every physical channel open.
type Limiter interface {
	// Allow reports whether an open for key may proceed right now.
	Allow(key string) bool

	// RecordRequest consumes one token for key. Called once per granted open.
	RecordRequest(key string)

	// TimeUntilReset returns how long until the next open for key would be
	// allowed. Zero means an open is allowed immediately.
	TimeUntilReset(key string) time.Duration
}

// KeyedLimiter applies an independent token bucket to each key.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

var _ Limiter = (*KeyedLimiter)(nil)

// NewKeyedLimiter creates a limiter allowing r opens per second with the
// given burst, tracked per key.
func NewKeyedLimiter(r rate.Limit, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    r,
		burst:    burst,
	}
}

func (k *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether a token is available for key without consuming it.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.limiterFor(key).Tokens() >= 1
}

// RecordRequest consumes one token for key.
func (k *KeyedLimiter) RecordRequest(key string) {
	k.limiterFor(key).Allow()
}

// TimeUntilReset returns the wait until the next token for key.
func (k *KeyedLimiter) TimeUntilReset(key string) time.Duration {
	l := k.limiterFor(key)
	if l.Tokens() >= 1 {
		return 0
	}
	r := l.Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}

// Forget drops the bucket for key, releasing its memory. The next request
// for key starts with a full bucket.
func (k *KeyedLimiter) Forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.limiters, key)
}

type unlimited struct{}

func (unlimited) Allow(string) bool                   { return true }
func (unlimited) RecordRequest(string)                {}
func (unlimited) TimeUntilReset(string) time.Duration { return 0 }

// Unlimited returns a Limiter that never rejects. It is the multiplexer
// default.
func Unlimited() Limiter {
	return unlimited{}
}
