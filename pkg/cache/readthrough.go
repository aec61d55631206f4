// Package cache provides a single-flight, TTL-bounded read-through cache
// for point reads against a slow or metered backend.
//
// A burst of concurrent Get calls for one key with no valid entry performs
// exactly one fetch; every caller receives the same value or the same
// error. Successful results are cached for the configured TTL, failures
// optionally for a short negative TTL to absorb retry storms.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/c360/livesub/errors"
)

// FetchFunc loads the value for one key from the backend. It is supplied
// per call site and never owned by the cache.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// entry is one cached resolution, positive or negative.
type entry[V any] struct {
	value    V
	err      error // non-nil for negative entries
	cachedAt time.Time
	ttl      time.Duration
}

func (e *entry[V]) valid(now time.Time) bool {
	return now.Sub(e.cachedAt) < e.ttl
}

// pendingRequest tracks one in-flight fetch. The waiter count exists for
// observability only; resolution is shared through singleflight.
type pendingRequest struct {
	waiters int
	gen     uint64
}

// ReadThrough is a request-deduplicating, TTL-bounded cache.
type ReadThrough[V any] struct {
	ttl    time.Duration
	errTTL time.Duration
	now    func() time.Time
	logger *slog.Logger

	metrics *readThroughMetrics

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry[V]
	pending map[string]*pendingRequest
	// gen invalidates in-flight fetches: a result is stored only if the
	// key's generation is unchanged since the fetch started.
	gen map[string]uint64

	// cumulative counters, always collected
	hits    uint64
	negHits uint64
	misses  uint64
	fetches uint64
	joins   uint64
}

// NewReadThrough creates a cache with a 60s TTL and 5s negative TTL by
// default.
func NewReadThrough[V any](options ...Option[V]) (*ReadThrough[V], error) {
	opts := applyOptions(options...)

	var metrics *readThroughMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newReadThroughMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "ReadThrough", "NewReadThrough", "metrics registration")
		}
	}

	return &ReadThrough[V]{
		ttl:     opts.ttl,
		errTTL:  opts.errTTL,
		now:     opts.now,
		logger:  opts.logger,
		metrics: metrics,
		entries: make(map[string]*entry[V]),
		pending: make(map[string]*pendingRequest),
		gen:     make(map[string]uint64),
	}, nil
}

// Get returns the cached value for key, joins an in-flight fetch, or runs
// fetch and caches its result. All concurrent callers for one key share a
// single fetch invocation and its resolution. A caller whose ctx ends
// while waiting stops waiting and gets the ctx error; the shared fetch
// still completes and settles for the remaining callers.
func (c *ReadThrough[V]) Get(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	var zero V
	if key == "" {
		return zero, errors.WrapInvalid(errors.ErrInvalidKey, "ReadThrough", "Get", "validate key")
	}
	if fetch == nil {
		return zero, errors.WrapInvalid(fmt.Errorf("fetch func must not be nil"),
			"ReadThrough", "Get", "validate fetcher")
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.valid(c.now()) {
		if e.err != nil {
			c.negHits++
			err := e.err
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.negHits.Inc()
			}
			return zero, err
		}
		c.hits++
		v := e.value
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.hits.Inc()
		}
		return v, nil
	}

	c.misses++
	gen := c.gen[key]
	if p, ok := c.pending[key]; ok && p.gen == gen {
		p.waiters++
		c.joins++
		if c.metrics != nil {
			c.metrics.joins.Inc()
		}
	} else {
		c.pending[key] = &pendingRequest{waiters: 1, gen: gen}
	}
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.misses.Inc()
	}

	resCh := c.group.DoChan(key, func() (any, error) {
		// Another flight may have settled between our miss and now.
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && e.valid(c.now()) {
			c.settleLocked(key, gen)
			if e.err != nil {
				c.mu.Unlock()
				return nil, e.err
			}
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.fetches.Inc()
		}
		val, ferr := fetch(ctx)

		c.mu.Lock()
		c.fetches++
		stale := c.settleLocked(key, gen)
		if !stale {
			if ferr == nil {
				c.entries[key] = &entry[V]{value: val, cachedAt: c.now(), ttl: c.ttl}
			} else if c.errTTL > 0 {
				c.entries[key] = &entry[V]{err: ferr, cachedAt: c.now(), ttl: c.errTTL}
			}
		}
		c.mu.Unlock()

		if ferr != nil {
			c.logger.Debug("fetch failed", "key", key, "error", ferr)
			return nil, ferr
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		// Abandon the wait; the flight still settles for its other callers.
		return zero, errors.WrapTransient(ctx.Err(), "ReadThrough", "Get", "await fetch")
	case res := <-resCh:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// settleLocked removes this flight's pending bookkeeping and breaks the
// singleflight association so the next miss starts fresh. Returns true if
// the key was invalidated while the fetch was in flight, in which case the
// result must not be stored. Caller holds c.mu.
func (c *ReadThrough[V]) settleLocked(key string, gen uint64) (stale bool) {
	if p, ok := c.pending[key]; ok && p.gen == gen {
		delete(c.pending, key)
		c.group.Forget(key)
	}
	return c.gen[key] != gen
}

// InvalidateKey removes the cached entry for key. An in-flight fetch still
// resolves for its current waiters, but its result is not reused.
func (c *ReadThrough[V]) InvalidateKey(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.gen[key]++
	// Later Gets must start a fresh fetch instead of joining the doomed
	// flight; current waiters still receive its resolution.
	c.group.Forget(key)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.invalidations.Inc()
	}
}

// ClearAll removes every cached entry and forgets, without cancelling, all
// pending-request bookkeeping.
func (c *ReadThrough[V]) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[V])
	for key := range c.pending {
		c.gen[key]++
		c.group.Forget(key)
	}
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()
}

// ReadThroughStats is a point-in-time summary. ValidEntries applies TTL
// lazily: an expired entry still counts toward CacheSize until swept by a
// later write.
type ReadThroughStats struct {
	CacheSize       int
	ValidEntries    int
	PendingRequests int
	Hits            uint64
	NegativeHits    uint64
	Misses          uint64
	Fetches         uint64
	JoinedWaiters   uint64
}

// Stats returns cache statistics.
func (c *ReadThrough[V]) Stats() ReadThroughStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	valid := 0
	for _, e := range c.entries {
		if e.valid(now) {
			valid++
		}
	}
	return ReadThroughStats{
		CacheSize:       len(c.entries),
		ValidEntries:    valid,
		PendingRequests: len(c.pending),
		Hits:            c.hits,
		NegativeHits:    c.negHits,
		Misses:          c.misses,
		Fetches:         c.fetches,
		JoinedWaiters:   c.joins,
	}
}
