// Package natssource implements mux.Source on top of NATS JetStream KV
// watchers: one watcher per key, JSON values, delete and purge operations
// surfaced as not-found. A watcher whose update stream dies is rebuilt
// with exponential backoff before the failure is reported upstream.
package natssource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/livesub/errors"
	"github.com/c360/livesub/mux"
	"github.com/c360/livesub/pkg/retry"
)

// Source opens one KV watcher per key against a single bucket.
type Source[V any] struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
	retry  retry.Config
}

var _ mux.Source[json.RawMessage] = (*Source[json.RawMessage])(nil)

// Option configures a Source.
type Option[V any] func(*Source[V])

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(s *Source[V]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetry overrides the reconnect backoff configuration.
func WithRetry[V any](cfg retry.Config) Option[V] {
	return func(s *Source[V]) {
		s.retry = cfg
	}
}

// New creates a Source over bucket. Values are decoded from JSON into V.
func New[V any](bucket jetstream.KeyValue, options ...Option[V]) *Source[V] {
	s := &Source[V]{
		bucket: bucket,
		logger: slog.Default(),
		retry:  retry.Persistent(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open starts a watcher for key. Events are delivered from a dedicated
// goroutine; nothing is delivered after Close returns.
func (s *Source[V]) Open(ctx context.Context, key string, onUpdate func(*V), onError func(error)) (mux.Channel, error) {
	watcher, err := s.bucket.Watch(ctx, key)
	if err != nil {
		return nil, errors.WrapTransient(err, "Source", "Open", "kv watch")
	}

	chanCtx, cancel := context.WithCancel(ctx)
	ch := &channel[V]{
		src:      s,
		key:      key,
		watcher:  watcher,
		onUpdate: onUpdate,
		onError:  onError,
		ctx:      chanCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go ch.run()
	return ch, nil
}

// channel is the ownership handle for one key's watcher.
type channel[V any] struct {
	src      *Source[V]
	key      string
	onUpdate func(*V)
	onError  func(error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once

	// mu gates delivery against Close (once closed is set no callback
	// fires) and guards watcher, which rewatch replaces while Close may
	// be snapshotting it from another goroutine.
	mu      sync.Mutex
	closed  bool
	watcher jetstream.KeyWatcher
}

// Close stops the watcher. Idempotent; no onUpdate or onError fires after
// it returns.
func (c *channel[V]) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		watcher := c.watcher
		c.mu.Unlock()

		c.cancel()
		if err := watcher.Stop(); err != nil {
			c.src.logger.Debug("watcher stop failed", "key", c.key, "error", err)
		}
		<-c.done
	})
	return nil
}

func (c *channel[V]) deliver(v *V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.onUpdate(v)
}

func (c *channel[V]) reportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.onError(err)
}

func (c *channel[V]) run() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			c.src.logger.Error("kv watcher panic recovered", "key", c.key, "panic", r)
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case entry, ok := <-c.watcher.Updates():
			if !ok {
				if !c.rewatch() {
					return
				}
				continue
			}
			if entry == nil {
				// End-of-history marker on a fresh watcher.
				continue
			}
			c.processEntry(entry)
		}
	}
}

func (c *channel[V]) processEntry(entry jetstream.KeyValueEntry) {
	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		c.deliver(nil)
	case jetstream.KeyValuePut:
		var v V
		if err := json.Unmarshal(entry.Value(), &v); err != nil {
			c.reportError(errors.WrapInvalid(err, "Source", "processEntry", "decode kv value"))
			return
		}
		c.deliver(&v)
	default:
		c.src.logger.Warn("unknown kv operation", "key", entry.Key(), "op", entry.Operation())
	}
}

// rewatch rebuilds the watcher after its update stream closed. Returns
// false when giving up, after reporting the failure upstream.
func (c *channel[V]) rewatch() bool {
	c.src.logger.Debug("kv watcher stream closed, rebuilding", "key", c.key)

	watcher, err := retry.DoWithResult(c.ctx, c.src.retry, func() (jetstream.KeyWatcher, error) {
		return c.src.bucket.Watch(c.ctx, c.key)
	})
	if err != nil {
		if c.ctx.Err() == nil {
			c.reportError(errors.WrapTransient(
				fmt.Errorf("%w: %w", errors.ErrChannelClosed, err),
				"Source", "rewatch", "rebuild kv watcher"))
		}
		return false
	}

	c.mu.Lock()
	if c.closed {
		// Close already stopped the old watcher; this one is ours to stop.
		c.mu.Unlock()
		_ = watcher.Stop()
		return false
	}
	c.watcher = watcher
	c.mu.Unlock()
	return true
}
