package mux

import "sync"

// Subscription is the handle returned by Multiplexer.Subscribe. It owns
// exactly one registration.
type Subscription struct {
	id         string
	key        string
	maxRetries int
	once       sync.Once
	cancel     func()
}

// Unsubscribe removes the registration and cancels any pending debounced
// delivery. It is idempotent and safe to call from any goroutine,
// including from inside a callback.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// ID returns the unique registration id.
func (s *Subscription) ID() string {
	return s.id
}

// Key returns the resource key this subscription is attached to.
func (s *Subscription) Key() string {
	return s.key
}

// MaxRetries returns the advisory retry budget supplied at subscribe time.
// The multiplexer itself never retries; callers act on this value.
func (s *Subscription) MaxRetries() int {
	return s.maxRetries
}
