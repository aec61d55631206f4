// Package mux provides a keyed live-subscription multiplexer.
//
// # Overview
//
// The backing real-time store charges per open channel and many
// independent consumers want updates for the same resource key. The
// Multiplexer guarantees at most one physical channel per key, fans
// updates out to every registration, and defers physical teardown by a
// grace window after the last unsubscribe so rapid unmount/remount cycles
// never churn channels.
//
// Each registration carries its own delivery policy:
//
//   - a CallbackType whose predicate (supplied via WithTypeFilter) decides
//     which payloads are relevant; filtered-out updates never touch the
//     registration's debounce timer
//   - an optional debounce window; bursts collapse to one delivery
//     carrying the last payload of the window
//   - an error policy: WithErrorRecovery turns physical channel errors
//     into nil deliveries, otherwise errors go to the registration's
//     error handler
//
// # Usage
//
//	m, err := mux.New[Document](source,
//	    mux.WithGracePeriod[Document](30*time.Second),
//	    mux.WithRateLimiter[Document](limiter),
//	)
//	if err != nil { ... }
//	defer m.Close()
//
//	sub, err := m.Subscribe("doc-42", func(d *Document) {
//	    // d == nil means not-found (or a recovered channel error)
//	}, mux.WithDebounce(100*time.Millisecond))
//	if err != nil { ... }
//	defer sub.Unsubscribe()
//
// # Delivery guarantees
//
// For a single key, updates reach a registration in arrival order;
// debouncing may drop intermediate payloads but never reorders. A
// registration created while an update is being dispatched receives that
// update at most once, plus exactly one synchronous replay of the latest
// snapshot if one was already known. Subscriber callbacks that panic are
// contained and logged; they never break dispatch for other registrations
// or keys.
//
// Callbacks must not block and must not call Subscribe for the same key
// from inside a callback; Unsubscribe from inside a callback is fine.
package mux
