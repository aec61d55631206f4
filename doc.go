// Package livesub provides a keyed live-subscription multiplexer and a
// single-flight read-through cache for systems backed by a metered
// real-time document store.
//
// # Problem
//
// The backing store charges per open channel and can raise internal
// errors on any of them. Many independent consumers each want updates for
// a resource identified by an opaque string key, and consumer lifetimes
// churn rapidly (UI mount/unmount cycles). Opening one channel per
// consumer multiplies cost and error surface; closing eagerly on the last
// unsubscribe thrashes channels during remounts.
//
// # Architecture
//
//	┌──────────────────────────────────────┐
//	│          mux.Multiplexer             │  one physical channel per key
//	│  (fan-out, filter, debounce, grace)  │  N logical registrations
//	└──────────────────────────────────────┘
//	           ↓ opens channels via
//	┌──────────────────────────────────────┐
//	│            mux.Source                │  natssource: JetStream KV
//	│    (gated by ratelimit.Limiter)      │  watchers, JSON payloads
//	└──────────────────────────────────────┘
//
//	┌──────────────────────────────────────┐
//	│         cache.ReadThrough            │  single-flight point reads
//	│   (TTL, negative cache, invalidate)  │  with TTL and stats
//	└──────────────────────────────────────┘
//
// The two components are independently usable. Both take their ambient
// concerns from the shared packages: classified errors (errors),
// Prometheus metrics (metric), backoff (pkg/retry) and YAML configuration
// (config).
//
// Consumers are expected to construct and inject instances explicitly;
// nothing in this module is a process-wide singleton.
package livesub
