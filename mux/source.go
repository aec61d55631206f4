package mux

import (
	"context"
)

// Channel is the ownership handle for one physical live-update channel.
// Close is idempotent; implementations must not deliver updates or errors
// after Close returns.
type Channel interface {
	Close() error
}

// Source opens physical channels against the backing real-time store.
//
// Open must return before delivering any event: onUpdate and onError are
// invoked asynchronously, from at most one goroutine at a time per channel.
// A nil value passed to onUpdate means the resource does not exist (or was
// deleted). The ctx passed to Open is cancelled when the multiplexer is
// closed.
type Source[V any] interface {
	Open(ctx context.Context, key string, onUpdate func(*V), onError func(error)) (Channel, error)
}

// CallbackType tags a registration for payload filtering. The set is
// closed; string tags from ad-hoc call sites are not accepted.
type CallbackType int

const (
	// TypeGeneral receives every update (no filtering).
	TypeGeneral CallbackType = iota
	// TypeProgress receives updates the progress predicate accepts.
	TypeProgress
	// TypePreview receives updates the preview predicate accepts.
	TypePreview
	// TypeFeatures receives updates the features predicate accepts.
	TypeFeatures

	numCallbackTypes
)

// String returns the string representation of CallbackType
func (t CallbackType) String() string {
	switch t {
	case TypeGeneral:
		return "general"
	case TypeProgress:
		return "progress"
	case TypePreview:
		return "preview"
	case TypeFeatures:
		return "features"
	default:
		return "unknown"
	}
}

func (t CallbackType) valid() bool {
	return t >= TypeGeneral && t < numCallbackTypes
}

// FilterFunc decides whether a payload is relevant to a callback type.
// Predicates are pure functions over the payload, supplied at multiplexer
// construction. A type with no predicate passes everything.
type FilterFunc[V any] func(*V) bool
