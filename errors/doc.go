// Package errors provides standardized error handling patterns for livesub components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// This classification lets the multiplexer, the read-through cache, and the
// channel sources make informed decisions about recovery and propagation
// without hardcoded error string matching at call sites.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if !limiter.Allow(key) {
//	    return &errors.RateLimitError{Key: key, ResetAfter: limiter.TimeUntilReset(key)}
//	}
//
// Wrap errors with component context:
//
//	if err := src.Open(ctx, key, onUpdate, onError); err != nil {
//	    return errors.WrapTransient(err, "Multiplexer", "Subscribe", "channel open")
//	}
//
// Check classification for handling decisions:
//
//	if errors.IsTransient(err) {
//	    // leave the channel open, count the error
//	}
//
// All helpers integrate with the standard library: errors.Is, errors.As and
// wrapping chains work through ClassifiedError and RateLimitError.
package errors
