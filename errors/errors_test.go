package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid data", ErrInvalidData, false},
		{"resource exhausted", ErrResourceExhausted, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"unavailable in message", fmt.Errorf("backend temporarily unavailable"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"resource exhausted", ErrResourceExhausted, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid key", ErrInvalidKey, true},
		{"invalid data", ErrInvalidData, true},
		{"rate limited", ErrRateLimited, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil error", nil, ErrorTransient},
		{"transient error", ErrConnectionLost, ErrorTransient},
		{"fatal error", ErrInvalidConfig, ErrorFatal},
		{"invalid error", ErrInvalidKey, ErrorInvalid},
		{"unknown error defaults transient", errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	wrapped := WrapTransient(base, "Multiplexer", "Subscribe", "channel open")
	if !IsTransient(wrapped) {
		t.Error("expected transient classification")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected wrapped error to match base via errors.Is")
	}
	if !strings.Contains(wrapped.Error(), "Multiplexer.Subscribe") {
		t.Errorf("expected component.method prefix, got %q", wrapped.Error())
	}

	if WrapTransient(nil, "c", "m", "a") != nil {
		t.Error("wrapping nil must return nil")
	}
	if WrapFatal(nil, "c", "m", "a") != nil {
		t.Error("wrapping nil must return nil")
	}
	if WrapInvalid(nil, "c", "m", "a") != nil {
		t.Error("wrapping nil must return nil")
	}

	fatal := WrapFatal(base, "ReadThrough", "Get", "fetch")
	if !IsFatal(fatal) {
		t.Error("expected fatal classification")
	}

	invalid := WrapInvalid(base, "Multiplexer", "Subscribe", "validate key")
	if !IsInvalid(invalid) {
		t.Error("expected invalid classification")
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Key: "doc-42", ResetAfter: 250 * time.Millisecond}

	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimitError must match ErrRateLimited")
	}
	if !IsTransient(err) {
		t.Error("rate limit rejections are transient")
	}

	after, ok := RetryAfter(err)
	if !ok || after != 250*time.Millisecond {
		t.Errorf("expected RetryAfter to surface 250ms, got %v %v", after, ok)
	}

	if _, ok := RetryAfter(errors.New("plain")); ok {
		t.Error("plain errors carry no retry-after")
	}

	wrapped := WrapTransient(err, "Multiplexer", "Subscribe", "rate limit check")
	after, ok = RetryAfter(wrapped)
	if !ok || after != 250*time.Millisecond {
		t.Error("RetryAfter must see through wrapping")
	}
}
