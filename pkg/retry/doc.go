// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, used by
// channel sources to re-establish watchers after transient backend failures.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Persistent(): 30 attempts, 200ms-10s delay (long-lived watchers)
//
// Errors wrapped with NonRetryable stop the loop immediately; everything else
// is retried until MaxAttempts or context cancellation.
package retry
