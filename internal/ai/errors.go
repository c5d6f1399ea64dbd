package ai

import "errors"

// Common errors returned by provider adapters. Transient errors are safe to
// retry; the rest indicate the request itself cannot succeed.
var (
	// ErrRateLimited is returned when a provider rejects the request due to
	// rate limiting. Retryable.
	ErrRateLimited = errors.New("provider rate limited the request")

	// ErrUnavailable is returned for provider-side outages and transport
	// failures. Retryable.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrContentBlocked is returned when the provider refuses the content
	// (safety filters). Not retryable.
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrInvalidResponse is returned when the provider response cannot be
	// parsed into the expected shape. Not retryable.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrInvalidConfig is returned when a provider adapter is constructed
	// with unusable configuration.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)

// IsTransient reports whether err represents a failure that may resolve on
// retry. Unknown errors are treated as transient so that flaky transports do
// not permanently fail jobs.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, ErrContentBlocked), errors.Is(err, ErrInvalidResponse),
		errors.Is(err, ErrInvalidConfig):
		return false
	default:
		return true
	}
}
