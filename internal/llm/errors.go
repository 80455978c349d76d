package llm

import "errors"

var (
	// ErrRateLimited marks a 429-equivalent response. Only this error class
	// arms the composer's cooldown.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrUnavailable marks any other provider failure: network errors, 5xx,
	// timeouts, malformed responses.
	ErrUnavailable = errors.New("provider unavailable")
)

// IsRateLimited reports whether err is (or wraps) a rate-limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
