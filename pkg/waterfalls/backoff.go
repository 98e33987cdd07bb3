package waterfalls

import (
	"math"
	"time"
)

const (
	// DefaultBaseBackoff is the delay before the first retry.
	DefaultBaseBackoff = 256 * time.Millisecond
	// DefaultMaxRetries is the retry budget of a client built without one.
	DefaultMaxRetries = 6
)

// retryableStatusCodes are the responses treated as transient.
var retryableStatusCodes = map[int]struct{}{
	429: {}, // too many requests
	500: {}, // internal server error
	503: {}, // service unavailable
}

// IsRetryableStatus reports whether a response with status may be retried.
func IsRetryableStatus(status int) bool {
	_, ok := retryableStatusCodes[status]
	return ok
}

// Backoff decides whether a request is retried and how long to wait.
// Delays double on every attempt without jitter. Ceiling, when positive,
// caps the delay; the zero value leaves it unbounded.
type Backoff struct {
	Base    time.Duration
	Ceiling time.Duration
}

// NewBackoff returns an unbounded backoff starting at base.
func NewBackoff(base time.Duration) Backoff {
	return Backoff{Base: base}
}

// ShouldRetry reports whether attempt, counted from zero, may be followed
// by another one after a response with status.
func (b Backoff) ShouldRetry(attempt, maxRetries, status int) bool {
	return attempt < maxRetries && IsRetryableStatus(status)
}

// NextDelay returns the delay following current. Doubling saturates at
// the largest Duration instead of wrapping.
func (b Backoff) NextDelay(current time.Duration) time.Duration {
	next := time.Duration(math.MaxInt64)
	if current <= next/2 {
		next = current * 2
	}
	if b.Ceiling > 0 && next > b.Ceiling {
		return b.Ceiling
	}
	return next
}

// initialDelay returns the first delay, clamped to the ceiling.
func (b Backoff) initialDelay() time.Duration {
	if b.Ceiling > 0 && b.Base > b.Ceiling {
		return b.Ceiling
	}
	return b.Base
}
