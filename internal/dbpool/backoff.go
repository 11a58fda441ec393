package dbpool

import (
	"math/rand"
	"time"
)

const maxBackoff = 60 * time.Second

// backoffFunc returns the sleep duration before retry attempt n (0-based).
type backoffFunc func(attempt int) time.Duration

// newExponentialBackoff returns an exponentially increasing, jittered
// backoff starting from baseDelay, capped at maxBackoff. Hand-ported
// from Icinga-icinga-go-library's backoff.NewExponentialWithJitter:
// same doubling-with-jitter shape, since that package isn't importable
// standalone without pulling in its retry.WithBackoff machinery this
// single call site doesn't need.
func newExponentialBackoff(baseDelay time.Duration) backoffFunc {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return func(attempt int) time.Duration {
		e := baseDelay << uint(attempt)
		if e <= 0 || e > maxBackoff {
			e = maxBackoff
		}
		jittered := e/2 + time.Duration(rand.Int63n(int64(e/2)+1))
		if jittered > maxBackoff {
			jittered = maxBackoff
		}
		return jittered
	}
}
