// Package retry decides whether and when a dropped connection is retried.
//
// Policies are pure: the caller owns the attempt counter and passes it in.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Defaults for a connect cycle.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 1 * time.Second
)

// Context is the retry state of one connect cycle.
type Context struct {
	Attempt     int           // Reconnect attempts already made
	MaxAttempts int           // Ceiling; no retry once Attempt reaches it
	BaseDelay   time.Duration // Delay unit the policy scales
}

// NewContext returns a zero-attempt context, applying defaults to unset fields.
func NewContext(maxAttempts int, baseDelay time.Duration) Context {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return Context{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Exhausted reports whether the attempt ceiling has been reached.
func (c Context) Exhausted() bool {
	return c.Attempt >= c.MaxAttempts
}

// Decision is a policy verdict.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy maps a retry context to a decision.
type Policy interface {
	Decide(c Context) Decision
}

// Linear waits BaseDelay * (Attempt+1): one unit before the first retry, two
// before the second, and so on. A positive MaxDelay caps the wait.
type Linear struct {
	MaxDelay time.Duration
}

// Decide implements Policy.
func (l Linear) Decide(c Context) Decision {
	if c.Exhausted() {
		return Decision{}
	}

	delay := c.BaseDelay * time.Duration(c.Attempt+1)
	if l.MaxDelay > 0 && delay > l.MaxDelay {
		delay = l.MaxDelay
	}
	return Decision{Retry: true, Delay: delay}
}

// Exponential waits BaseDelay * Factor^Attempt capped at MaxDelay, plus up to
// Jitter of extra wait. Jitter is clamped to Factor-1 and the result to
// MaxDelay, so delays never decrease as Attempt grows.
type Exponential struct {
	MaxDelay time.Duration
	Factor   float64
	Jitter   float64

	// Rand returns a value in [0, 1). Nil uses math/rand.
	Rand func() float64
}

// DefaultExponential returns a 60s-capped doubling backoff with 20% jitter.
func DefaultExponential() Exponential {
	return Exponential{
		MaxDelay: 60 * time.Second,
		Factor:   2.0,
		Jitter:   0.2,
	}
}

// Decide implements Policy.
func (e Exponential) Decide(c Context) Decision {
	if c.Exhausted() {
		return Decision{}
	}

	factor := e.Factor
	if factor <= 1 {
		factor = 2.0
	}
	maxDelay := e.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}

	wait := float64(c.BaseDelay) * math.Pow(factor, float64(c.Attempt))
	if wait > float64(maxDelay) {
		wait = float64(maxDelay)
	}

	jitter := e.Jitter
	if jitter > factor-1 {
		jitter = factor - 1
	}
	if jitter > 0 {
		rnd := e.Rand
		if rnd == nil {
			rnd = rand.Float64
		}
		wait += wait * jitter * rnd()
		if wait > float64(maxDelay) {
			wait = float64(maxDelay)
		}
	}

	return Decision{Retry: true, Delay: time.Duration(wait)}
}
