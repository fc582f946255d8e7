package retry

import "time"

type Kind string

const KindExponential Kind = "exponential"

type Backoff struct {
	Kind      Kind
	BaseDelay time.Duration
}

// Policy is the explicit retry contract applied by the worker pool: a bounded
// attempt count and a backoff strategy, instead of a magic option string.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
}

func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Backoff{Kind: KindExponential, BaseDelay: 5 * time.Second},
	}
}

// Delay returns the pause before the next attempt, given how many attempts
// have already run. Exponential backoff doubles per attempt: base, 2*base,
// 4*base, ...
func (p Policy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.Backoff.BaseDelay
	if p.Backoff.Kind == KindExponential {
		for i := 1; i < attempts; i++ {
			d *= 2
		}
	}
	return d
}

// Exhausted reports whether the attempt budget is spent.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
