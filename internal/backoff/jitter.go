package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// JitterType selects how a computed interval is randomized before use.
type JitterType int

const (
	// NoJitter returns the interval unchanged.
	NoJitter JitterType = iota
	// FullJitter returns a random interval in [0, interval].
	FullJitter
	// Jitter returns a random interval in [interval/2, interval*1.5].
	Jitter
)

// JitterFunc transforms a computed backoff interval. Implementations
// returned by NewJitterFunc are safe for concurrent use.
type JitterFunc func(interval time.Duration) time.Duration

// NewJitterFunc returns a JitterFunc for the given JitterType.
// Non-positive intervals always map to zero.
func NewJitterFunc(jitterType JitterType) JitterFunc {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	random := func(n int64) int64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Int63n(n)
	}

	return func(interval time.Duration) time.Duration {
		if interval <= 0 {
			return 0
		}
		switch jitterType {
		case FullJitter:
			return time.Duration(random(int64(interval) + 1))
		case Jitter:
			half := int64(interval) / 2
			return time.Duration(half + random(int64(interval)+1))
		default:
			return interval
		}
	}
}

// WithJitter wraps policy so every computed interval passes through the
// given jitter before being returned. Errors from the underlying policy
// (including ErrRetriesExhausted) propagate unchanged.
func WithJitter(policy RetryPolicy, jitterType JitterType) RetryPolicy {
	return &jitteredPolicy{policy: policy, jitter: NewJitterFunc(jitterType)}
}

type jitteredPolicy struct {
	policy RetryPolicy
	jitter JitterFunc
}

func (p *jitteredPolicy) ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error) {
	interval, computeErr := p.policy.ComputeNextInterval(retryCount, elapsedTime, err)
	if computeErr != nil {
		return 0, computeErr
	}
	return p.jitter(interval), nil
}
