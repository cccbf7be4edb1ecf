package service

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// BackoffPolicy controls how long a soft-failed event waits before becoming
// claimable again. Delay grows exponentially with the attempt number, capped
// at Max, with deterministic jitter so retries of a hot backlog spread out
// without making reschedules unreproducible.
//
// A zero Base disables backoff entirely: soft-failed events are immediately
// re-eligible on the next sweep.
type BackoffPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // fraction of the delay, in [0,1]
}

// Delay returns the wait before attempt n+1 for the event identified by key.
func (p BackoffPolicy) Delay(attempt int, key string) time.Duration {
	if p.Base <= 0 {
		return 0
	}

	factor := int64(1)
	if attempt > 0 {
		if attempt > 30 {
			// Cap the exponent to avoid overflow.
			factor = 1 << 30
		} else {
			factor = 1 << attempt
		}
	}

	delay := time.Duration(int64(p.Base) * factor)
	if delay > p.Max || delay < 0 {
		delay = p.Max
	}

	return delay + p.jitterFor(attempt, key, delay)
}

// jitterFor derives jitter from a hash of (key, attempt) instead of a PRNG,
// so the same failure always waits the same amount.
func (p BackoffPolicy) jitterFor(attempt int, key string, delay time.Duration) time.Duration {
	span := int64(float64(delay) * p.Jitter)
	if span <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", key, attempt)))
	basis := binary.BigEndian.Uint64(sum[:8])
	return time.Duration(int64(basis % uint64(span)))
}
