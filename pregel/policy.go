package pregel

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"
)

// NodePolicy configures the execution behavior of a single node: per-task
// timeout and retry strategy. A nil *NodePolicy on a node means "use the
// loop's defaults".
type NodePolicy struct {
	Timeout     time.Duration
	RetryPolicy *RetryPolicy
}

// RetryPolicy configures automatic retries of a failed task with
// exponential backoff and jitter, to avoid a thundering herd of retries
// when a downstream dependency degrades.
type RetryPolicy struct {
	// MaxAttempts includes the initial attempt; 1 means no retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error warrants another attempt. Nil
	// treats every error as non-retryable.
	Retryable func(error) bool
}

// Validate reports whether the policy's bounds are internally consistent.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return &Error{Code: CodeInvalidUpdate, Message: "retry policy MaxAttempts must be >= 1"}
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return &Error{Code: CodeInvalidUpdate, Message: "retry policy MaxDelay must be >= BaseDelay"}
	}
	return nil
}

// computeBackoff returns the delay before retry attempt N (0-based: 0 is
// the first retry after the initial attempt): base*2^attempt, capped at
// maxDelay, plus jitter in [0, base) to decorrelate concurrent retries.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	if base <= 0 {
		return delay
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	}
	return delay + jitter
}

// seedRNG derives a deterministic random source from the thread id so
// retry jitter (and any other run-scoped randomness) is reproducible
// across a replayed run, the same way the loop's task IDs are deterministic
// from step+node+triggers.
func seedRNG(threadID string) *rand.Rand {
	h := sha256.New()
	h.Write([]byte(threadID))
	sum := h.Sum(nil)
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(seed))
}
