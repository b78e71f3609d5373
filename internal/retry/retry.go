// Package retry wraps a single fallible operation with bounded, backed-off
// retries so callers don't need attempt-level branching.
package retry

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// BackoffStrategy controls how the delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffConstant uses the base delay for every retry.
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear multiplies the base delay by the attempt number.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential doubles the delay for each attempt.
	BackoffExponential BackoffStrategy = "exponential"
)

// Policy is an immutable retry configuration value.
type Policy struct {
	// MaxAttempts is the maximum number of attempts. 1 means try once with
	// no retry.
	MaxAttempts int
	// BaseDelay is the base delay between retries.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay before jitter is applied.
	MaxDelay time.Duration
	// Backoff selects how the delay grows between attempts.
	Backoff BackoffStrategy
	// Jitter in [0,1) adds delay*Jitter*U(0,1) on top of the computed delay.
	Jitter float64
	// RetryIf decides whether an error is transient. A nil predicate treats
	// every error as retryable.
	RetryIf func(error) bool
	// PerAttemptTimeout bounds each individual attempt. Zero disables the
	// bound, matching the engine's historical behavior of trusting the
	// agent's own timeout.
	PerAttemptTimeout time.Duration
}

// DefaultAgentPolicy is the policy the orchestrator applies to agent calls.
func DefaultAgentPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffExponential,
		Jitter:      0.1,
	}
}

// AggressivePolicy retries harder, for dependencies known to flap.
func AggressivePolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    60 * time.Second,
		Backoff:     BackoffExponential,
		Jitter:      0.2,
	}
}

// NoRetryPolicy tries exactly once. Used by tests that need deterministic
// single-shot behavior.
func NoRetryPolicy() Policy {
	return Policy{MaxAttempts: 1}
}

// ComputeDelay returns the delay to sleep after the given attempt
// (1-indexed) fails, capped at MaxDelay and then widened by jitter.
func (p Policy) ComputeDelay(attempt int) time.Duration {
	var delay time.Duration
	switch p.Backoff {
	case BackoffConstant:
		delay = p.BaseDelay
	case BackoffLinear:
		delay = p.BaseDelay * time.Duration(attempt)
	default: // exponential
		delay = p.BaseDelay << (attempt - 1)
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		delay += time.Duration(float64(delay) * p.Jitter * rand.Float64())
	}

	return delay
}

// ShouldRetry reports whether a failed attempt (1-indexed) should be
// retried. It is false once attempt >= MaxAttempts regardless of the error.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

// Result is the typed outcome of a retried operation. It always carries
// every error encountered, not just the last, so a caller can audit
// flakiness.
type Result[T any] struct {
	// Success is true if any attempt returned without error.
	Success bool
	// Value is the operation's return value when Success is true.
	Value T
	// Attempts is the number of attempts made.
	Attempts int
	// LastErr is the final error when Success is false.
	LastErr error
	// Errs holds every error encountered across attempts.
	Errs []error
}

// Do executes op under the policy. On success it returns immediately with
// the value and the errors seen so far; on a non-retryable or final failure
// it returns Success=false with the full error history. The backoff sleep
// respects ctx cancellation: a cancelled context ends the loop with the
// errors collected up to that point.
func Do[T any](ctx context.Context, policy Policy, name string, op func(context.Context) (T, error)) Result[T] {
	var zero T
	var errs []error
	var lastErr error

	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.PerAttemptTimeout)
		}

		value, err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			if attempt > 1 {
				log.Printf("[retry] %s succeeded on attempt %d/%d", name, attempt, policy.MaxAttempts)
			}
			return Result[T]{Success: true, Value: value, Attempts: attempt, Errs: errs}
		}

		lastErr = err
		errs = append(errs, err)

		if !policy.ShouldRetry(err, attempt) {
			log.Printf("[retry] %s failed on attempt %d/%d: %v. No more retries.", name, attempt, policy.MaxAttempts, err)
			break
		}

		delay := policy.ComputeDelay(attempt)
		log.Printf("[retry] %s failed on attempt %d/%d: %v. Retrying in %s...", name, attempt, policy.MaxAttempts, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result[T]{Success: false, Value: zero, Attempts: len(errs), LastErr: lastErr, Errs: errs}
		}
	}

	return Result[T]{Success: false, Value: zero, Attempts: len(errs), LastErr: lastErr, Errs: errs}
}
