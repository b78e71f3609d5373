// Package breaker implements a per-dependency circuit breaker. A breaker
// protects a named external dependency from being hammered once it is
// observably unhealthy, independent of any single caller's retry policy.
package breaker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// State is the circuit's position in its finite state machine.
type State string

const (
	// StateClosed means normal operation: calls pass through.
	StateClosed State = "closed"
	// StateOpen means the dependency is unhealthy: calls are rejected.
	StateOpen State = "open"
	// StateHalfOpen means probe mode: calls pass through while the breaker
	// decides whether the dependency recovered.
	StateHalfOpen State = "half_open"
)

// Config controls when a breaker opens and closes.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit from closed.
	FailureThreshold int
	// SuccessThreshold is the consecutive-success count in half-open that
	// closes the circuit.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
	// IsExcluded marks error types that never count as failures.
	IsExcluded func(error) bool
}

// DefaultConfig mirrors the engine's stock breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// Stats tracks breaker observability counters.
type Stats struct {
	TotalCalls           int64      `json:"total_calls"`
	SuccessfulCalls      int64      `json:"successful_calls"`
	FailedCalls          int64      `json:"failed_calls"`
	RejectedCalls        int64      `json:"rejected_calls"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	LastFailureTime      *time.Time `json:"last_failure_time,omitempty"`
	LastSuccessTime      *time.Time `json:"last_success_time,omitempty"`
}

// OpenError is returned when a call is rejected because the circuit is
// open. It carries the remaining cooldown so callers can fail fast without
// consuming a retry budget.
type OpenError struct {
	// Name is the breaker's dependency name.
	Name string
	// Remaining is the cooldown left before a probe will be allowed.
	Remaining time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry in %.1fs", e.Name, e.Remaining.Seconds())
}

// Breaker guards one named dependency. All state transitions happen under a
// single lock; callers referencing the same dependency name through a
// Registry share one instance.
type Breaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	state    State
	stats    Stats
	openedAt time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a closed breaker for the named dependency.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Name returns the breaker's dependency name.
func (b *Breaker) Name() string { return b.name }

// State returns the current circuit state, applying the lazy open→half-open
// transition if the cooldown elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Do executes op through the breaker. If the circuit is open and the
// cooldown has not elapsed, op is not invoked and an *OpenError is
// returned; the rejection is counted separately from failures.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	b.mu.Lock()
	b.maybeHalfOpenLocked()
	if b.state == StateOpen {
		b.stats.RejectedCalls++
		remaining := b.cfg.Timeout - b.now().Sub(b.openedAt)
		if remaining < 0 {
			remaining = 0
		}
		b.mu.Unlock()
		return &OpenError{Name: b.name, Remaining: remaining}
	}
	b.stats.TotalCalls++
	b.mu.Unlock()

	err := op(ctx)
	if err != nil {
		if b.cfg.IsExcluded == nil || !b.cfg.IsExcluded(err) {
			b.onFailure()
		}
		return err
	}

	b.onSuccess()
	return nil
}

// Reset forces the breaker back to closed with statistics zeroed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.openedAt = time.Time{}
	b.stats = Stats{}
	log.Printf("[breaker] %s reset", b.name)
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.stats.SuccessfulCalls++
	b.stats.ConsecutiveSuccesses++
	b.stats.ConsecutiveFailures = 0
	b.stats.LastSuccessTime = &now

	if b.state == StateHalfOpen && b.stats.ConsecutiveSuccesses >= b.cfg.SuccessThreshold {
		b.closeLocked()
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.stats.FailedCalls++
	b.stats.ConsecutiveFailures++
	b.stats.ConsecutiveSuccesses = 0
	b.stats.LastFailureTime = &now

	switch b.state {
	case StateHalfOpen:
		// A single probe failure re-opens the circuit and restarts the clock.
		b.openLocked()
	case StateClosed:
		if b.stats.ConsecutiveFailures >= b.cfg.FailureThreshold {
			b.openLocked()
		}
	}
}

// maybeHalfOpenLocked performs the lazy open→half-open transition. There is
// no background timer; the check runs on the next call attempt.
func (b *Breaker) maybeHalfOpenLocked() {
	if b.state != StateOpen || b.openedAt.IsZero() {
		return
	}
	if b.now().Sub(b.openedAt) >= b.cfg.Timeout {
		b.state = StateHalfOpen
		b.stats.ConsecutiveSuccesses = 0
		b.stats.ConsecutiveFailures = 0
		log.Printf("[breaker] %s half-opened for probing", b.name)
	}
}

func (b *Breaker) openLocked() {
	previous := b.state
	b.state = StateOpen
	b.openedAt = b.now()
	b.stats.ConsecutiveSuccesses = 0
	log.Printf("[breaker] %s opened (was %s, consecutive failures: %d)", b.name, previous, b.stats.ConsecutiveFailures)
}

func (b *Breaker) closeLocked() {
	b.state = StateClosed
	b.openedAt = time.Time{}
	b.stats.ConsecutiveFailures = 0
	log.Printf("[breaker] %s closed (dependency recovered)", b.name)
}
