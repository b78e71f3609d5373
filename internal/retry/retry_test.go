package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestComputeDelayConstant(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Backoff: BackoffConstant}
	for attempt := 1; attempt <= 4; attempt++ {
		if got := p.ComputeDelay(attempt); got != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %s", attempt, got)
		}
	}
}

func TestComputeDelayLinear(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Backoff: BackoffLinear}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := p.ComputeDelay(i + 1); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestComputeDelayExponential(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Backoff: BackoffExponential}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.ComputeDelay(i + 1); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestComputeDelayCappedAtMax(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second, Backoff: BackoffExponential}
	if got := p.ComputeDelay(8); got != 5*time.Second {
		t.Errorf("expected cap at 5s, got %s", got)
	}
}

func TestComputeDelayMonotonic(t *testing.T) {
	for _, strategy := range []BackoffStrategy{BackoffLinear, BackoffExponential} {
		p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Backoff: strategy}
		prev := time.Duration(0)
		for attempt := 1; attempt <= 6; attempt++ {
			got := p.ComputeDelay(attempt)
			if got < prev {
				t.Errorf("%s: delay decreased from %s to %s at attempt %d", strategy, prev, got, attempt)
			}
			prev = got
		}
	}
}

func TestComputeDelayJitterBounds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Backoff: BackoffConstant, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		got := p.ComputeDelay(1)
		if got < time.Second || got > 1500*time.Millisecond {
			t.Fatalf("jittered delay %s outside [1s, 1.5s]", got)
		}
	}
}

func TestShouldRetryExhaustedAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	if p.ShouldRetry(errors.New("anything"), 3) {
		t.Error("expected no retry once attempt >= max attempts")
	}
	if !p.ShouldRetry(errors.New("anything"), 2) {
		t.Error("expected retry below max attempts")
	}
}

func TestShouldRetryPredicate(t *testing.T) {
	permanent := errors.New("permanent")
	p := Policy{MaxAttempts: 5, RetryIf: func(err error) bool { return !errors.Is(err, permanent) }}

	if p.ShouldRetry(permanent, 1) {
		t.Error("expected non-retryable error to abort")
	}
	if !p.ShouldRetry(errors.New("transient"), 1) {
		t.Error("expected retryable error to retry")
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	failures := 2
	calls := 0
	op := func(ctx context.Context) (string, error) {
		calls++
		if calls <= failures {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}

	policy := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Backoff: BackoffConstant}
	result := Do(context.Background(), policy, "op", op)

	if !result.Success {
		t.Fatalf("expected success, got failure: %v", result.LastErr)
	}
	if result.Value != "ok" {
		t.Errorf("expected value %q, got %q", "ok", result.Value)
	}
	if result.Attempts != failures+1 {
		t.Errorf("expected %d attempts, got %d", failures+1, result.Attempts)
	}
	if len(result.Errs) != failures {
		t.Errorf("expected %d recorded errors, got %d", failures, len(result.Errs))
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	op := func(ctx context.Context) (int, error) { return 0, boom }

	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Backoff: BackoffConstant}
	result := Do(context.Background(), policy, "op", op)

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if !errors.Is(result.LastErr, boom) {
		t.Errorf("expected last error %v, got %v", boom, result.LastErr)
	}
	if len(result.Errs) != 3 {
		t.Errorf("expected 3 recorded errors, got %d", len(result.Errs))
	}
}

func TestDoNoRetryPolicy(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}

	result := Do(context.Background(), NoRetryPolicy(), "op", op)
	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	}

	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Backoff:     BackoffConstant,
		RetryIf:     func(err error) bool { return !errors.Is(err, permanent) },
	}
	result := Do(context.Background(), policy, "op", op)

	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := func(ctx context.Context) (int, error) {
		cancel()
		return 0, errors.New("boom")
	}

	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour, Backoff: BackoffConstant}
	done := make(chan Result[int], 1)
	go func() { done <- Do(ctx, policy, "op", op) }()

	select {
	case result := <-done:
		if result.Success {
			t.Fatal("expected failure after cancellation")
		}
		if result.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", result.Attempts)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
