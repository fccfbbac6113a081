package resilience

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Property 5: Backoff Without Jitter Is Exponential And Capped
// =============================================================================

// Feature: resilience, Property 5: Backoff Without Jitter Is Exponential And Capped
// *For any* retry policy without jitter, the delay before attempt n+1
// SHALL equal min(base * multiplier^(n-1), max).
//
// **Validates: exponential backoff formula**
func TestProperty5_BackoffIsExponentialAndCapped(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := time.Duration(rapid.Int64Range(int64(10*time.Millisecond), int64(5*time.Second)).Draw(rt, "base"))
		maxDelay := time.Duration(rapid.Int64Range(int64(base), int64(60*time.Second)).Draw(rt, "maxDelay"))
		multiplier := rapid.Float64Range(1.0, 4.0).Draw(rt, "multiplier")
		attempt := rapid.IntRange(1, 10).Draw(rt, "attempt")

		e := NewExecutor(RetryPolicy{
			MaxAttempts: 10,
			BaseDelay:   base,
			MaxDelay:    maxDelay,
			Multiplier:  multiplier,
			Jitter:      false,
		}, NewCircuitBreaker(5, time.Minute, nil), NewClassifier(3, nil), nil, 0)

		got := e.backoffDelay(attempt)

		want := float64(base) * math.Pow(multiplier, float64(attempt-1))
		if want > float64(maxDelay) {
			want = float64(maxDelay)
		}
		if got != time.Duration(want) {
			rt.Errorf("backoffDelay(%d) = %s, want %s", attempt, got, time.Duration(want))
		}
	})
}

// =============================================================================
// Property 6: Jittered Backoff Stays Within Half To Full Delay
// =============================================================================

// Feature: resilience, Property 6: Jittered Backoff Stays Within Half To Full Delay
// *For any* retry policy with jitter and any random draw, the delay
// SHALL stay within [0.5, 1.0] times the un-jittered delay.
//
// **Validates: jitter bounds**
func TestProperty6_JitterBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := time.Duration(rapid.Int64Range(int64(10*time.Millisecond), int64(5*time.Second)).Draw(rt, "base"))
		attempt := rapid.IntRange(1, 6).Draw(rt, "attempt")
		random := rapid.Float64Range(0, 1).Draw(rt, "random")

		e := NewExecutor(RetryPolicy{
			MaxAttempts: 6,
			BaseDelay:   base,
			MaxDelay:    time.Minute,
			Multiplier:  2.0,
			Jitter:      true,
		}, NewCircuitBreaker(5, time.Minute, nil), NewClassifier(3, nil), nil, 0)
		e.randF = func() float64 { return random }

		full := float64(base) * math.Pow(2.0, float64(attempt-1))
		if full > float64(time.Minute) {
			full = float64(time.Minute)
		}

		got := float64(e.backoffDelay(attempt))
		if got < 0.5*full-1 || got > full+1 {
			rt.Errorf("backoffDelay(%d) = %s outside [%s, %s]",
				attempt, time.Duration(got), time.Duration(0.5*full), time.Duration(full))
		}
	})
}

// =============================================================================
// Property 7: Attempt Count Never Exceeds The Policy Budget
// =============================================================================

// Feature: resilience, Property 7: Attempt Count Never Exceeds The Policy Budget
// *For any* max attempt budget and any always-failing transient
// operation, Execute SHALL invoke the operation exactly MaxAttempts
// times.
//
// **Validates: bounded retry loop**
func TestProperty7_AttemptBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxAttempts := rapid.IntRange(1, 8).Draw(rt, "maxAttempts")

		e := NewExecutor(RetryPolicy{
			MaxAttempts: maxAttempts,
			BaseDelay:   time.Second,
			Multiplier:  2.0,
		}, NewCircuitBreaker(1000, time.Minute, nil), NewClassifier(maxAttempts, nil), nil, 0)
		e.sleep = func(ctx context.Context, d time.Duration) error { return nil }

		attempts := 0
		_, err := e.Execute(context.Background(), "get_tasks", func(ctx context.Context) (any, error) {
			attempts++
			return nil, errors.New("task-master timed out")
		}, nil, Context{Operation: "get_tasks"})

		if err == nil {
			rt.Fatal("Execute() succeeded, want error")
		}
		if attempts != maxAttempts {
			rt.Errorf("attempts = %d, want %d", attempts, maxAttempts)
		}
	})
}
