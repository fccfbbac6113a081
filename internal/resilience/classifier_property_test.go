package resilience

import (
	"testing"

	"pgregory.net/rapid"
)

// =============================================================================
// Property 1: Classification Is Deterministic
// =============================================================================

// Feature: resilience, Property 1: Classification Is Deterministic
// *For any* failure message and retry count, classifying the same inputs
// twice SHALL yield the same kind and severity.
//
// **Validates: classification is a pure function of message and context**
func TestProperty1_ClassificationIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := NewClassifier(3, nil)

		msg := rapid.SampledFrom([]string{
			"spawn task-master ENOENT",
			"task-master timed out after 30s",
			"connection refused by registry",
			"open tasks.json: no such file or directory",
			"parsing task list: unexpected token",
			"cache corrupted: checksum mismatch",
			"permission denied",
			"out of memory",
			"garbage message with no keywords",
		}).Draw(rt, "msg")
		retryCount := rapid.IntRange(0, 5).Draw(rt, "retryCount")

		ctx := Context{Component: "taskmaster", Operation: "get_tasks", RetryCount: retryCount}
		first := c.ClassifyMessage(msg, ctx)
		second := c.ClassifyMessage(msg, ctx)

		if first.Kind != second.Kind {
			rt.Errorf("kind differs between runs: %s vs %s", first.Kind, second.Kind)
		}
		if first.Severity != second.Severity {
			rt.Errorf("severity differs between runs: %s vs %s", first.Severity, second.Severity)
		}
	})
}

// =============================================================================
// Property 2: CanRecover Matches Recovery Actions
// =============================================================================

// Feature: resilience, Property 2: CanRecover Matches Recovery Actions
// *For any* classified error, CanRecover SHALL be true if and only if
// the recovery action list is non-empty.
//
// **Validates: recoverability invariant**
func TestProperty2_CanRecoverMatchesActions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := NewClassifier(3, nil)

		msg := rapid.String().Draw(rt, "msg")
		retryCount := rapid.IntRange(0, 5).Draw(rt, "retryCount")

		cerr := c.ClassifyMessage(msg, Context{RetryCount: retryCount})
		if cerr.CanRecover() != (len(cerr.RecoveryActions) > 0) {
			rt.Errorf("CanRecover() = %v with %d actions", cerr.CanRecover(), len(cerr.RecoveryActions))
		}
	})
}

// =============================================================================
// Property 3: Severity Escalates With Retries
// =============================================================================

// Feature: resilience, Property 3: Severity Escalates With Retries
// *For any* failure message, a retry count above 2 SHALL classify with
// severity HIGH regardless of the kind's table severity.
//
// **Validates: retry-driven severity escalation**
func TestProperty3_SeverityEscalatesWithRetries(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := NewClassifier(10, nil)

		msg := rapid.String().Draw(rt, "msg")
		retryCount := rapid.IntRange(3, 10).Draw(rt, "retryCount")

		cerr := c.ClassifyMessage(msg, Context{RetryCount: retryCount})
		if cerr.Severity != SeverityHigh {
			rt.Errorf("Severity = %s at retryCount %d, want %s", cerr.Severity, retryCount, SeverityHigh)
		}
	})
}

// =============================================================================
// Property 4: Transient Kinds Offer Retry Within Budget
// =============================================================================

// Feature: resilience, Property 4: Transient Kinds Offer Retry Within Budget
// *For any* transient failure with retryCount below maxRetries, the first
// recovery action SHALL be a retry; at or above maxRetries no retry
// action SHALL appear.
//
// **Validates: retry action gating by the retry budget**
func TestProperty4_TransientRetryGating(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxRetries := rapid.IntRange(1, 5).Draw(rt, "maxRetries")
		c := NewClassifier(maxRetries, nil)

		msg := rapid.SampledFrom([]string{
			"task-master timed out",
			"connection to registry timed out",
			"network unreachable",
			"cache corrupted: invalid entry",
		}).Draw(rt, "msg")
		retryCount := rapid.IntRange(0, 10).Draw(rt, "retryCount")

		cerr := c.ClassifyMessage(msg, Context{RetryCount: retryCount})
		if !cerr.IsTransient() {
			rt.Fatalf("expected transient kind for %q, got %s", msg, cerr.Kind)
		}

		hasRetry := false
		for _, action := range cerr.RecoveryActions {
			if action.Strategy == StrategyRetry {
				hasRetry = true
			}
		}

		if retryCount < maxRetries {
			if !hasRetry {
				rt.Errorf("no retry action at retryCount %d < maxRetries %d", retryCount, maxRetries)
			}
			if cerr.RecoveryActions[0].Strategy != StrategyRetry {
				rt.Errorf("retry action not first at retryCount %d", retryCount)
			}
		} else if hasRetry {
			rt.Errorf("retry action offered at retryCount %d >= maxRetries %d", retryCount, maxRetries)
		}
	})
}
