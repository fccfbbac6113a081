package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is open, no probe is due,
// and no fallback data is stored for the operation.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Operation is a unit of work the executor runs with recovery. It must
// honor ctx cancellation.
type Operation func(ctx context.Context) (any, error)

// RetryPolicy configures the executor's retry loop. RetryableKinds nil
// means "retry the transient kinds".
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Jitter         bool
	RetryableKinds []ErrorKind
}

// DefaultRetryPolicy mirrors the shipped configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// defaultActionTimeout bounds a recovery action that does not set its own.
const defaultActionTimeout = 5 * time.Second

// operationHistoryLimit caps the per-operation history ring.
const operationHistoryLimit = 100

// HistoryEntry records one attempt outcome for statistics. It is not
// authoritative state.
type HistoryEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Strategy  Strategy      `json:"strategy,omitempty"`
}

// fallbackEntry is a result kept for recovery reuse.
type fallbackEntry struct {
	data     any
	storedAt time.Time
}

// Executor is the recovery orchestrator: it runs operations through the
// circuit breaker, retries transient failures with exponential backoff,
// and executes recovery actions when retries are exhausted.
type Executor struct {
	policy      RetryPolicy
	breaker     *CircuitBreaker
	classifier  *Classifier
	observer    Observer
	fallbackTTL time.Duration

	mu       sync.Mutex
	fallback map[string]fallbackEntry
	history  map[string][]HistoryEntry

	// Test seams.
	sleep func(ctx context.Context, d time.Duration) error
	randF func() float64
	now   func() time.Time
}

// NewExecutor creates an Executor. observer may be nil; fallbackTTL <= 0
// defaults to 30 minutes.
func NewExecutor(policy RetryPolicy, breaker *CircuitBreaker, classifier *Classifier, observer Observer, fallbackTTL time.Duration) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if fallbackTTL <= 0 {
		fallbackTTL = 30 * time.Minute
	}
	return &Executor{
		policy:      policy,
		breaker:     breaker,
		classifier:  classifier,
		observer:    observer,
		fallbackTTL: fallbackTTL,
		fallback:    make(map[string]fallbackEntry),
		history:     make(map[string][]HistoryEntry),
		sleep:       sleepCtx,
		randF:       rand.Float64,
		now:         time.Now,
	}
}

// Execute runs op under the full recovery state machine and returns its
// result, recovered data, or the last classified error. operationID is
// the stable key for breaker bookkeeping, history, and fallback data.
// opCtx describes the operation for error classification.
func (e *Executor) Execute(ctx context.Context, operationID string, op Operation, actions []RecoveryAction, opCtx Context) (any, error) {
	if !e.breaker.Allow() {
		// Open breaker: skip the call entirely and serve stored data.
		if data, ok := e.FallbackData(operationID); ok {
			e.observer.FallbackDataUsed(operationID, StrategyFallback)
			return data, nil
		}
		return nil, e.classifier.Classify(
			fmt.Errorf("%w for operation %s", ErrCircuitOpen, operationID), opCtx)
	}

	result, lastErr := e.runWithRetries(ctx, operationID, op, opCtx)
	if lastErr == nil {
		e.breaker.RecordSuccess()
		e.StoreFallbackData(operationID, result)
		return result, nil
	}

	// Recovery runs before the failure reaches the breaker: a half-open
	// probe whose recovery succeeds closes the breaker without a spurious
	// reopen in between.
	if recovered, strategy, ok := e.runRecoveryActions(ctx, operationID, op, actions, lastErr); ok {
		e.breaker.RecordSuccess()
		e.observer.FallbackDataUsed(operationID, strategy)
		e.recordHistory(operationID, HistoryEntry{
			Timestamp: e.now(), Success: true, Strategy: strategy,
		})
		return recovered, nil
	}

	e.breaker.RecordFailure()

	// Last resort before propagating: unexpired fallback data.
	if data, ok := e.FallbackData(operationID); ok {
		e.observer.FallbackDataUsed(operationID, StrategyFallback)
		return data, nil
	}

	return nil, lastErr
}

// runWithRetries performs the bounded retry loop. Attempts for one
// operation id are strictly sequential.
func (e *Executor) runWithRetries(ctx context.Context, operationID string, op Operation, opCtx Context) (any, *ClassifiedError) {
	var lastErr *ClassifiedError

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		start := e.now()
		result, err := op(ctx)
		duration := e.now().Sub(start)

		if err == nil {
			e.recordHistory(operationID, HistoryEntry{
				Timestamp: start, Success: true, Duration: duration, Strategy: StrategyNone,
			})
			return result, nil
		}

		attemptCtx := opCtx
		attemptCtx.RetryCount = attempt - 1
		lastErr = e.classifier.Classify(err, attemptCtx)
		e.recordHistory(operationID, HistoryEntry{
			Timestamp: start, Success: false, Duration: duration, Strategy: StrategyRetry,
		})

		if !e.retryable(lastErr.Kind) || attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.backoffDelay(attempt)
		e.observer.RetryAttempted(operationID, attempt, delay, lastErr)
		if err := e.sleep(ctx, delay); err != nil {
			break
		}
	}

	return nil, lastErr
}

// backoffDelay computes min(base * multiplier^(attempt-1), max), scaled
// by a uniform random factor in [0.5, 1.0] when jitter is enabled.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	delay := float64(e.policy.BaseDelay) * math.Pow(e.policy.Multiplier, float64(attempt-1))
	if max := float64(e.policy.MaxDelay); e.policy.MaxDelay > 0 && delay > max {
		delay = max
	}
	if e.policy.Jitter {
		delay *= 0.5 + 0.5*e.randF()
	}
	return time.Duration(delay)
}

// retryable reports whether a kind is in the configured retryable set.
func (e *Executor) retryable(kind ErrorKind) bool {
	if e.policy.RetryableKinds == nil {
		return transientKinds[kind]
	}
	for _, k := range e.policy.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// runRecoveryActions executes the supplied actions in order, each under
// its own timeout. It returns the recovered value, the strategy that
// produced it, and whether recovery succeeded.
func (e *Executor) runRecoveryActions(ctx context.Context, operationID string, op Operation, actions []RecoveryAction, cause *ClassifiedError) (any, Strategy, bool) {
	for _, action := range actions {
		data, ok := e.runAction(ctx, operationID, action, cause)
		if !ok {
			continue
		}
		if data != nil {
			return data, action.Strategy, true
		}
		// The action succeeded without producing data (for example a
		// cleared offline signal): give the original operation one more
		// attempt and store its result for future recoveries.
		if op != nil {
			if result, err := op(ctx); err == nil {
				e.StoreFallbackData(operationID, result)
				return result, action.Strategy, true
			}
		}
	}
	return nil, StrategyNone, false
}

// runAction executes a single recovery action. The second return value
// reports whether the action succeeded; the first carries recovered
// data when the action produced any.
func (e *Executor) runAction(ctx context.Context, operationID string, action RecoveryAction, cause *ClassifiedError) (any, bool) {
	timeout := action.Timeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch action.Strategy {
	case StrategyRetry:
		if action.Execute == nil {
			return nil, false
		}
		data, err := action.Execute(actionCtx)
		return data, err == nil

	case StrategyFallback:
		if data, ok := e.FallbackData(operationID); ok {
			return data, true
		}
		if action.Execute != nil {
			if data, err := action.Execute(actionCtx); err == nil {
				return data, true
			}
		}
		return nil, false

	case StrategyCache:
		if data, ok := e.FallbackData("cache_" + operationID); ok {
			return data, true
		}
		if action.Execute != nil {
			if data, err := action.Execute(actionCtx); err == nil {
				return data, true
			}
		}
		return nil, false

	case StrategyOffline:
		e.observer.OfflineModeActivated(operationID)
		if action.Execute != nil {
			data, err := action.Execute(actionCtx)
			return data, err == nil
		}
		return nil, false

	case StrategyUserAction:
		e.observer.UserActionRequired(operationID, action)
		return nil, false

	default:
		return nil, false
	}
}

// HandleError auto-executes the recovery actions of an already
// classified error, in order, and returns the first recovered value.
// Actions with AutoExecute false are skipped.
func (e *Executor) HandleError(ctx context.Context, cerr *ClassifiedError) (any, bool) {
	if cerr == nil {
		return nil, false
	}
	operationID := cerr.Context.Operation
	for _, action := range cerr.RecoveryActions {
		if !action.AutoExecute {
			continue
		}
		if data, ok := e.runAction(ctx, operationID, action, cerr); ok {
			e.observer.FallbackDataUsed(operationID, action.Strategy)
			return data, true
		}
	}
	return nil, false
}

// StoreFallbackData keeps a successful result for future recovery use.
func (e *Executor) StoreFallbackData(operationID string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback[operationID] = fallbackEntry{data: data, storedAt: e.now()}
}

// FallbackData returns unexpired stored data for the operation id.
func (e *Executor) FallbackData(operationID string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.fallback[operationID]
	if !ok {
		return nil, false
	}
	if e.now().Sub(entry.storedAt) > e.fallbackTTL {
		delete(e.fallback, operationID)
		return nil, false
	}
	return entry.data, true
}

// recordHistory appends to the capped per-operation ring.
func (e *Executor) recordHistory(operationID string, entry HistoryEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ring := append(e.history[operationID], entry)
	if len(ring) > operationHistoryLimit {
		ring = ring[len(ring)-operationHistoryLimit:]
	}
	e.history[operationID] = ring
}

// OperationStats summarizes recorded attempts for one operation id.
type OperationStats struct {
	OperationID string           `json:"operation_id"`
	Attempts    int              `json:"attempts"`
	Successes   int              `json:"successes"`
	SuccessRate float64          `json:"success_rate"`
	LastSuccess *time.Time       `json:"last_success,omitempty"`
	ByStrategy  map[Strategy]int `json:"by_strategy"`
}

// Stats summarizes the history ring for an operation id.
func (e *Executor) Stats(operationID string) OperationStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := OperationStats{
		OperationID: operationID,
		ByStrategy:  make(map[Strategy]int),
	}
	for _, entry := range e.history[operationID] {
		stats.Attempts++
		if entry.Success {
			stats.Successes++
			t := entry.Timestamp
			stats.LastSuccess = &t
		}
		if entry.Strategy != "" {
			stats.ByStrategy[entry.Strategy]++
		}
	}
	if stats.Attempts > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.Attempts)
	}
	return stats
}

// OperationIDs returns the operation ids with recorded history.
func (e *Executor) OperationIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.history))
	for id := range e.history {
		ids = append(ids, id)
	}
	return ids
}

// BreakerState exposes the shared breaker's state for status surfaces.
func (e *Executor) BreakerState() BreakerState {
	return e.breaker.State()
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
