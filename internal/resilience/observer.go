package resilience

import "time"

// Observer receives resilience notifications. Delivery is synchronous
// and in emission order per emitter; implementations must not block.
// None of the notifications are required for correctness; they feed
// the event log, metrics, and UI surfaces.
type Observer interface {
	ErrorClassified(err *ClassifiedError)
	RetryAttempted(operationID string, attempt int, delay time.Duration, err *ClassifiedError)
	BreakerStateChanged(from, to BreakerState)
	FallbackDataUsed(operationID string, strategy Strategy)
	OfflineModeActivated(operationID string)
	UserActionRequired(operationID string, action RecoveryAction)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) ErrorClassified(*ClassifiedError)                          {}
func (NopObserver) RetryAttempted(string, int, time.Duration, *ClassifiedError) {}
func (NopObserver) BreakerStateChanged(BreakerState, BreakerState)            {}
func (NopObserver) FallbackDataUsed(string, Strategy)                         {}
func (NopObserver) OfflineModeActivated(string)                               {}
func (NopObserver) UserActionRequired(string, RecoveryAction)                 {}
