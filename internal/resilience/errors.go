// Package resilience contains the error classifier and recovery
// orchestrator that let taskdeck consume the unreliable Task Master CLI
// without blocking or crashing on its failures. Raw failures are turned
// into classified errors with recommended recovery actions; operations
// run through a retry/backoff/circuit-breaker state machine that falls
// back to cached or alternate data when the tool stays down.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorKind identifies the failure category a raw error was classified into.
type ErrorKind string

const (
	KindCLINotFound         ErrorKind = "cli_not_found"
	KindCLIPermissionDenied ErrorKind = "cli_permission_denied"
	KindCLITimeout          ErrorKind = "cli_timeout"
	KindCLIParseError       ErrorKind = "cli_parse_error"
	KindCLIInvalidResponse  ErrorKind = "cli_invalid_response"
	KindCLIVersionMismatch  ErrorKind = "cli_version_mismatch"
	KindFileNotFound        ErrorKind = "file_not_found"
	KindFilePermission      ErrorKind = "file_permission_denied"
	KindFileCorrupted       ErrorKind = "file_corrupted"
	KindNetworkUnavailable  ErrorKind = "network_unavailable"
	KindNetworkTimeout      ErrorKind = "network_timeout"
	KindCacheCorrupted      ErrorKind = "cache_corrupted"
	KindResourceExhausted   ErrorKind = "system_resource_exhausted"
	KindUnknown             ErrorKind = "unknown"
)

// Severity grades how serious a classified error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strategy names the recovery approach a RecoveryAction takes.
type Strategy string

const (
	StrategyRetry      Strategy = "retry"
	StrategyFallback   Strategy = "fallback"
	StrategyCache      Strategy = "cache"
	StrategyOffline    Strategy = "offline"
	StrategyUserAction Strategy = "user_action"
	StrategyNone       Strategy = "none"
)

// RecoveryAction describes one way to recover from a classified error.
// Execute, when set, is the behavior the orchestrator invokes for this
// action; actions without behavior act as signals (offline mode, manual
// intervention).
type RecoveryAction struct {
	Strategy    Strategy
	Description string
	AutoExecute bool
	Timeout     time.Duration
	Execute     func(ctx context.Context) (any, error)
}

// Context records where and when a failure happened.
type Context struct {
	Component  string    `json:"component"`
	Operation  string    `json:"operation"`
	Timestamp  time.Time `json:"timestamp"`
	WorkingDir string    `json:"working_dir,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// ClassifiedError is the typed, contextualized form of a raw failure.
// It is created once per failure by the Classifier and never mutated.
type ClassifiedError struct {
	ID              string
	Kind            ErrorKind
	Severity        Severity
	Message         string
	Context         Context
	RecoveryActions []RecoveryAction
	UserMessage     string

	cause error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s [%s/%s]: %s", e.Kind, e.Context.Component, e.Context.Operation, e.Message)
}

// Unwrap exposes the underlying raw failure for errors.Is/As.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// CanRecover reports whether any recovery actions are available.
func (e *ClassifiedError) CanRecover() bool {
	return len(e.RecoveryActions) > 0
}

// IsTransient reports whether the kind is expected to clear on its own,
// making a plain retry worthwhile.
func (e *ClassifiedError) IsTransient() bool {
	return transientKinds[e.Kind]
}

// transientKinds are the kinds worth retrying without any other recovery.
var transientKinds = map[ErrorKind]bool{
	KindCLITimeout:         true,
	KindNetworkTimeout:     true,
	KindNetworkUnavailable: true,
	KindCacheCorrupted:     true,
}

// severityByKind is the fixed kind-to-severity table. Kinds absent from
// the table default to low.
var severityByKind = map[ErrorKind]Severity{
	KindResourceExhausted:   SeverityCritical,
	KindCLIVersionMismatch:  SeverityCritical,
	KindCLINotFound:         SeverityHigh,
	KindCLIPermissionDenied: SeverityHigh,
	KindFilePermission:      SeverityHigh,
	KindCLITimeout:          SeverityMedium,
	KindNetworkTimeout:      SeverityMedium,
	KindCLIParseError:       SeverityMedium,
	KindNetworkUnavailable:  SeverityMedium,
	KindFileNotFound:        SeverityMedium,
}

// userMessages maps every kind to a canned, non-technical message a UI
// can show directly.
var userMessages = map[ErrorKind]string{
	KindCLINotFound:         "Task Master CLI is not installed or not on PATH. The dashboard will continue using alternate data only.",
	KindCLIPermissionDenied: "Task Master CLI could not be executed due to missing permissions. Showing alternate data.",
	KindCLITimeout:          "Task Master took too long to respond. Retrying in the background.",
	KindCLIParseError:       "Task Master returned output that could not be understood. Showing the last known good data.",
	KindCLIInvalidResponse:  "Task Master returned an unexpected response. Showing the last known good data.",
	KindCLIVersionMismatch:  "The installed Task Master version is not supported. Please update it to restore live data.",
	KindFileNotFound:        "A required data file was not found. Falling back to alternate data.",
	KindFilePermission:      "A data file could not be read due to missing permissions.",
	KindFileCorrupted:       "A data file appears to be corrupted. Falling back to alternate data.",
	KindNetworkUnavailable:  "Network is unavailable. Switching to offline mode with cached data.",
	KindNetworkTimeout:      "A network operation timed out. Using cached data for now.",
	KindCacheCorrupted:      "The local cache appears to be corrupted and will be rebuilt.",
	KindResourceExhausted:   "The system is low on resources. Close other applications and try again.",
	KindUnknown:             "Something went wrong while talking to Task Master. Showing alternate data.",
}

// UserMessageFor returns the canned user-facing message for a kind.
func UserMessageFor(kind ErrorKind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[KindUnknown]
}

// newErrorID returns a unique identifier for a classified error.
func newErrorID() string {
	return uuid.NewString()
}
