package resilience

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// historyLimit caps the classifier's error history for pattern analysis.
const historyLimit = 100

// Classifier turns raw failures into ClassifiedErrors. Classification is
// a pure function of the lower-cased failure message and the context's
// retry count; the classifier instance only adds history bookkeeping and
// observer notification on top.
type Classifier struct {
	maxRetries int
	observer   Observer

	mu      sync.Mutex
	history []*ClassifiedError
}

// NewClassifier creates a Classifier. maxRetries bounds how long the
// generic retry action keeps being offered for transient kinds; observer
// may be nil.
func NewClassifier(maxRetries int, observer Observer) *Classifier {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Classifier{maxRetries: maxRetries, observer: observer}
}

// Classify maps a raw failure to a ClassifiedError. There is no
// unclassifiable case: unmatched failures come back as KindUnknown.
// A zero ctx.Timestamp defaults to now.
func (c *Classifier) Classify(raw error, ctx Context) *ClassifiedError {
	msg := ""
	if raw != nil {
		msg = raw.Error()
	}
	cerr := c.classifyMessage(msg, ctx)
	cerr.cause = raw
	c.record(cerr)
	return cerr
}

// ClassifyMessage classifies a bare failure string.
func (c *Classifier) ClassifyMessage(msg string, ctx Context) *ClassifiedError {
	cerr := c.classifyMessage(msg, ctx)
	cerr.cause = errors.New(msg)
	c.record(cerr)
	return cerr
}

func (c *Classifier) classifyMessage(msg string, ctx Context) *ClassifiedError {
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now().UTC()
	}

	kind := kindForMessage(strings.ToLower(msg), ctx)

	severity, ok := severityByKind[kind]
	if !ok {
		severity = SeverityLow
	}
	// Repeated retries escalate regardless of the table.
	if ctx.RetryCount > 2 {
		severity = SeverityHigh
	}

	actions := recoveryActionsFor(kind)
	if transientKinds[kind] && ctx.RetryCount < c.maxRetries {
		actions = append([]RecoveryAction{{
			Strategy:    StrategyRetry,
			Description: "Retry the operation",
			AutoExecute: true,
		}}, actions...)
	}

	return &ClassifiedError{
		ID:              newErrorID(),
		Kind:            kind,
		Severity:        severity,
		Message:         msg,
		Context:         ctx,
		RecoveryActions: actions,
		UserMessage:     UserMessageFor(kind),
	}
}

// kindForMessage tests keyword substrings in a fixed priority order.
// msg must already be lower-cased.
func kindForMessage(msg string, ctx Context) ErrorKind {
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}

	networkish := contains("network", "connection", "econnrefused", "econnreset", "getaddrinfo", "dns", "offline")

	switch {
	case contains("enoent", "not found"):
		return KindCLINotFound
	case contains("no such file"):
		return KindFileNotFound
	case contains("permission", "eacces", "eperm", "access denied"):
		if isFileContext(ctx) {
			return KindFilePermission
		}
		return KindCLIPermissionDenied
	case contains("timeout", "timed out", "etimedout", "deadline exceeded"):
		if networkish {
			return KindNetworkTimeout
		}
		return KindCLITimeout
	case networkish:
		return KindNetworkUnavailable
	case contains("cache") && contains("corrupt", "checksum", "invalid entry"):
		return KindCacheCorrupted
	case contains("corrupt"):
		return KindFileCorrupted
	case contains("parse", "unexpected token", "invalid json", "unexpected end of"):
		return KindCLIParseError
	case contains("version") && contains("mismatch", "unsupported", "incompatible", "requires"):
		return KindCLIVersionMismatch
	case contains("invalid response", "unexpected response", "malformed"):
		return KindCLIInvalidResponse
	case contains("enomem", "out of memory", "emfile", "too many open files", "enospc", "no space left"):
		return KindResourceExhausted
	default:
		return KindUnknown
	}
}

// isFileContext reports whether the failure came from a file-system
// component, which distinguishes file permission errors from CLI ones.
func isFileContext(ctx Context) bool {
	switch ctx.Component {
	case "cache", "storage", "filesystem":
		return true
	}
	return strings.HasPrefix(ctx.Operation, "file_")
}

// recoveryActionsFor assembles the fixed kind-to-action table. Slices
// are rebuilt per call so callers can bind behaviors without sharing.
func recoveryActionsFor(kind ErrorKind) []RecoveryAction {
	switch kind {
	case KindCLINotFound:
		return []RecoveryAction{
			{Strategy: StrategyUserAction, Description: "Install the Task Master CLI or point cli.binary at it", AutoExecute: false},
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	case KindCLIPermissionDenied:
		return []RecoveryAction{
			{Strategy: StrategyUserAction, Description: "Fix execute permissions on the Task Master binary", AutoExecute: false},
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	case KindCLITimeout:
		return []RecoveryAction{
			{Strategy: StrategyFallback, Description: "Serve the most recent fallback data", AutoExecute: true},
			{Strategy: StrategyCache, Description: "Serve cached data", AutoExecute: true},
		}
	case KindCLIParseError, KindCLIInvalidResponse:
		return []RecoveryAction{
			{Strategy: StrategyCache, Description: "Serve the last known good data", AutoExecute: true},
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	case KindCLIVersionMismatch:
		return []RecoveryAction{
			{Strategy: StrategyUserAction, Description: "Update the Task Master CLI to a supported version", AutoExecute: false},
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	case KindFileNotFound:
		return []RecoveryAction{
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	case KindFilePermission:
		return []RecoveryAction{
			{Strategy: StrategyUserAction, Description: "Fix read permissions on the data file", AutoExecute: false},
			{Strategy: StrategyCache, Description: "Serve cached data", AutoExecute: true},
		}
	case KindFileCorrupted:
		return []RecoveryAction{
			{Strategy: StrategyCache, Description: "Serve cached data", AutoExecute: true},
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	case KindNetworkUnavailable:
		return []RecoveryAction{
			{Strategy: StrategyOffline, Description: "Activate offline mode", AutoExecute: true},
			{Strategy: StrategyCache, Description: "Serve cached data", AutoExecute: true},
		}
	case KindNetworkTimeout:
		return []RecoveryAction{
			{Strategy: StrategyCache, Description: "Serve cached data", AutoExecute: true},
			{Strategy: StrategyOffline, Description: "Activate offline mode", AutoExecute: true},
		}
	case KindCacheCorrupted:
		return []RecoveryAction{
			{Strategy: StrategyFallback, Description: "Rebuild from alternate task data", AutoExecute: true},
		}
	case KindResourceExhausted:
		return []RecoveryAction{
			{Strategy: StrategyUserAction, Description: "Free system resources and retry", AutoExecute: false},
		}
	default:
		return []RecoveryAction{
			{Strategy: StrategyFallback, Description: "Switch to alternate task data", AutoExecute: true},
		}
	}
}

// record appends to the bounded history and notifies the observer.
func (c *Classifier) record(cerr *ClassifiedError) {
	c.mu.Lock()
	c.history = append(c.history, cerr)
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
	c.mu.Unlock()

	c.observer.ErrorClassified(cerr)
}

// ErrorStats aggregates the classifier's recent error history.
type ErrorStats struct {
	Total      int               `json:"total"`
	ByKind     map[ErrorKind]int `json:"by_kind"`
	BySeverity map[Severity]int  `json:"by_severity"`
}

// Stats summarizes the bounded error history by kind and severity.
func (c *Classifier) Stats() ErrorStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := ErrorStats{
		Total:      len(c.history),
		ByKind:     make(map[ErrorKind]int),
		BySeverity: make(map[Severity]int),
	}
	for _, e := range c.history {
		stats.ByKind[e.Kind]++
		stats.BySeverity[e.Severity]++
	}
	return stats
}

// History returns a copy of the recent classified errors, oldest first.
func (c *Classifier) History() []*ClassifiedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ClassifiedError, len(c.history))
	copy(out, c.history)
	return out
}
