package observability

import (
	"fmt"
	"time"
)

// Metrics holds resilience metrics derived from the event log.
type Metrics struct {
	ErrorsByKind       map[string]int `json:"errors_by_kind"`
	ErrorsBySeverity   map[string]int `json:"errors_by_severity"`
	Retries            int            `json:"retries"`
	BreakerTransitions int            `json:"breaker_transitions"`
	BreakerOpens       int            `json:"breaker_opens"`
	FallbackUses       int            `json:"fallback_uses"`
	CacheHits          int            `json:"cache_hits"`
	CacheMisses        int            `json:"cache_misses"`
	CacheEvictions     int            `json:"cache_evictions"`
	CacheHitRate       float64        `json:"cache_hit_rate"`
	DegradationChanges int            `json:"degradation_changes"`
	OfflineActivations int            `json:"offline_activations"`
	EventCount         int            `json:"event_count"`
	OldestEvent        *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent        *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ErrorsByKind:     make(map[string]int),
		ErrorsBySeverity: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventErrorClassified:
			if kind, ok := event.Data["kind"].(string); ok {
				m.ErrorsByKind[kind]++
			}
			if severity, ok := event.Data["severity"].(string); ok {
				m.ErrorsBySeverity[severity]++
			}
		case EventRetryAttempted:
			m.Retries++
		case EventBreakerStateChanged:
			m.BreakerTransitions++
			if to, ok := event.Data["to"].(string); ok && to == "open" {
				m.BreakerOpens++
			}
		case EventFallbackUsed:
			m.FallbackUses++
		case EventCacheHit:
			m.CacheHits++
		case EventCacheMiss, EventCacheExpired:
			m.CacheMisses++
		case EventCacheEvicted:
			m.CacheEvictions++
		case EventDegradationChanged:
			m.DegradationChanges++
		case EventOfflineActivated:
			m.OfflineActivations++
		}
	}

	if lookups := m.CacheHits + m.CacheMisses; lookups > 0 {
		m.CacheHitRate = float64(m.CacheHits) / float64(lookups)
	}

	return m, nil
}
