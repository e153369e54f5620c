package domain

import "time"

// Health classifies a terminal LoadState
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
)

// Alerts attached to a HealthSpanStart that follows another span
const (
	AlertSourcesDegraded  = "SOURCES_DEGRADED"
	AlertSourcesFailed    = "SOURCES_FAILED"
	AlertSourcesRecovered = "SOURCES_RECOVERED"
)

// HealthOf returns the health of a terminal state
func HealthOf(s LoadState) Health {
	switch {
	case s.Data == nil:
		return HealthFailed
	case s.Degraded:
		return HealthDegraded
	default:
		return HealthOK
	}
}

// HealthSpanStart is emitted when a cycle's health differs from the previous
// cycle's, and for the first cycle of a watch
type HealthSpanStart struct {
	Type          string `json:"type"`               // "health_start"
	SchemaVersion int    `json:"schemaVersion"`      // 1
	Alert         string `json:"alert,omitempty"`    // set when a previous span existed
	Span          int    `json:"span"`               // Span number (1, 2, 3...)
	Health        Health `json:"health"`             // Health of the new span
	Previous      Health `json:"previous,omitempty"` // Health of the span that ended
	CycleID       string `json:"cycleId"`            // Cycle that opened the span
	Source        string `json:"source,omitempty"`   // Source that served the cycle
	Timestamp     string `json:"timestamp"`          // ISO8601 timestamp
}

// HealthSpanEnd is emitted when a span of equal-health cycles ends
type HealthSpanEnd struct {
	Type          string        `json:"type"`          // "health_end"
	SchemaVersion int           `json:"schemaVersion"` // 1
	Span          int           `json:"span"`          // Span number that ended
	Health        Health        `json:"health"`        // Health of the span
	Summary       HealthSummary `json:"summary"`       // Summary of the span
}

// HealthSummary counts what happened during one span
type HealthSummary struct {
	Cycles          int `json:"cycles"`
	FailedSources   int `json:"failedSources"`
	DurationSeconds int `json:"durationSeconds"`
}

// NewHealthSpanStart creates a span start event
func NewHealthSpanStart(span int, health, previous Health, cycleID, source string, at time.Time) *HealthSpanStart {
	s := &HealthSpanStart{
		Type:          "health_start",
		SchemaVersion: 1,
		Span:          span,
		Health:        health,
		CycleID:       cycleID,
		Source:        source,
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
	if previous != "" {
		s.Previous = previous
		switch health {
		case HealthOK:
			s.Alert = AlertSourcesRecovered
		case HealthDegraded:
			s.Alert = AlertSourcesDegraded
		case HealthFailed:
			s.Alert = AlertSourcesFailed
		}
	}
	return s
}

// NewHealthSpanEnd creates a span end event
func NewHealthSpanEnd(span int, health Health, summary HealthSummary) *HealthSpanEnd {
	return &HealthSpanEnd{
		Type:          "health_end",
		SchemaVersion: 1,
		Span:          span,
		Health:        health,
		Summary:       summary,
	}
}
