// Package notify relays pipeline execution state changes to subscribers.
//
// The handler consumes the control plane's state-change events, filters
// them, and forwards a normalized status event through a Notifier. The
// shipped Notifier publishes to an SNS topic.
package notify

import (
	"context"
	"time"
)

// StateChangeEvent is the event bus shape of a pipeline execution state
// change. Detail keys are hyphenated on the wire.
type StateChangeEvent struct {
	Source     string    `json:"source"`
	DetailType string    `json:"detail-type"`
	Time       time.Time `json:"time"`
	Region     string    `json:"region,omitempty"`
	Account    string    `json:"account,omitempty"`
	Detail     Detail    `json:"detail"`
}

// Detail carries the pipeline execution identifiers and the new state.
type Detail struct {
	Pipeline    string  `json:"pipeline"`
	ExecutionID string  `json:"execution-id"`
	State       string  `json:"state"`
	Version     float64 `json:"version,omitempty"`
}

// StatusEvent is the normalized outbound notification.
type StatusEvent struct {
	// EventID is unique per notification.
	EventID string `json:"eventId"`

	// Timestamp is the state change time in RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	Pipeline    string `json:"pipeline"`
	ExecutionID string `json:"executionId"`
	State       string `json:"state"`

	// Summary is a one-line human-readable description.
	Summary string `json:"summary"`
}

// Notifier delivers a status event to a downstream channel.
type Notifier interface {
	Notify(ctx context.Context, ev StatusEvent) error
}
