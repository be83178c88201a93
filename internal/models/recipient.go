package models

import "time"

// Outcome status constants.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Recipient is one addressable target within a campaign. Created once at
// campaign materialization and never re-synced with the customer store.
type Recipient struct {
	ID          string `json:"id"`
	Contact     string `json:"contact"`
	DisplayName string `json:"display_name"`
	// Outcome is nil until the sequencer records a terminal result.
	Outcome *DeliveryOutcome `json:"outcome,omitempty"`
}

// DeliveryOutcome is the terminal result for one recipient.
type DeliveryOutcome struct {
	Status     string    `json:"status"` // sent or failed
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SentOutcome builds a successful outcome stamped now.
func SentOutcome(now time.Time) DeliveryOutcome {
	return DeliveryOutcome{Status: OutcomeSent, RecordedAt: now}
}

// FailedOutcome builds a failed outcome with its error detail.
func FailedOutcome(now time.Time, detail string) DeliveryOutcome {
	return DeliveryOutcome{Status: OutcomeFailed, Error: detail, RecordedAt: now}
}
