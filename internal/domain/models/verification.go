package models

import "time"

// VerificationLogEntry is written for every scan, whatever the outcome.
type VerificationLogEntry struct {
	ID         int64         `json:"id"`
	BookingID  *int64        `json:"booking_id,omitempty"`
	Reference  string        `json:"booking_reference"`
	VerifierID int64         `json:"verifier_id"`
	Outcome    VerifyOutcome `json:"outcome"`
	CreatedAt  time.Time     `json:"created_at"`
}
