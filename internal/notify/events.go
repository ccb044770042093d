package notify

import (
	"time"

	"bustix/internal/domain/models"
)

// Subjects published on the notification queue.
const (
	SubjectBookingCreated       = "bookings.created"
	SubjectPaymentConfirmed     = "payments.confirmed"
	SubjectCancellationDecision = "cancellations.decided"
)

// Subjects lists every subject the worker consumes.
var Subjects = []string{SubjectBookingCreated, SubjectPaymentConfirmed, SubjectCancellationDecision}

type Event struct {
	Subject      string                      `json:"subject"`
	OccurredAt   time.Time                   `json:"occurred_at"`
	RequestID    string                      `json:"request_id,omitempty"`
	Booking      *models.Booking             `json:"booking,omitempty"`
	Cancellation *models.CancellationRequest `json:"cancellation,omitempty"`
}
