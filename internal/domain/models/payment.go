package models

import "time"

// PaymentRecord is one append-only payment attempt.
type PaymentRecord struct {
	ID            int64          `json:"id"`
	BookingID     int64          `json:"booking_id"`
	Amount        int64          `json:"amount"`
	TransactionID string         `json:"transaction_id"`
	Method        PaymentMethod  `json:"method"`
	Status        PaymentOutcome `json:"status"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

// PaymentListing is a payment record with the booking it settles.
type PaymentListing struct {
	PaymentRecord
	BookingReference string `json:"booking_reference"`
	PassengerName    string `json:"passenger_name"`
}

type PaymentFilter struct {
	Status PaymentOutcome
	Method PaymentMethod
	Limit  int
	Offset int
}
