package models

import "time"

// Passenger is contact info the core stores but never interprets.
type Passenger struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Booking struct {
	ID                 int64              `json:"id"`
	Reference          string             `json:"booking_reference"`
	TripID             int64              `json:"trip_id"`
	UserID             int64              `json:"user_id"`
	SeatNumber         int                `json:"seat_number"`
	Passenger          Passenger          `json:"passenger"`
	AmountDue          int64              `json:"amount_due"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Credential         string             `json:"credential,omitempty"`
	IdempotencyKey     string             `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// BookingDetail joins a booking with the trip fields shown to passengers.
type BookingDetail struct {
	Booking
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	BusNumber   string    `json:"bus_number"`
	DepartureAt time.Time `json:"departure_at"`
}

type BookingFilter struct {
	UserID        int64
	TripID        int64
	PaymentStatus PaymentStatus
	Limit         int
	Offset        int
}

type BookingStats struct {
	Total     int   `json:"total"`
	Pending   int   `json:"pending"`
	PayOnBus  int   `json:"pay_on_bus"`
	Completed int   `json:"completed"`
	Failed    int   `json:"failed"`
	Refunded  int   `json:"refunded"`
	Used      int   `json:"used"`
	Revenue   int64 `json:"revenue"`
}
