// Package credential encodes the boarding credential printed on a ticket.
// The payload identifies a booking and nothing more; whether it has been used
// is only ever read from the ledger.
package credential

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bustix/internal/domain/models"
	"bustix/internal/utils"
)

type Payload struct {
	BookingReference string `json:"booking_reference"`
	PassengerName    string `json:"passenger_name"`
	SeatNumber       int    `json:"seat_number"`
	JourneyDate      string `json:"journey_date"`
	Origin           string `json:"origin"`
	Destination      string `json:"destination"`
}

// For builds the payload for a booking on a trip. The journey date is the
// departure day in loc.
func For(b models.Booking, t models.Trip, loc *time.Location) Payload {
	return Payload{
		BookingReference: b.Reference,
		PassengerName:    b.Passenger.Name,
		SeatNumber:       b.SeatNumber,
		JourneyDate:      utils.FormatDate(t.DepartureAt, loc),
		Origin:           t.Origin,
		Destination:      t.Destination,
	}
}

// Issue encodes p as base64url JSON without padding.
func Issue(p Payload) (string, error) {
	if strings.TrimSpace(p.BookingReference) == "" {
		return "", fmt.Errorf("credential: booking reference is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("credential: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a scanned credential. Unknown fields are ignored.
func Decode(s string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Payload{}, fmt.Errorf("credential: not base64url: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("credential: %w", err)
	}
	if p.BookingReference == "" {
		return Payload{}, fmt.Errorf("credential: missing booking reference")
	}
	return p, nil
}
