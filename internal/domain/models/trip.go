package models

import "time"

// Trip is one scheduled departure. Only the seat capacity fields are written by
// the booking core.
type Trip struct {
	ID             int64      `json:"id"`
	Origin         string     `json:"origin"`
	Destination    string     `json:"destination"`
	BusNumber      string     `json:"bus_number"`
	TotalSeats     int        `json:"total_seats"`
	AvailableSeats int        `json:"available_seats"`
	DepartureAt    time.Time  `json:"departure_at"`
	Fare           int64      `json:"fare"`
	Status         TripStatus `json:"status"`
}

// HoursToDeparture is measured from now, negative once the bus has left.
func (t Trip) HoursToDeparture(now time.Time) float64 {
	return t.DepartureAt.Sub(now).Hours()
}

// SeatMap is the display view of a trip's occupancy.
type SeatMap struct {
	TripID         int64 `json:"trip_id"`
	TotalSeats     int   `json:"total_seats"`
	AvailableSeats int   `json:"available_seats"`
	BookedSeats    []int `json:"booked_seats"`
}
