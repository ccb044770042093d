package models

import "time"

type CancellationRequest struct {
	ID               int64              `json:"id"`
	BookingID        int64              `json:"booking_id"`
	RequestedBy      int64              `json:"requested_by"`
	Reason           string             `json:"reason"`
	Status           CancellationStatus `json:"status"`
	RefundAmount     int64              `json:"refund_amount"`
	RefundPercent    int                `json:"refund_percent"`
	HoursToDeparture *float64           `json:"hours_to_departure,omitempty"`
	DecidedBy        *int64             `json:"decided_by,omitempty"`
	DecidedAt        *time.Time         `json:"decided_at,omitempty"`
	Remarks          string             `json:"remarks,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

type CancellationFilter struct {
	RequestedBy int64
	Status      CancellationStatus
	Limit       int
	Offset      int
}

type CancellationStats struct {
	Total         int   `json:"total"`
	Pending       int   `json:"pending"`
	Approved      int   `json:"approved"`
	Rejected      int   `json:"rejected"`
	TotalRefunded int64 `json:"total_refunded"`
}
