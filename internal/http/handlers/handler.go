package handlers

import "bustix/internal/services"

// Handler groups the booking core endpoints.
type Handler struct {
	Bookings      services.BookingService
	Reservations  services.ReservationService
	Payments      services.PaymentService
	Cancellations services.CancellationService
	Verifications services.VerificationService
}
