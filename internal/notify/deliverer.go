package notify

import (
	"fmt"

	"bustix/internal/logger"
)

// LogDeliverer stands in for the email/SMS sender: it renders the message a
// passenger would receive and logs it.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ev Event) error {
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	logger.WithFields("subject", ev.Subject, "request_id", ev.RequestID).Info("notification delivered", "message", msg)
	return nil
}

// Render produces the one-line text for an event.
func Render(ev Event) (string, error) {
	switch ev.Subject {
	case SubjectBookingCreated:
		if ev.Booking == nil {
			return "", fmt.Errorf("%s event without booking", ev.Subject)
		}
		b := ev.Booking
		return fmt.Sprintf("Booking %s confirmed for %s, seat %d (payment: %s)",
			b.Reference, b.Passenger.Name, b.SeatNumber, b.PaymentStatus), nil
	case SubjectPaymentConfirmed:
		if ev.Booking == nil {
			return "", fmt.Errorf("%s event without booking", ev.Subject)
		}
		return fmt.Sprintf("Payment received for booking %s", ev.Booking.Reference), nil
	case SubjectCancellationDecision:
		if ev.Cancellation == nil {
			return "", fmt.Errorf("%s event without cancellation", ev.Subject)
		}
		c := ev.Cancellation
		return fmt.Sprintf("Cancellation request #%d %s, refund %d", c.ID, c.Status, c.RefundAmount), nil
	default:
		return "", fmt.Errorf("unknown subject %q", ev.Subject)
	}
}
