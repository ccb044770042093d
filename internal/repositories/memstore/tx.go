package memstore

import (
	"context"

	"bustix/internal/domain/models"
	"bustix/internal/repositories"
)

type memTx struct {
	st *state
}

func (t *memTx) LockTrip(_ context.Context, id int64) (models.Trip, error) {
	trip, ok := t.st.trips[id]
	if !ok {
		return models.Trip{}, repositories.ErrNotFound
	}
	return trip, nil
}

func (t *memTx) AdjustAvailableSeats(_ context.Context, tripID int64, delta int) error {
	trip, ok := t.st.trips[tripID]
	if !ok {
		return repositories.ErrNotFound
	}
	next := trip.AvailableSeats + delta
	if next < 0 || next > trip.TotalSeats {
		return repositories.ErrSeatCounter
	}
	trip.AvailableSeats = next
	t.st.trips[tripID] = trip
	return nil
}

func (t *memTx) SeatHeld(_ context.Context, tripID int64, seat int) (bool, error) {
	for _, b := range t.st.bookings {
		if b.TripID == tripID && b.SeatNumber == seat && b.PaymentStatus.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) LockBookingByID(_ context.Context, id int64) (models.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return models.Booking{}, repositories.ErrNotFound
	}
	return b, nil
}

func (t *memTx) LockBookingByReference(_ context.Context, reference string) (models.Booking, error) {
	for _, b := range t.st.bookings {
		if b.Reference == reference {
			return b, nil
		}
	}
	return models.Booking{}, repositories.ErrNotFound
}

func (t *memTx) BookingByIdempotencyKey(_ context.Context, userID int64, key string) (models.Booking, error) {
	for _, b := range t.st.bookings {
		if b.UserID == userID && b.IdempotencyKey != "" && b.IdempotencyKey == key {
			return b, nil
		}
	}
	return models.Booking{}, repositories.ErrNotFound
}

func (t *memTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	for _, other := range t.st.bookings {
		if other.Reference == b.Reference {
			return repositories.ErrDuplicateReference
		}
		if b.IdempotencyKey != "" && other.UserID == b.UserID && other.IdempotencyKey == b.IdempotencyKey {
			return repositories.ErrDuplicateIdempotency
		}
	}
	if b.PaymentStatus.Active() {
		held, _ := t.SeatHeld(ctx, b.TripID, b.SeatNumber)
		if held {
			return repositories.ErrSeatTaken
		}
	}
	b.ID = t.st.nextID()
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *memTx) UpdatePaymentStatus(_ context.Context, bookingID int64, status models.PaymentStatus) error {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return repositories.ErrNotFound
	}
	b.PaymentStatus = status
	t.st.bookings[bookingID] = b
	return nil
}

func (t *memTx) UpdateVerificationStatus(_ context.Context, bookingID int64, status models.VerificationStatus) error {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return repositories.ErrNotFound
	}
	b.VerificationStatus = status
	t.st.bookings[bookingID] = b
	return nil
}

func (t *memTx) PaymentByTransaction(_ context.Context, transactionID string) (models.PaymentRecord, error) {
	for _, p := range t.st.payments {
		if p.TransactionID == transactionID {
			return p, nil
		}
	}
	return models.PaymentRecord{}, repositories.ErrNotFound
}

func (t *memTx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	if _, err := t.PaymentByTransaction(ctx, p.TransactionID); err == nil {
		return repositories.ErrDuplicateTransaction
	}
	p.ID = t.st.nextID()
	t.st.payments = append(t.st.payments, *p)
	return nil
}

func (t *memTx) HasPendingCancellation(_ context.Context, bookingID int64) (bool, error) {
	for _, c := range t.st.cancellations {
		if c.BookingID == bookingID && c.Status == models.CancellationPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertCancellation(ctx context.Context, c *models.CancellationRequest) error {
	if pending, _ := t.HasPendingCancellation(ctx, c.BookingID); pending {
		return repositories.ErrDuplicatePending
	}
	c.ID = t.st.nextID()
	t.st.cancellations[c.ID] = *c
	return nil
}

func (t *memTx) LockCancellation(_ context.Context, id int64) (models.CancellationRequest, error) {
	c, ok := t.st.cancellations[id]
	if !ok {
		return models.CancellationRequest{}, repositories.ErrNotFound
	}
	return c, nil
}

func (t *memTx) UpdateCancellationDecision(_ context.Context, c models.CancellationRequest) error {
	cur, ok := t.st.cancellations[c.ID]
	if !ok || cur.Status != models.CancellationPending {
		return repositories.ErrNotFound
	}
	t.st.cancellations[c.ID] = c
	return nil
}

func (t *memTx) InsertVerificationLog(_ context.Context, e *models.VerificationLogEntry) error {
	e.ID = t.st.nextID()
	t.st.logs = append(t.st.logs, *e)
	return nil
}
