package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*Store, models.Trip) {
	t.Helper()
	s := New()
	trip := s.AddTrip(models.Trip{TotalSeats: 3, DepartureAt: time.Now().Add(24 * time.Hour), Fare: 500})
	require.Equal(t, 3, trip.AvailableSeats)
	require.Equal(t, models.TripScheduled, trip.Status)
	return s, trip
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, trip := seed(t)
	boom := errors.New("boom")

	err := s.InTx(context.Background(), "test", func(tx repositories.Tx) error {
		b := models.Booking{Reference: "AHC-1", TripID: trip.ID, SeatNumber: 1, PaymentStatus: models.PaymentPending}
		require.NoError(t, tx.InsertBooking(context.Background(), &b))
		require.NoError(t, tx.AdjustAvailableSeats(context.Background(), trip.ID, -1))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.TripByID(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableSeats)
	_, err = s.BookingByReference(context.Background(), "AHC-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestTxEnforcesUniqueness(t *testing.T) {
	s, trip := seed(t)
	ctx := context.Background()

	err := s.InTx(ctx, "test", func(tx repositories.Tx) error {
		a := models.Booking{Reference: "AHC-1", TripID: trip.ID, UserID: 1, SeatNumber: 1, PaymentStatus: models.PaymentPending, IdempotencyKey: "k"}
		require.NoError(t, tx.InsertBooking(ctx, &a))

		dupSeat := models.Booking{Reference: "AHC-2", TripID: trip.ID, SeatNumber: 1, PaymentStatus: models.PaymentPayOnBus}
		assert.ErrorIs(t, tx.InsertBooking(ctx, &dupSeat), repositories.ErrSeatTaken)

		dupRef := models.Booking{Reference: "AHC-1", TripID: trip.ID, SeatNumber: 2, PaymentStatus: models.PaymentPending}
		assert.ErrorIs(t, tx.InsertBooking(ctx, &dupRef), repositories.ErrDuplicateReference)

		dupKey := models.Booking{Reference: "AHC-3", TripID: trip.ID, UserID: 1, SeatNumber: 2, PaymentStatus: models.PaymentPending, IdempotencyKey: "k"}
		assert.ErrorIs(t, tx.InsertBooking(ctx, &dupKey), repositories.ErrDuplicateIdempotency)

		assert.ErrorIs(t, tx.AdjustAvailableSeats(ctx, trip.ID, 1), repositories.ErrSeatCounter)
		assert.ErrorIs(t, tx.AdjustAvailableSeats(ctx, trip.ID, -4), repositories.ErrSeatCounter)

		p := models.PaymentRecord{BookingID: a.ID, TransactionID: "T1", Status: models.OutcomeCompleted}
		require.NoError(t, tx.InsertPayment(ctx, &p))
		again := p
		assert.ErrorIs(t, tx.InsertPayment(ctx, &again), repositories.ErrDuplicateTransaction)
		failed := models.PaymentRecord{BookingID: a.ID, TransactionID: "T1", Status: models.OutcomeFailed}
		assert.ErrorIs(t, tx.InsertPayment(ctx, &failed), repositories.ErrDuplicateTransaction)
		got, err := tx.PaymentByTransaction(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCompleted, got.Status)

		c := models.CancellationRequest{BookingID: a.ID, Status: models.CancellationPending}
		require.NoError(t, tx.InsertCancellation(ctx, &c))
		c2 := models.CancellationRequest{BookingID: a.ID, Status: models.CancellationPending}
		assert.ErrorIs(t, tx.InsertCancellation(ctx, &c2), repositories.ErrDuplicatePending)

		c.Status = models.CancellationRejected
		require.NoError(t, tx.UpdateCancellationDecision(ctx, c))
		assert.ErrorIs(t, tx.UpdateCancellationDecision(ctx, c), repositories.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	m, err := s.SeatMap(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.BookedSeats)

	_, err = s.SeatMap(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestInTxHonoursContext(t *testing.T) {
	s, _ := seed(t)
	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = s.InTx(context.Background(), "hold", func(repositories.Tx) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.InTx(ctx, "blocked", func(repositories.Tx) error { return nil })
	assert.True(t, domain.IsRetryable(err))
}

func TestStalePendingBookings(t *testing.T) {
	s, trip := seed(t)
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	old := s.PutBooking(models.Booking{Reference: "A", TripID: trip.ID, SeatNumber: 1, PaymentStatus: models.PaymentPending, CreatedAt: base})
	s.PutBooking(models.Booking{Reference: "B", TripID: trip.ID, SeatNumber: 2, PaymentStatus: models.PaymentPending, CreatedAt: base.Add(time.Hour)})
	s.PutBooking(models.Booking{Reference: "C", TripID: trip.ID, SeatNumber: 3, PaymentStatus: models.PaymentCompleted, CreatedAt: base})

	ids, err := s.StalePendingBookings(context.Background(), base.Add(30*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{old.ID}, ids)
}
