package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

var departure = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func tripRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "origin", "destination", "bus_number", "total_seats", "available_seats", "departure_at", "fare", "status"}).
		AddRow(4, "Colombo", "Kandy", "NB-1234", 40, 12, departure, 100000, "scheduled")
}

func TestInTxCommitsReservationSteps(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM trips WHERE id = \? FOR UPDATE`).WithArgs(int64(4)).WillReturnRows(tripRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).WithArgs(int64(4), 12).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectExec(`UPDATE trips SET available_seats = available_seats \+ \?`).WithArgs(-1, int64(4), -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var booking models.Booking
	err := store.InTx(ctx, "reserve", func(tx Tx) error {
		trip, err := tx.LockTrip(ctx, 4)
		if err != nil {
			return err
		}
		if trip.AvailableSeats != 12 || trip.Status != models.TripScheduled {
			t.Fatalf("unexpected trip %+v", trip)
		}
		held, err := tx.SeatHeld(ctx, 4, 12)
		if err != nil || held {
			t.Fatalf("seat should be free: %v %v", held, err)
		}
		booking = models.Booking{
			Reference:          "AHC-0A1B2C3D4E",
			TripID:             4,
			UserID:             9,
			SeatNumber:         12,
			Passenger:          models.Passenger{Name: "Nimal"},
			AmountDue:          100000,
			PaymentStatus:      models.PaymentPending,
			VerificationStatus: models.VerificationPending,
			CreatedAt:          departure.Add(-48 * time.Hour),
			UpdatedAt:          departure.Add(-48 * time.Hour),
		}
		if err := tx.InsertBooking(ctx, &booking); err != nil {
			return err
		}
		return tx.AdjustAvailableSeats(ctx, 4, -1)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if booking.ID != 77 {
		t.Fatalf("expected id 77, got %d", booking.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertBookingMapsDuplicateSeat(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry '4-12' for key 'bookings.uniq_trip_seat_claim'",
	})
	mock.ExpectRollback()

	err := store.InTx(ctx, "reserve", func(tx Tx) error {
		return tx.InsertBooking(ctx, &models.Booking{TripID: 4, SeatNumber: 12})
	})
	if !errors.Is(err, ErrSeatTaken) {
		t.Fatalf("expected ErrSeatTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertBookingMapsDuplicateReference(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'AHC-1' for key 'bookings.uniq_booking_reference'",
	})
	mock.ExpectRollback()

	err := store.InTx(ctx, "reserve", func(tx Tx) error {
		return tx.InsertBooking(ctx, &models.Booking{Reference: "AHC-1"})
	})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestInTxLockWaitIsRetryable(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings b WHERE b.booking_reference = \? FOR UPDATE`).
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	err := store.InTx(ctx, "verify", func(tx Tx) error {
		_, err := tx.LockBookingByReference(ctx, "AHC-1")
		return err
	})
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestAdjustAvailableSeatsOutOfRange(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trips SET available_seats`).WithArgs(1, int64(4), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.InTx(ctx, "decide", func(tx Tx) error {
		return tx.AdjustAvailableSeats(ctx, 4, 1)
	})
	if !errors.Is(err, ErrSeatCounter) {
		t.Fatalf("expected ErrSeatCounter, got %v", err)
	}
}

func TestLockBookingNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings b WHERE b.id = \? FOR UPDATE`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.InTx(ctx, "cancel", func(tx Tx) error {
		_, err := tx.LockBookingByID(ctx, 5)
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancellationRoundTripNullable(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	created := departure.Add(-30 * time.Hour)
	decided := departure.Add(-13 * time.Hour)

	cols := []string{"id", "booking_id", "requested_by", "reason", "status", "refund_amount", "refund_percent",
		"hours_to_departure", "decided_by", "decided_at", "remarks", "created_at"}
	mock.ExpectQuery(`FROM cancellation_requests WHERE id = \?`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 77, 9, "plans changed", "approved", 75000, 75, 13.0, 1, decided, "ok", created))
	mock.ExpectQuery(`FROM cancellation_requests WHERE id = \?`).WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(4, 78, 9, "sick", "pending", 0, 0, nil, nil, nil, "", created))

	approved, err := store.CancellationByID(ctx, 3)
	if err != nil {
		t.Fatalf("CancellationByID: %v", err)
	}
	if approved.Status != models.CancellationApproved || approved.RefundAmount != 75000 ||
		approved.DecidedBy == nil || *approved.DecidedBy != 1 || approved.HoursToDeparture == nil {
		t.Fatalf("unexpected approved row %+v", approved)
	}
	pending, err := store.CancellationByID(ctx, 4)
	if err != nil {
		t.Fatalf("CancellationByID: %v", err)
	}
	if pending.DecidedAt != nil || pending.DecidedBy != nil || pending.HoursToDeparture != nil {
		t.Fatalf("nullable fields should stay nil: %+v", pending)
	}
}

func TestListBookingsFilters(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	cols := []string{"id", "booking_reference", "trip_id", "user_id", "seat_number", "passenger_name", "passenger_email",
		"passenger_phone", "amount_due", "payment_status", "verification_status", "credential", "idempotency_key",
		"created_at", "updated_at", "origin", "destination", "bus_number", "departure_at"}
	mock.ExpectQuery(`WHERE 1=1 AND b.user_id = \? AND b.payment_status = \?`).
		WithArgs(int64(9), "completed", 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(77, "AHC-0A1B2C3D4E", 4, 9, 12, "Nimal", "", "", 100000, "completed",
			"pending", "eyJ9", "", departure, departure, "Colombo", "Kandy", "NB-1234", departure))

	out, err := store.ListBookings(ctx, models.BookingFilter{UserID: 9, PaymentStatus: models.PaymentCompleted, Limit: 10})
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(out) != 1 || out[0].Origin != "Colombo" || out[0].PaymentStatus != models.PaymentCompleted {
		t.Fatalf("unexpected bookings %+v", out)
	}
}

func TestPaymentByTransactionIgnoresOutcome(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM payments WHERE transaction_id = \? FOR UPDATE`).WithArgs("PH-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount", "transaction_id", "method", "status", "recorded_at"}).
			AddRow(3, 77, 100000, "PH-1", "gateway", "completed", departure))
	mock.ExpectCommit()

	var got models.PaymentRecord
	err := store.InTx(ctx, "apply_payment", func(tx Tx) error {
		var err error
		got, err = tx.PaymentByTransaction(ctx, "PH-1")
		return err
	})
	if err != nil {
		t.Fatalf("PaymentByTransaction: %v", err)
	}
	if got.BookingID != 77 || got.Status != models.OutcomeCompleted {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertPaymentMapsDuplicateTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO payments`).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'PH-1' for key 'payments.uniq_payment_transaction'",
	})
	mock.ExpectRollback()

	err := store.InTx(ctx, "apply_payment", func(tx Tx) error {
		return tx.InsertPayment(ctx, &models.PaymentRecord{BookingID: 78, TransactionID: "PH-1", Status: models.OutcomeFailed})
	})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestListPaymentsFilters(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM payments p JOIN bookings b .* WHERE 1=1 AND p.status = \? AND p.method = \?`).
		WithArgs("completed", "manual", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount", "transaction_id", "method", "status", "recorded_at",
			"booking_reference", "passenger_name"}).
			AddRow(3, 77, 100000, "MANUAL-X", "manual", "completed", departure, "AHC-0A1B2C3D4E", "Nimal"))

	out, err := store.ListPayments(ctx, models.PaymentFilter{Status: models.OutcomeCompleted, Method: models.MethodManual, Limit: 20})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(out) != 1 || out[0].BookingReference != "AHC-0A1B2C3D4E" || out[0].Method != models.MethodManual {
		t.Fatalf("unexpected payments %+v", out)
	}
}

func TestSeatMapSingleSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	cols := []string{"id", "total_seats", "available_seats", "seat_number"}
	mock.ExpectQuery(`FROM trips t LEFT JOIN bookings b ON b.trip_id = t.id .* WHERE t.id = \?`).WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(4, 40, 38, 3).AddRow(4, 40, 38, 12))
	mock.ExpectQuery(`FROM trips t LEFT JOIN bookings b`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, 20, 20, nil))
	mock.ExpectQuery(`FROM trips t LEFT JOIN bookings b`).WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows(cols))

	m, err := store.SeatMap(ctx, 4)
	if err != nil {
		t.Fatalf("SeatMap: %v", err)
	}
	if m.TripID != 4 || m.AvailableSeats != 38 || len(m.BookedSeats) != 2 || m.BookedSeats[1] != 12 {
		t.Fatalf("unexpected seat map %+v", m)
	}

	empty, err := store.SeatMap(ctx, 5)
	if err != nil {
		t.Fatalf("SeatMap: %v", err)
	}
	if empty.TotalSeats != 20 || len(empty.BookedSeats) != 0 || empty.BookedSeats == nil {
		t.Fatalf("unexpected empty seat map %+v", empty)
	}

	if _, err := store.SeatMap(ctx, 6); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
