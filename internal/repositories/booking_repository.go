package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	intdb "bustix/internal/db"
	"bustix/internal/domain/models"
)

const bookingColumns = `
	b.id, b.booking_reference, b.trip_id, b.user_id, b.seat_number,
	b.passenger_name, b.passenger_email, b.passenger_phone,
	b.amount_due, b.payment_status, b.verification_status,
	COALESCE(b.credential, ''), COALESCE(b.idempotency_key, ''),
	b.created_at, b.updated_at`

const bookingDetailColumns = bookingColumns + `,
	t.origin, t.destination, t.bus_number, t.departure_at`

func bookingDest(b *models.Booking, payment, verification *string) []any {
	return []any{
		&b.ID, &b.Reference, &b.TripID, &b.UserID, &b.SeatNumber,
		&b.Passenger.Name, &b.Passenger.Email, &b.Passenger.Phone,
		&b.AmountDue, payment, verification,
		&b.Credential, &b.IdempotencyKey,
		&b.CreatedAt, &b.UpdatedAt,
	}
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	var payment, verification string
	if err := row.Scan(bookingDest(&b, &payment, &verification)...); err != nil {
		return models.Booking{}, notFound(err)
	}
	b.PaymentStatus = models.PaymentStatus(payment)
	b.VerificationStatus = models.VerificationStatus(verification)
	return b, nil
}

func scanBookingDetail(row rowScanner) (models.BookingDetail, error) {
	var d models.BookingDetail
	var payment, verification string
	dest := append(bookingDest(&d.Booking, &payment, &verification),
		&d.Origin, &d.Destination, &d.BusNumber, &d.DepartureAt)
	if err := row.Scan(dest...); err != nil {
		return models.BookingDetail{}, notFound(err)
	}
	d.PaymentStatus = models.PaymentStatus(payment)
	d.VerificationStatus = models.VerificationStatus(verification)
	return d, nil
}

func (s *SQLStore) BookingByID(ctx context.Context, id int64) (models.BookingDetail, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+bookingDetailColumns+`
		FROM bookings b JOIN trips t ON t.id = b.trip_id WHERE b.id = ?`, id)
	return scanBookingDetail(row)
}

func (s *SQLStore) BookingByReference(ctx context.Context, reference string) (models.BookingDetail, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+bookingDetailColumns+`
		FROM bookings b JOIN trips t ON t.id = b.trip_id WHERE b.booking_reference = ?`, reference)
	return scanBookingDetail(row)
}

func (s *SQLStore) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.BookingDetail, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.UserID > 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.TripID > 0 {
		where = append(where, "b.trip_id = ?")
		args = append(args, f.TripID)
	}
	if f.PaymentStatus != "" {
		where = append(where, "b.payment_status = ?")
		args = append(args, string(f.PaymentStatus))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	query := `SELECT ` + bookingDetailColumns + `
		FROM bookings b JOIN trips t ON t.id = b.trip_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT ? OFFSET ?`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out := []models.BookingDetail{}
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) BookingStats(ctx context.Context) (models.BookingStats, error) {
	var st models.BookingStats
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(payment_status = 'pending'), 0),
		       COALESCE(SUM(payment_status = 'pay_on_bus'), 0),
		       COALESCE(SUM(payment_status = 'completed'), 0),
		       COALESCE(SUM(payment_status = 'failed'), 0),
		       COALESCE(SUM(payment_status = 'refunded'), 0),
		       COALESCE(SUM(verification_status = 'used'), 0),
		       COALESCE(SUM(CASE WHEN payment_status = 'completed' THEN amount_due ELSE 0 END), 0)
		FROM bookings`).Scan(
		&st.Total, &st.Pending, &st.PayOnBus, &st.Completed, &st.Failed, &st.Refunded, &st.Used, &st.Revenue,
	)
	if err != nil {
		return models.BookingStats{}, fmt.Errorf("booking stats: %w", err)
	}
	return st, nil
}

// StalePendingBookings returns ids of unpaid bookings created before the cutoff.
func (s *SQLStore) StalePendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id FROM bookings
		WHERE payment_status = 'pending' AND created_at < ?
		ORDER BY created_at
		LIMIT ?`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("stale bookings: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t sqlTx) LockBookingByID(ctx context.Context, id int64) (models.Booking, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ? FOR UPDATE`, id)
	return scanBooking(row)
}

func (t sqlTx) LockBookingByReference(ctx context.Context, reference string) (models.Booking, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.booking_reference = ? FOR UPDATE`, reference)
	return scanBooking(row)
}

func (t sqlTx) BookingByIdempotencyKey(ctx context.Context, userID int64, key string) (models.Booking, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.user_id = ? AND b.idempotency_key = ?`, userID, key)
	return scanBooking(row)
}

func (t sqlTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO bookings (
			booking_reference, trip_id, user_id, seat_number,
			passenger_name, passenger_email, passenger_phone,
			amount_due, payment_status, verification_status,
			credential, idempotency_key, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.TripID, b.UserID, b.SeatNumber,
		b.Passenger.Name, b.Passenger.Email, b.Passenger.Phone,
		b.AmountDue, string(b.PaymentStatus), string(b.VerificationStatus),
		intdb.NullIfEmpty(b.Credential), intdb.NullIfEmpty(b.IdempotencyKey), b.CreatedAt, b.UpdatedAt,
	)
	switch {
	case intdb.IsDuplicateKey(err, "uniq_trip_seat_claim"):
		return ErrSeatTaken
	case intdb.IsDuplicateKey(err, "uniq_booking_reference"):
		return ErrDuplicateReference
	case intdb.IsDuplicateKey(err, "uniq_user_idempotency"):
		return ErrDuplicateIdempotency
	case err != nil:
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (t sqlTx) UpdatePaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) error {
	res, err := t.q.ExecContext(ctx, `UPDATE bookings SET payment_status = ? WHERE id = ?`, string(status), bookingID)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return rowsAffectedOne(res)
}

func (t sqlTx) UpdateVerificationStatus(ctx context.Context, bookingID int64, status models.VerificationStatus) error {
	res, err := t.q.ExecContext(ctx, `UPDATE bookings SET verification_status = ? WHERE id = ?`, string(status), bookingID)
	if err != nil {
		return fmt.Errorf("update verification status: %w", err)
	}
	return rowsAffectedOne(res)
}
