package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"bustix/internal/domain/models"
)

const tripColumns = `id, origin, destination, bus_number, total_seats, available_seats, departure_at, fare, status`

func scanTrip(row rowScanner) (models.Trip, error) {
	var t models.Trip
	var status string
	if err := row.Scan(
		&t.ID,
		&t.Origin,
		&t.Destination,
		&t.BusNumber,
		&t.TotalSeats,
		&t.AvailableSeats,
		&t.DepartureAt,
		&t.Fare,
		&status,
	); err != nil {
		return models.Trip{}, notFound(err)
	}
	t.Status = models.TripStatus(status)
	return t, nil
}

func (s *SQLStore) TripByID(ctx context.Context, id int64) (models.Trip, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	return scanTrip(row)
}

// SeatMap is a single statement so the counter and the seat list come from
// the same snapshot.
func (s *SQLStore) SeatMap(ctx context.Context, tripID int64) (models.SeatMap, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT t.id, t.total_seats, t.available_seats, b.seat_number
		FROM trips t
		LEFT JOIN bookings b ON b.trip_id = t.id AND b.payment_status IN ('pending','pay_on_bus','completed')
		WHERE t.id = ?
		ORDER BY b.seat_number`, tripID)
	if err != nil {
		return models.SeatMap{}, fmt.Errorf("seat map: %w", err)
	}
	defer rows.Close()

	m := models.SeatMap{BookedSeats: []int{}}
	found := false
	for rows.Next() {
		var seat sql.NullInt64
		if err := rows.Scan(&m.TripID, &m.TotalSeats, &m.AvailableSeats, &seat); err != nil {
			return models.SeatMap{}, err
		}
		found = true
		if seat.Valid {
			m.BookedSeats = append(m.BookedSeats, int(seat.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return models.SeatMap{}, err
	}
	if !found {
		return models.SeatMap{}, ErrNotFound
	}
	return m, nil
}

func (t sqlTx) LockTrip(ctx context.Context, id int64) (models.Trip, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ? FOR UPDATE`, id)
	return scanTrip(row)
}

// AdjustAvailableSeats moves the counter by delta, refusing to leave the
// 0..total_seats range.
func (t sqlTx) AdjustAvailableSeats(ctx context.Context, tripID int64, delta int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE trips SET available_seats = available_seats + ?
		WHERE id = ? AND available_seats + ? BETWEEN 0 AND total_seats`,
		delta, tripID, delta)
	if err != nil {
		return fmt.Errorf("adjust seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSeatCounter
	}
	return nil
}

// SeatHeld is a plain read; the caller already holds the trip row, and the
// seat_claim unique index rejects anything that slips past.
func (t sqlTx) SeatHeld(ctx context.Context, tripID int64, seat int) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE trip_id = ? AND seat_number = ? AND payment_status IN ('pending','pay_on_bus','completed')`,
		tripID, seat).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("seat check: %w", err)
	}
	return n > 0, nil
}
