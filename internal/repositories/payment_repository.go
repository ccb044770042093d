package repositories

import (
	"context"
	"fmt"
	"strings"

	intdb "bustix/internal/db"
	"bustix/internal/domain/models"
)

const paymentColumns = `id, booking_id, amount, transaction_id, method, status, recorded_at`

func scanPayment(row rowScanner) (models.PaymentRecord, error) {
	var p models.PaymentRecord
	var method, status string
	if err := row.Scan(&p.ID, &p.BookingID, &p.Amount, &p.TransactionID, &method, &status, &p.RecordedAt); err != nil {
		return models.PaymentRecord{}, notFound(err)
	}
	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentOutcome(status)
	return p, nil
}

func (s *SQLStore) PaymentsForBooking(ctx context.Context, bookingID int64) ([]models.PaymentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY recorded_at, id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []models.PaymentRecord{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PaymentByTransaction finds the record for a gateway or manual transaction
// id, whatever its outcome. A transaction id is applied at most once.
// ListPayments is the admin payments view, newest first.
func (s *SQLStore) ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.PaymentListing, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Method != "" {
		where = append(where, "p.method = ?")
		args = append(args, string(f.Method))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id, p.booking_id, p.amount, p.transaction_id, p.method, p.status, p.recorded_at,
		       b.booking_reference, b.passenger_name
		FROM payments p JOIN bookings b ON b.id = p.booking_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY p.recorded_at DESC, p.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []models.PaymentListing{}
	for rows.Next() {
		var (
			l              models.PaymentListing
			method, status string
		)
		if err := rows.Scan(&l.ID, &l.BookingID, &l.Amount, &l.TransactionID, &method, &status, &l.RecordedAt,
			&l.BookingReference, &l.PassengerName); err != nil {
			return nil, err
		}
		l.Method = models.PaymentMethod(method)
		l.Status = models.PaymentOutcome(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t sqlTx) PaymentByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ? FOR UPDATE`, transactionID)
	return scanPayment(row)
}

func (t sqlTx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO payments (booking_id, amount, transaction_id, method, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.BookingID, p.Amount, p.TransactionID, string(p.Method), string(p.Status), p.RecordedAt)
	if intdb.IsDuplicateKey(err, "uniq_payment_transaction") {
		return ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}
