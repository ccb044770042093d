package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"bustix/internal/domain/models"
)

func (s *SQLStore) VerificationLogs(ctx context.Context, bookingID int64) ([]models.VerificationLogEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, booking_id, booking_reference, verifier_id, outcome, created_at
		FROM verification_logs WHERE booking_id = ? ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("verification logs: %w", err)
	}
	defer rows.Close()

	out := []models.VerificationLogEntry{}
	for rows.Next() {
		var e models.VerificationLogEntry
		var bid sql.NullInt64
		var outcome string
		if err := rows.Scan(&e.ID, &bid, &e.Reference, &e.VerifierID, &outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		if bid.Valid {
			id := bid.Int64
			e.BookingID = &id
		}
		e.Outcome = models.VerifyOutcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t sqlTx) InsertVerificationLog(ctx context.Context, e *models.VerificationLogEntry) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO verification_logs (booking_id, booking_reference, verifier_id, outcome, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.BookingID, e.Reference, e.VerifierID, string(e.Outcome), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}
