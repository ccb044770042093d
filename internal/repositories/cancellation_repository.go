package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intdb "bustix/internal/db"
	"bustix/internal/domain/models"
)

const cancellationColumns = `id, booking_id, requested_by, reason, status, refund_amount, refund_percent,
	hours_to_departure, decided_by, decided_at, COALESCE(remarks, ''), created_at`

func scanCancellation(row rowScanner) (models.CancellationRequest, error) {
	var c models.CancellationRequest
	var status string
	var hours sql.NullFloat64
	var decidedBy sql.NullInt64
	var decidedAt sql.NullTime
	if err := row.Scan(
		&c.ID, &c.BookingID, &c.RequestedBy, &c.Reason, &status, &c.RefundAmount, &c.RefundPercent,
		&hours, &decidedBy, &decidedAt, &c.Remarks, &c.CreatedAt,
	); err != nil {
		return models.CancellationRequest{}, notFound(err)
	}
	c.Status = models.CancellationStatus(status)
	if hours.Valid {
		h := hours.Float64
		c.HoursToDeparture = &h
	}
	if decidedBy.Valid {
		id := decidedBy.Int64
		c.DecidedBy = &id
	}
	if decidedAt.Valid {
		at := decidedAt.Time
		c.DecidedAt = &at
	}
	return c, nil
}

func (s *SQLStore) CancellationByID(ctx context.Context, id int64) (models.CancellationRequest, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+cancellationColumns+` FROM cancellation_requests WHERE id = ?`, id)
	return scanCancellation(row)
}

func (s *SQLStore) ListCancellations(ctx context.Context, f models.CancellationFilter) ([]models.CancellationRequest, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.RequestedBy > 0 {
		where = append(where, "requested_by = ?")
		args = append(args, f.RequestedBy)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, `SELECT `+cancellationColumns+` FROM cancellation_requests
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list cancellations: %w", err)
	}
	defer rows.Close()

	out := []models.CancellationRequest{}
	for rows.Next() {
		c, err := scanCancellation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) CancellationStats(ctx context.Context) (models.CancellationStats, error) {
	var st models.CancellationStats
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'pending'), 0),
		       COALESCE(SUM(status = 'approved'), 0),
		       COALESCE(SUM(status = 'rejected'), 0),
		       COALESCE(SUM(CASE WHEN status = 'approved' THEN refund_amount ELSE 0 END), 0)
		FROM cancellation_requests`).Scan(&st.Total, &st.Pending, &st.Approved, &st.Rejected, &st.TotalRefunded)
	if err != nil {
		return models.CancellationStats{}, fmt.Errorf("cancellation stats: %w", err)
	}
	return st, nil
}

func (t sqlTx) HasPendingCancellation(ctx context.Context, bookingID int64) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cancellation_requests
		WHERE booking_id = ? AND status = 'pending' FOR UPDATE`, bookingID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("pending cancellation check: %w", err)
	}
	return n > 0, nil
}

func (t sqlTx) InsertCancellation(ctx context.Context, c *models.CancellationRequest) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO cancellation_requests (booking_id, requested_by, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.BookingID, c.RequestedBy, c.Reason, string(c.Status), c.CreatedAt)
	if intdb.IsDuplicateKey(err, "uniq_pending_cancellation") {
		return ErrDuplicatePending
	}
	if err != nil {
		return fmt.Errorf("insert cancellation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (t sqlTx) LockCancellation(ctx context.Context, id int64) (models.CancellationRequest, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+cancellationColumns+` FROM cancellation_requests WHERE id = ? FOR UPDATE`, id)
	return scanCancellation(row)
}

func (t sqlTx) UpdateCancellationDecision(ctx context.Context, c models.CancellationRequest) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE cancellation_requests
		SET status = ?, refund_amount = ?, refund_percent = ?, hours_to_departure = ?,
		    decided_by = ?, decided_at = ?, remarks = ?
		WHERE id = ? AND status = 'pending'`,
		string(c.Status), c.RefundAmount, c.RefundPercent, c.HoursToDeparture,
		c.DecidedBy, c.DecidedAt, intdb.NullIfEmpty(c.Remarks), c.ID)
	if err != nil {
		return fmt.Errorf("decide cancellation: %w", err)
	}
	return rowsAffectedOne(res)
}
