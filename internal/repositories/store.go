package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intdb "bustix/internal/db"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrSeatTaken            = errors.New("seat already held")
	ErrDuplicateReference   = errors.New("booking reference already exists")
	ErrDuplicatePending     = errors.New("pending cancellation already exists")
	ErrDuplicateIdempotency = errors.New("idempotency key already used")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrSeatCounter          = errors.New("available seat counter out of range")
)

// Reader serves the read-only views. Nothing it returns may be written back
// by a mutating path.
type Reader interface {
	TripByID(ctx context.Context, id int64) (models.Trip, error)
	// SeatMap reads the counter and the held seats as one snapshot.
	SeatMap(ctx context.Context, tripID int64) (models.SeatMap, error)
	BookingByID(ctx context.Context, id int64) (models.BookingDetail, error)
	BookingByReference(ctx context.Context, reference string) (models.BookingDetail, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.BookingDetail, error)
	BookingStats(ctx context.Context) (models.BookingStats, error)
	PaymentsForBooking(ctx context.Context, bookingID int64) ([]models.PaymentRecord, error)
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.PaymentListing, error)
	CancellationByID(ctx context.Context, id int64) (models.CancellationRequest, error)
	ListCancellations(ctx context.Context, f models.CancellationFilter) ([]models.CancellationRequest, error)
	CancellationStats(ctx context.Context) (models.CancellationStats, error)
	VerificationLogs(ctx context.Context, bookingID int64) ([]models.VerificationLogEntry, error)
	StalePendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]int64, error)
}

// Tx is the unit of work shared by the booking core. Lock* methods hold the
// row until the transaction ends.
type Tx interface {
	LockTrip(ctx context.Context, id int64) (models.Trip, error)
	AdjustAvailableSeats(ctx context.Context, tripID int64, delta int) error
	SeatHeld(ctx context.Context, tripID int64, seat int) (bool, error)

	LockBookingByID(ctx context.Context, id int64) (models.Booking, error)
	LockBookingByReference(ctx context.Context, reference string) (models.Booking, error)
	BookingByIdempotencyKey(ctx context.Context, userID int64, key string) (models.Booking, error)
	InsertBooking(ctx context.Context, b *models.Booking) error
	UpdatePaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) error
	UpdateVerificationStatus(ctx context.Context, bookingID int64, status models.VerificationStatus) error

	PaymentByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error)
	InsertPayment(ctx context.Context, p *models.PaymentRecord) error

	HasPendingCancellation(ctx context.Context, bookingID int64) (bool, error)
	InsertCancellation(ctx context.Context, c *models.CancellationRequest) error
	LockCancellation(ctx context.Context, id int64) (models.CancellationRequest, error)
	UpdateCancellationDecision(ctx context.Context, c models.CancellationRequest) error

	InsertVerificationLog(ctx context.Context, e *models.VerificationLogEntry) error
}

// Store is the booking ledger and seat inventory.
type Store interface {
	Reader
	// InTx runs fn in one transaction. fn's error rolls everything back.
	InTx(ctx context.Context, op string, fn func(tx Tx) error) error
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) InTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if err := fn(sqlTx{q: tx}); err != nil {
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// classify turns lock contention into a retryable error and leaves domain
// errors untouched.
func classify(op string, err error) error {
	if intdb.IsContention(err) {
		return domain.RetryableError{Op: op, Err: err}
	}
	return err
}

type sqlTx struct {
	q querier
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func rowsAffectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
