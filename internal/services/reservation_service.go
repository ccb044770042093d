package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bustix/internal/credential"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/metrics"
	"bustix/internal/repositories"
	"bustix/internal/utils"

	"github.com/google/uuid"
)

const (
	defaultReferencePrefix = "AHC"
	referenceAttempts      = 3
)

type ReserveInput struct {
	TripID         int64            `json:"trip_id"`
	SeatNumber     int              `json:"seat_number"`
	Passenger      models.Passenger `json:"passenger"`
	AmountDue      int64            `json:"amount_due"`
	PayOnBus       bool             `json:"pay_on_bus"`
	IdempotencyKey string           `json:"-"`
}

func (in *ReserveInput) normalize() error {
	in.Passenger.Name = utils.NormalizeSpace(in.Passenger.Name)
	in.Passenger.Email = strings.TrimSpace(in.Passenger.Email)
	in.Passenger.Phone = strings.TrimSpace(in.Passenger.Phone)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	switch {
	case in.TripID <= 0:
		return domain.ValidationError{Field: "trip_id", Msg: "must be positive"}
	case in.SeatNumber < 1:
		return domain.ValidationError{Field: "seat_number", Msg: "must be at least 1", Code: domain.CodeSeatOutOfRange}
	case in.Passenger.Name == "":
		return domain.ValidationError{Field: "passenger.name", Msg: "is required"}
	case in.AmountDue < 0:
		return domain.ValidationError{Field: "amount_due", Msg: "must not be negative"}
	case len(in.IdempotencyKey) > 64:
		return domain.ValidationError{Field: "idempotency_key", Msg: "at most 64 characters"}
	}
	return nil
}

// ReservationService holds seats. It is the only writer that takes seats out
// of a trip's inventory.
type ReservationService struct {
	Deps
	ReferencePrefix string
	// NewReference overrides reference generation in tests.
	NewReference func(prefix string) string
}

// NewReference returns PREFIX-XXXXXXXXXX with ten uppercase hex characters.
func NewReference(prefix string) string {
	if prefix == "" {
		prefix = defaultReferencePrefix
	}
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(hex[:10])
}

func (s ReservationService) reference() string {
	if s.NewReference != nil {
		return s.NewReference(s.ReferencePrefix)
	}
	return NewReference(s.ReferencePrefix)
}

// Reserve books one seat on a trip for the actor. A repeated call with the
// same idempotency key returns the booking created by the first call.
func (s ReservationService) Reserve(ctx context.Context, actor domain.Actor, in ReserveInput) (models.Booking, error) {
	ctx, done := s.begin(ctx, "reserve")
	defer done()

	b, replayed, err := s.reserve(ctx, actor, in)
	metrics.Reservations.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		logger.WithContext(ctx).Info("reservation rejected", "trip_id", in.TripID, "seat", in.SeatNumber, "code", domain.CodeOf(err))
		return models.Booking{}, err
	}
	if replayed {
		return b, nil
	}

	s.invalidateSeatMap(ctx, b.TripID)
	s.notifier().NotifyBookingCreated(ctx, b)
	logger.WithContext(ctx).Info("seat reserved",
		"booking_id", b.ID, "reference", b.Reference, "trip_id", b.TripID, "seat", b.SeatNumber, "status", b.PaymentStatus)
	return b, nil
}

func (s ReservationService) reserve(ctx context.Context, actor domain.Actor, in ReserveInput) (models.Booking, bool, error) {
	if actor.ID <= 0 {
		return models.Booking{}, false, domain.ForbiddenError{Msg: "authenticated user required"}
	}
	if err := in.normalize(); err != nil {
		return models.Booking{}, false, err
	}

	var lastErr error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		var (
			booking  models.Booking
			replayed bool
		)
		err := s.Store.InTx(ctx, "reserve", func(tx repositories.Tx) error {
			var err error
			booking, replayed, err = s.reserveTx(ctx, tx, actor, in)
			return err
		})
		switch {
		case err == nil:
			return booking, replayed, nil
		case errors.Is(err, repositories.ErrDuplicateReference):
			logger.WithContext(ctx).Warn("booking reference collision, regenerating", "attempt", attempt+1)
			lastErr = err
		case errors.Is(err, repositories.ErrDuplicateIdempotency):
			// A concurrent call with the same key won; the next attempt replays it.
			lastErr = err
		default:
			return models.Booking{}, false, contextErr("reserve", err)
		}
	}
	return models.Booking{}, false, domain.InternalError{Msg: "could not allocate a booking reference", Err: lastErr}
}

func (s ReservationService) reserveTx(ctx context.Context, tx repositories.Tx, actor domain.Actor, in ReserveInput) (models.Booking, bool, error) {
	trip, err := tx.LockTrip(ctx, in.TripID)
	if err != nil {
		return models.Booking{}, false, tripNotFound(err)
	}

	if in.IdempotencyKey != "" {
		prior, err := tx.BookingByIdempotencyKey(ctx, int64(actor.ID), in.IdempotencyKey)
		switch {
		case err == nil:
			if prior.TripID != in.TripID || prior.SeatNumber != in.SeatNumber {
				return models.Booking{}, false, domain.ConflictError{
					Resource: "booking", Code: domain.CodeIdempotencyReused,
					Msg: "idempotency key was used for a different seat",
				}
			}
			return prior, true, nil
		case !errors.Is(err, repositories.ErrNotFound):
			return models.Booking{}, false, err
		}
	}

	now := s.now()
	if trip.Status != models.TripScheduled || !trip.DepartureAt.After(now) {
		return models.Booking{}, false, domain.PolicyError{
			Code: domain.CodeTripNotBookable,
			Msg:  fmt.Sprintf("trip %d is not open for booking", trip.ID),
		}
	}
	if in.SeatNumber > trip.TotalSeats {
		return models.Booking{}, false, domain.ValidationError{
			Field: "seat_number", Code: domain.CodeSeatOutOfRange,
			Msg: fmt.Sprintf("must be between 1 and %d", trip.TotalSeats),
		}
	}
	held, err := tx.SeatHeld(ctx, trip.ID, in.SeatNumber)
	if err != nil {
		return models.Booking{}, false, err
	}
	if held {
		return models.Booking{}, false, seatTaken(in.SeatNumber)
	}
	if trip.AvailableSeats < 1 {
		return models.Booking{}, false, domain.ConflictError{Resource: "trip", Code: domain.CodeNoSeatsAvailable, Msg: "no seats available"}
	}

	status := models.PaymentPending
	if in.PayOnBus {
		status = models.PaymentPayOnBus
	}
	amount := in.AmountDue
	if amount == 0 {
		amount = trip.Fare
	}
	b := models.Booking{
		Reference:          s.reference(),
		TripID:             trip.ID,
		UserID:             int64(actor.ID),
		SeatNumber:         in.SeatNumber,
		Passenger:          in.Passenger,
		AmountDue:          amount,
		PaymentStatus:      status,
		VerificationStatus: models.VerificationPending,
		IdempotencyKey:     in.IdempotencyKey,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	b.Credential, err = credential.Issue(credential.For(b, trip, s.loc()))
	if err != nil {
		return models.Booking{}, false, domain.InternalError{Msg: "credential", Err: err}
	}

	if err := tx.InsertBooking(ctx, &b); err != nil {
		if errors.Is(err, repositories.ErrSeatTaken) {
			return models.Booking{}, false, seatTaken(in.SeatNumber)
		}
		return models.Booking{}, false, err
	}
	if err := tx.AdjustAvailableSeats(ctx, trip.ID, -1); err != nil {
		if errors.Is(err, repositories.ErrSeatCounter) {
			return models.Booking{}, false, domain.ConflictError{Resource: "trip", Code: domain.CodeNoSeatsAvailable, Msg: "no seats available"}
		}
		return models.Booking{}, false, err
	}
	return b, false, nil
}

func seatTaken(seat int) error {
	return domain.ConflictError{Resource: "seat", Code: domain.CodeSeatTaken, Msg: fmt.Sprintf("seat %d is already booked", seat)}
}
