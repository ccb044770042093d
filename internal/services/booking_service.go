package services

import (
	"context"
	"fmt"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/utils"
)

// BookingService serves the read side: booking lookups, lists, stats, the
// seat map and printable passes.
type BookingService struct {
	Deps
	Currency string
}

// BookingQuery filters the booking list. Non-admins only ever see their own.
type BookingQuery struct {
	TripID int64
	Status models.PaymentStatus
	Page   domain.Pagination
}

func canRead(actor domain.Actor, owner int64) bool {
	return actor.IsStaff() || (actor.ID != 0 && int64(actor.ID) == owner)
}

func (s BookingService) Get(ctx context.Context, actor domain.Actor, id int64) (models.BookingDetail, error) {
	b, err := s.Store.BookingByID(ctx, id)
	if err != nil {
		return models.BookingDetail{}, bookingNotFound(err)
	}
	if !canRead(actor, b.UserID) {
		return models.BookingDetail{}, domain.ForbiddenError{Msg: "not your booking"}
	}
	return b, nil
}

func (s BookingService) GetByReference(ctx context.Context, actor domain.Actor, reference string) (models.BookingDetail, error) {
	reference = utils.NormalizeReference(reference)
	if reference == "" {
		return models.BookingDetail{}, domain.ValidationError{Field: "reference", Msg: "is required"}
	}
	b, err := s.Store.BookingByReference(ctx, reference)
	if err != nil {
		return models.BookingDetail{}, bookingNotFound(err)
	}
	if !canRead(actor, b.UserID) {
		return models.BookingDetail{}, domain.ForbiddenError{Msg: "not your booking"}
	}
	return b, nil
}

func (s BookingService) List(ctx context.Context, actor domain.Actor, q BookingQuery) ([]models.BookingDetail, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.ValidationError{Field: "status", Msg: "unknown payment status"}
	}
	limit, offset := q.Page.Normalize()
	f := models.BookingFilter{TripID: q.TripID, PaymentStatus: q.Status, Limit: limit, Offset: offset}
	if !actor.IsAdmin() {
		if actor.ID <= 0 {
			return nil, domain.ForbiddenError{Msg: "authenticated user required"}
		}
		f.UserID = int64(actor.ID)
	}
	return s.Store.ListBookings(ctx, f)
}

func (s BookingService) Stats(ctx context.Context, actor domain.Actor) (models.BookingStats, error) {
	if err := adminOnly(actor); err != nil {
		return models.BookingStats{}, err
	}
	return s.Store.BookingStats(ctx)
}

// Payments lists the payment attempts recorded for a booking.
func (s BookingService) Payments(ctx context.Context, actor domain.Actor, bookingID int64) ([]models.PaymentRecord, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.Store.PaymentsForBooking(ctx, bookingID)
}

// Scans lists the verification log of a booking. Staff only.
func (s BookingService) Scans(ctx context.Context, actor domain.Actor, bookingID int64) ([]models.VerificationLogEntry, error) {
	if err := staffOnly(actor); err != nil {
		return nil, err
	}
	if _, err := s.Store.BookingByID(ctx, bookingID); err != nil {
		return nil, bookingNotFound(err)
	}
	return s.Store.VerificationLogs(ctx, bookingID)
}

// SeatMap returns the occupancy of a trip, from the cache when present. It is
// for display only; Reserve never reads it.
func (s BookingService) SeatMap(ctx context.Context, tripID int64) (models.SeatMap, error) {
	if tripID <= 0 {
		return models.SeatMap{}, domain.ValidationError{Field: "trip_id", Msg: "must be positive"}
	}
	if s.SeatCache == nil {
		m, err := s.Store.SeatMap(ctx, tripID)
		if err != nil {
			return models.SeatMap{}, tripNotFound(err)
		}
		return m, nil
	}

	log := logger.WithContext(ctx)
	m, ok, err := s.SeatCache.Get(ctx, tripID)
	if err != nil {
		log.Warn("seat map cache read failed", "trip_id", tripID, "error", err)
	} else if ok {
		return m, nil
	}
	gen, genErr := s.SeatCache.Generation(ctx, tripID)
	if genErr != nil {
		log.Warn("seat map generation read failed", "trip_id", tripID, "error", genErr)
	}

	m, err = s.Store.SeatMap(ctx, tripID)
	if err != nil {
		return models.SeatMap{}, tripNotFound(err)
	}
	if genErr != nil {
		return m, nil
	}
	stored, err := s.SeatCache.Set(ctx, m, gen)
	switch {
	case err != nil:
		log.Warn("seat map cache write failed", "trip_id", tripID, "error", err)
	case !stored:
		log.Debug("seat map changed while loading, not cached", "trip_id", tripID)
	}
	return m, nil
}

// BoardingPass renders the printable pass for a paid or pay-on-bus booking.
func (s BookingService) BoardingPass(ctx context.Context, actor domain.Actor, bookingID int64) ([]byte, string, error) {
	b, err := s.Get(ctx, actor, bookingID)
	if err != nil {
		return nil, "", err
	}
	switch b.PaymentStatus {
	case models.PaymentCompleted, models.PaymentPayOnBus:
	default:
		return nil, "", domain.PolicyError{Code: domain.CodeNotPaid, Msg: fmt.Sprintf("no boarding pass for a %s booking", b.PaymentStatus)}
	}
	pdf, name, err := buildBoardingPassPDF(boardingPassData{
		Booking:  b,
		Currency: s.Currency,
		Location: s.loc(),
		IssuedAt: s.now(),
	})
	if err != nil {
		return nil, "", domain.InternalError{Msg: "boarding pass", Err: err}
	}
	logger.WithContext(ctx).Info("boarding pass generated", "booking_id", b.ID, "reference", b.Reference)
	return pdf, name, nil
}
