package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/metrics"
	"bustix/internal/repositories"
)

const maxReasonLen = 500

// DecisionResult is what an admin sees after deciding a request.
type DecisionResult struct {
	Cancellation     models.CancellationRequest `json:"cancellation"`
	RefundAmount     int64                      `json:"refund_amount"`
	RefundPercent    int                        `json:"refund_percent"`
	HoursToDeparture float64                    `json:"hours_to_departure"`
}

// CancellationService files cancellation requests and applies admin
// decisions. Approval is the only path that refunds a booking.
type CancellationService struct {
	Deps
	Policy RefundPolicy
}

// RequestCancellation files a pending request for a paid, unused booking.
func (s CancellationService) RequestCancellation(ctx context.Context, actor domain.Actor, bookingID int64, reason string) (models.CancellationRequest, error) {
	ctx, done := s.begin(ctx, "request_cancellation")
	defer done()

	c, err := s.request(ctx, actor, bookingID, reason)
	metrics.Cancellations.WithLabelValues("request", metrics.Result(err)).Inc()
	if err != nil {
		if domain.IsForbidden(err) {
			logSecurity(ctx, err, "op", "request_cancellation", "booking_id", bookingID)
		}
		return models.CancellationRequest{}, err
	}
	logger.WithContext(ctx).Info("cancellation requested", "cancellation_id", c.ID, "booking_id", bookingID)
	return c, nil
}

func (s CancellationService) request(ctx context.Context, actor domain.Actor, bookingID int64, reason string) (models.CancellationRequest, error) {
	reason = strings.TrimSpace(reason)
	switch {
	case reason == "":
		return models.CancellationRequest{}, domain.ValidationError{Field: "reason", Msg: "is required"}
	case len(reason) > maxReasonLen:
		return models.CancellationRequest{}, domain.ValidationError{Field: "reason", Msg: fmt.Sprintf("at most %d characters", maxReasonLen)}
	case bookingID <= 0:
		return models.CancellationRequest{}, domain.ValidationError{Field: "booking_id", Msg: "must be positive"}
	}
	policy := s.Policy.orDefault()

	var out models.CancellationRequest
	err := s.Store.InTx(ctx, "request_cancellation", func(tx repositories.Tx) error {
		b, err := tx.LockBookingByID(ctx, bookingID)
		if err != nil {
			return bookingNotFound(err)
		}
		if !actor.CanAccess(domain.ID(b.UserID)) {
			return domain.ForbiddenError{Msg: "not your booking"}
		}
		switch b.PaymentStatus {
		case models.PaymentCompleted:
		case models.PaymentRefunded:
			return domain.ConflictError{Resource: "booking", Code: domain.CodeStaleState, Msg: "booking is already refunded", Current: string(b.PaymentStatus)}
		default:
			return domain.PolicyError{Code: domain.CodeNotPaid, Msg: "only paid bookings can be cancelled"}
		}
		if b.VerificationStatus == models.VerificationUsed {
			return domain.PolicyError{Code: domain.CodeTicketUsed, Msg: "ticket has already been used"}
		}
		pending, err := tx.HasPendingCancellation(ctx, b.ID)
		if err != nil {
			return err
		}
		if pending {
			return cancellationPending()
		}

		trip, err := tx.LockTrip(ctx, b.TripID)
		if err != nil {
			return tripNotFound(err)
		}
		now := s.now()
		hours := trip.HoursToDeparture(now)
		if !policy.Accepts(hours) {
			return domain.PolicyError{
				Code:             domain.CodeTooCloseToDeparture,
				Msg:              fmt.Sprintf("cancellations close %g hours before departure", policy.MinNoticeHours),
				HoursToDeparture: domain.Hours(hours),
			}
		}

		out = models.CancellationRequest{
			BookingID:   b.ID,
			RequestedBy: int64(actor.ID),
			Reason:      reason,
			Status:      models.CancellationPending,
			CreatedAt:   now,
		}
		if err := tx.InsertCancellation(ctx, &out); err != nil {
			if errors.Is(err, repositories.ErrDuplicatePending) {
				return cancellationPending()
			}
			return err
		}
		return nil
	})
	return out, contextErr("request_cancellation", err)
}

// Decide approves or rejects a pending request. The refund tier is taken at
// decision time, not at request time.
func (s CancellationService) Decide(ctx context.Context, actor domain.Actor, cancellationID int64, decision models.Decision, remarks string) (DecisionResult, error) {
	ctx, done := s.begin(ctx, "decide_cancellation")
	defer done()

	res, tripID, err := s.decide(ctx, actor, cancellationID, decision, remarks)
	metrics.Cancellations.WithLabelValues(string(decision), metrics.Result(err)).Inc()
	if err != nil {
		if domain.IsForbidden(err) {
			logSecurity(ctx, err, "op", "decide_cancellation", "cancellation_id", cancellationID)
		}
		return DecisionResult{}, err
	}

	if res.Cancellation.Status == models.CancellationApproved {
		s.invalidateSeatMap(ctx, tripID)
	}
	s.notifier().NotifyCancellationDecision(ctx, res.Cancellation)
	logger.WithContext(ctx).Info("cancellation decided",
		"cancellation_id", cancellationID, "status", res.Cancellation.Status,
		"refund_amount", res.RefundAmount, "refund_percent", res.RefundPercent,
		"hours_to_departure", res.HoursToDeparture)
	return res, nil
}

func (s CancellationService) decide(ctx context.Context, actor domain.Actor, id int64, decision models.Decision, remarks string) (DecisionResult, int64, error) {
	if err := adminOnly(actor); err != nil {
		return DecisionResult{}, 0, err
	}
	if !decision.Valid() {
		return DecisionResult{}, 0, domain.ValidationError{Field: "decision", Msg: "must be approve or reject"}
	}
	remarks = strings.TrimSpace(remarks)
	policy := s.Policy.orDefault()

	var (
		res    DecisionResult
		tripID int64
	)
	err := s.Store.InTx(ctx, "decide_cancellation", func(tx repositories.Tx) error {
		c, err := tx.LockCancellation(ctx, id)
		if err != nil {
			return cancellationNotFound(err)
		}
		if c.Status != models.CancellationPending {
			return domain.ConflictError{
				Resource: "cancellation request", Code: domain.CodeAlreadyDecided,
				Msg: fmt.Sprintf("request is already %s", c.Status), Current: string(c.Status),
			}
		}
		b, err := tx.LockBookingByID(ctx, c.BookingID)
		if err != nil {
			return bookingNotFound(err)
		}
		trip, err := tx.LockTrip(ctx, b.TripID)
		if err != nil {
			return tripNotFound(err)
		}
		tripID = trip.ID

		now := s.now()
		hours := trip.HoursToDeparture(now)
		decidedBy := int64(actor.ID)
		c.DecidedBy = &decidedBy
		c.DecidedAt = &now
		c.Remarks = remarks
		c.HoursToDeparture = domain.Hours(hours)

		if decision == models.DecisionReject {
			c.Status = models.CancellationRejected
			if err := tx.UpdateCancellationDecision(ctx, c); err != nil {
				return decisionLost(err)
			}
			res = DecisionResult{Cancellation: c, HoursToDeparture: hours}
			return nil
		}

		if b.VerificationStatus == models.VerificationUsed {
			return domain.PolicyError{Code: domain.CodeTicketUsed, Msg: "ticket was used after the request was filed"}
		}
		if err := b.PaymentStatus.ValidateTransition(models.PaymentRefunded); err != nil {
			return domain.ConflictError{
				Resource: "booking", Code: domain.CodeStaleState,
				Msg: fmt.Sprintf("booking is %s", b.PaymentStatus), Current: string(b.PaymentStatus), Err: err,
			}
		}

		amount, pct := policy.Refund(b.AmountDue, hours)
		c.Status = models.CancellationApproved
		c.RefundAmount = amount
		c.RefundPercent = pct

		if err := tx.UpdatePaymentStatus(ctx, b.ID, models.PaymentRefunded); err != nil {
			return err
		}
		if err := tx.AdjustAvailableSeats(ctx, trip.ID, 1); err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		if err := tx.UpdateCancellationDecision(ctx, c); err != nil {
			return decisionLost(err)
		}
		res = DecisionResult{Cancellation: c, RefundAmount: amount, RefundPercent: pct, HoursToDeparture: hours}
		return nil
	})
	return res, tripID, contextErr("decide_cancellation", err)
}

// decisionLost maps a conditional update that matched no pending row.
func decisionLost(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.ConflictError{Resource: "cancellation request", Code: domain.CodeAlreadyDecided, Msg: "request was decided concurrently"}
	}
	return err
}

func cancellationPending() error {
	return domain.ConflictError{Resource: "cancellation request", Code: domain.CodeCancellationPending, Msg: "a request is already pending for this booking"}
}

// Get returns one request to its owner or an admin.
func (s CancellationService) Get(ctx context.Context, actor domain.Actor, id int64) (models.CancellationRequest, error) {
	c, err := s.Store.CancellationByID(ctx, id)
	if err != nil {
		return models.CancellationRequest{}, cancellationNotFound(err)
	}
	if !actor.CanAccess(domain.ID(c.RequestedBy)) {
		return models.CancellationRequest{}, domain.ForbiddenError{Msg: "not your cancellation request"}
	}
	return c, nil
}

// List is the admin queue, optionally filtered by status.
func (s CancellationService) List(ctx context.Context, actor domain.Actor, status models.CancellationStatus, page domain.Pagination) ([]models.CancellationRequest, error) {
	if err := adminOnly(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, domain.ValidationError{Field: "status", Msg: "unknown status"}
	}
	limit, offset := page.Normalize()
	return s.Store.ListCancellations(ctx, models.CancellationFilter{Status: status, Limit: limit, Offset: offset})
}

// Mine lists the actor's own requests.
func (s CancellationService) Mine(ctx context.Context, actor domain.Actor, page domain.Pagination) ([]models.CancellationRequest, error) {
	if actor.ID <= 0 {
		return nil, domain.ForbiddenError{Msg: "authenticated user required"}
	}
	limit, offset := page.Normalize()
	return s.Store.ListCancellations(ctx, models.CancellationFilter{RequestedBy: int64(actor.ID), Limit: limit, Offset: offset})
}

func (s CancellationService) Stats(ctx context.Context, actor domain.Actor) (models.CancellationStats, error) {
	if err := adminOnly(actor); err != nil {
		return models.CancellationStats{}, err
	}
	return s.Store.CancellationStats(ctx)
}

