package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/gateway"
	"bustix/internal/logger"
	"bustix/internal/metrics"
	"bustix/internal/repositories"
	"bustix/internal/utils"

	"github.com/google/uuid"
)

// PaymentNotice is a payment outcome reported for a booking, by the gateway
// or by staff.
type PaymentNotice struct {
	Reference     string                `json:"booking_reference"`
	TransactionID string                `json:"transaction_id"`
	Amount        int64                 `json:"amount"`
	Method        models.PaymentMethod  `json:"method"`
	Outcome       models.PaymentOutcome `json:"outcome"`
}

func (n *PaymentNotice) normalize() error {
	n.Reference = utils.NormalizeReference(n.Reference)
	n.TransactionID = strings.TrimSpace(n.TransactionID)
	if n.Method == "" {
		n.Method = models.MethodGateway
	}
	switch {
	case n.Reference == "":
		return domain.ValidationError{Field: "booking_reference", Msg: "is required"}
	case n.TransactionID == "":
		return domain.ValidationError{Field: "transaction_id", Msg: "is required"}
	case !n.Outcome.Valid():
		return domain.ValidationError{Field: "outcome", Msg: "must be completed or failed"}
	case n.Method != models.MethodGateway && n.Method != models.MethodManual:
		return domain.ValidationError{Field: "method", Msg: "must be gateway or manual"}
	case n.Amount < 0:
		return domain.ValidationError{Field: "amount", Msg: "must not be negative"}
	}
	return nil
}

type PaymentResult struct {
	Booking models.Booking `json:"booking"`
	// Replayed is set when the transaction was already applied.
	Replayed bool `json:"replayed"`
	// Ignored is set for gateway notifications that carry no final outcome.
	Ignored bool `json:"ignored,omitempty"`
}

// PaymentService reconciles payment outcomes against the booking ledger.
type PaymentService struct {
	Deps
	Gateway gateway.PayHere
}

// ApplyPayment records a payment outcome once per transaction id and moves the
// booking accordingly. Replays are no-ops.
func (s PaymentService) ApplyPayment(ctx context.Context, n PaymentNotice) (PaymentResult, error) {
	ctx, done := s.begin(ctx, "apply_payment")
	defer done()

	if err := n.normalize(); err != nil {
		metrics.Payments.WithLabelValues(metrics.Result(err)).Inc()
		return PaymentResult{}, err
	}

	var res PaymentResult
	err := s.Store.InTx(ctx, "apply_payment", func(tx repositories.Tx) error {
		b, err := tx.LockBookingByReference(ctx, n.Reference)
		if err != nil {
			return bookingNotFound(err)
		}
		res, err = s.applyTx(ctx, tx, b, n)
		return err
	})
	return s.finish(ctx, n, res, contextErr("apply_payment", err))
}

// ApplyManualVerification marks a booking paid at the counter or on the bus.
func (s PaymentService) ApplyManualVerification(ctx context.Context, actor domain.Actor, bookingID int64) (models.Booking, error) {
	ctx, done := s.begin(ctx, "manual_payment")
	defer done()

	if err := staffOnly(actor); err != nil {
		logSecurity(ctx, err, "op", "manual_payment", "booking_id", bookingID)
		return models.Booking{}, err
	}
	if bookingID <= 0 {
		return models.Booking{}, domain.ValidationError{Field: "booking_id", Msg: "must be positive"}
	}

	n := PaymentNotice{
		TransactionID: "MANUAL-" + strings.ToUpper(uuid.NewString()),
		Method:        models.MethodManual,
		Outcome:       models.OutcomeCompleted,
	}
	var res PaymentResult
	err := s.Store.InTx(ctx, "manual_payment", func(tx repositories.Tx) error {
		b, err := tx.LockBookingByID(ctx, bookingID)
		if err != nil {
			return bookingNotFound(err)
		}
		n.Reference = b.Reference
		n.Amount = b.AmountDue
		res, err = s.applyTx(ctx, tx, b, n)
		return err
	})
	res, err = s.finish(ctx, n, res, contextErr("manual_payment", err))
	if err != nil {
		return models.Booking{}, err
	}
	logger.WithContext(ctx).Info("manual payment recorded", "booking_id", bookingID, "verified_by", actor.ID, "transaction_id", n.TransactionID)
	return res.Booking, nil
}

func (s PaymentService) applyTx(ctx context.Context, tx repositories.Tx, b models.Booking, n PaymentNotice) (PaymentResult, error) {
	prior, err := tx.PaymentByTransaction(ctx, n.TransactionID)
	switch {
	case err == nil:
		if prior.BookingID != b.ID {
			return PaymentResult{}, transactionReused(n.TransactionID)
		}
		return PaymentResult{Booking: b, Replayed: true}, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return PaymentResult{}, err
	}

	switch b.PaymentStatus {
	case models.PaymentCompleted:
		return PaymentResult{}, domain.ConflictError{
			Resource: "booking", Code: domain.CodeAlreadyPaid,
			Msg: "booking is already paid", Current: string(b.PaymentStatus),
		}
	case models.PaymentRefunded, models.PaymentFailed:
		return PaymentResult{}, domain.ConflictError{
			Resource: "booking", Code: domain.CodeStaleState,
			Msg: fmt.Sprintf("booking is %s", b.PaymentStatus), Current: string(b.PaymentStatus),
		}
	}

	target := models.PaymentStatus(n.Outcome)
	if err := b.PaymentStatus.ValidateTransition(target); err != nil {
		return PaymentResult{}, err
	}
	if n.Outcome == models.OutcomeCompleted && n.Amount != b.AmountDue {
		return PaymentResult{}, domain.IntegrityError{
			Code: domain.CodeAmountMismatch,
			Msg:  fmt.Sprintf("paid %s does not match amount due %s", utils.FormatAmount(n.Amount), utils.FormatAmount(b.AmountDue)),
		}
	}

	rec := models.PaymentRecord{
		BookingID:     b.ID,
		Amount:        n.Amount,
		TransactionID: n.TransactionID,
		Method:        n.Method,
		Status:        n.Outcome,
		RecordedAt:    s.now(),
	}
	if err := tx.InsertPayment(ctx, &rec); err != nil {
		if errors.Is(err, repositories.ErrDuplicateTransaction) {
			return PaymentResult{}, transactionReused(n.TransactionID)
		}
		return PaymentResult{}, err
	}
	if err := tx.UpdatePaymentStatus(ctx, b.ID, target); err != nil {
		return PaymentResult{}, err
	}
	if target == models.PaymentFailed {
		if err := tx.AdjustAvailableSeats(ctx, b.TripID, 1); err != nil {
			return PaymentResult{}, fmt.Errorf("release seat: %w", err)
		}
	}
	b.PaymentStatus = target
	b.UpdatedAt = rec.RecordedAt
	return PaymentResult{Booking: b}, nil
}

func (s PaymentService) finish(ctx context.Context, n PaymentNotice, res PaymentResult, err error) (PaymentResult, error) {
	log := logger.WithContext(ctx).With("reference", n.Reference, "transaction_id", n.TransactionID, "outcome", n.Outcome)
	switch {
	case err != nil:
		metrics.Payments.WithLabelValues(metrics.Result(err)).Inc()
		if domain.IsIntegrity(err) {
			logSecurity(ctx, err, "reference", n.Reference, "transaction_id", n.TransactionID)
		} else {
			log.Info("payment not applied", "code", domain.CodeOf(err), "error", err)
		}
		return PaymentResult{}, err
	case res.Replayed:
		metrics.Payments.WithLabelValues("replayed").Inc()
		log.Info("payment replay ignored")
		return res, nil
	}

	metrics.Payments.WithLabelValues(string(n.Outcome)).Inc()
	log.Info("payment applied", "booking_id", res.Booking.ID, "status", res.Booking.PaymentStatus)
	if res.Booking.PaymentStatus == models.PaymentCompleted {
		s.notifier().NotifyPaymentConfirmed(ctx, res.Booking)
	} else {
		s.invalidateSeatMap(ctx, res.Booking.TripID)
	}
	return res, nil
}

// HandleGatewayNotification authenticates a gateway callback before anything
// is read or written, then applies it.
func (s PaymentService) HandleGatewayNotification(ctx context.Context, n gateway.Notification) (PaymentResult, error) {
	if err := s.Gateway.Verify(n); err != nil {
		metrics.Payments.WithLabelValues(metrics.Result(err)).Inc()
		logSecurity(ctx, err, "order_id", n.OrderID, "payment_id", n.PaymentID)
		return PaymentResult{}, err
	}
	if s.Gateway.Currency != "" && !strings.EqualFold(n.Currency, s.Gateway.Currency) {
		err := domain.IntegrityError{Code: domain.CodeAmountMismatch, Msg: "unexpected currency " + n.Currency}
		metrics.Payments.WithLabelValues(metrics.Result(err)).Inc()
		logSecurity(ctx, err, "order_id", n.OrderID)
		return PaymentResult{}, err
	}

	outcome, final := n.Outcome()
	if !final {
		logger.WithContext(ctx).Info("gateway notification without final status", "order_id", n.OrderID, "status_code", n.StatusCode)
		return PaymentResult{Ignored: true}, nil
	}
	amount, err := utils.ParseAmount(n.Amount)
	if err != nil {
		return PaymentResult{}, domain.ValidationError{Field: "payhere_amount", Msg: "invalid amount", Err: err}
	}
	return s.ApplyPayment(ctx, PaymentNotice{
		Reference:     n.OrderID,
		TransactionID: n.PaymentID,
		Amount:        amount,
		Method:        models.MethodGateway,
		Outcome:       outcome,
	})
}

// Checkout returns the signed payment page parameters for an unpaid booking.
func (s PaymentService) Checkout(ctx context.Context, actor domain.Actor, bookingID int64) (gateway.CheckoutRequest, error) {
	ctx, done := s.begin(ctx, "checkout")
	defer done()

	b, err := s.Store.BookingByID(ctx, bookingID)
	if err != nil {
		return gateway.CheckoutRequest{}, contextErr("checkout", bookingNotFound(err))
	}
	if !actor.CanAccess(domain.ID(b.UserID)) {
		return gateway.CheckoutRequest{}, domain.ForbiddenError{Msg: "not your booking"}
	}
	switch b.PaymentStatus {
	case models.PaymentPending, models.PaymentPayOnBus:
	case models.PaymentCompleted:
		return gateway.CheckoutRequest{}, domain.ConflictError{Resource: "booking", Code: domain.CodeAlreadyPaid, Msg: "booking is already paid", Current: string(b.PaymentStatus)}
	default:
		return gateway.CheckoutRequest{}, domain.ConflictError{Resource: "booking", Code: domain.CodeStaleState, Msg: fmt.Sprintf("booking is %s", b.PaymentStatus), Current: string(b.PaymentStatus)}
	}
	return s.Gateway.Checkout(b), nil
}

// List is the admin payments view across bookings.
func (s PaymentService) List(ctx context.Context, actor domain.Actor, status models.PaymentOutcome, method models.PaymentMethod, page domain.Pagination) ([]models.PaymentListing, error) {
	if err := adminOnly(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, domain.ValidationError{Field: "status", Msg: "must be completed or failed"}
	}
	if method != "" && method != models.MethodGateway && method != models.MethodManual {
		return nil, domain.ValidationError{Field: "method", Msg: "must be gateway or manual"}
	}
	limit, offset := page.Normalize()
	return s.Store.ListPayments(ctx, models.PaymentFilter{Status: status, Method: method, Limit: limit, Offset: offset})
}

func transactionReused(txnID string) error {
	return domain.ConflictError{
		Resource: "payment", Code: domain.CodeTransactionReused,
		Msg: fmt.Sprintf("transaction %s belongs to another booking", txnID),
	}
}
