package services

import (
	"context"
	"errors"

	"bustix/internal/credential"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/metrics"
	"bustix/internal/repositories"
	"bustix/internal/utils"
)

// maxLoggedReference matches verification_logs.booking_reference.
const maxLoggedReference = 64

type VerifyResult struct {
	Outcome models.VerifyOutcome `json:"outcome"`
	Booking *models.Booking      `json:"booking,omitempty"`
	Message string               `json:"message"`
}

var outcomeMessages = map[models.VerifyOutcome]string{
	models.OutcomeValid:     "ticket verified",
	models.OutcomeDuplicate: "ticket has already been used",
	models.OutcomeExpired:   "ticket is for a past journey",
	models.OutcomeInvalid:   "no paid booking matches this ticket",
}

// VerificationService checks boarding credentials at the door. Every scan is
// logged, and a ticket flips to used exactly once.
type VerificationService struct {
	Deps
}

// Verify checks a booking reference.
func (s VerificationService) Verify(ctx context.Context, actor domain.Actor, reference string) (VerifyResult, error) {
	ctx, done := s.begin(ctx, "verify")
	defer done()

	if err := staffOnly(actor); err != nil {
		logSecurity(ctx, err, "op", "verify", "reference", reference)
		return VerifyResult{}, err
	}
	return s.verify(ctx, actor, utils.NormalizeReference(reference))
}

// VerifyCredential checks a scanned credential. Only the reference inside it
// is used; the rest is display data.
func (s VerificationService) VerifyCredential(ctx context.Context, actor domain.Actor, raw string) (VerifyResult, error) {
	ctx, done := s.begin(ctx, "verify")
	defer done()

	if err := staffOnly(actor); err != nil {
		logSecurity(ctx, err, "op", "verify")
		return VerifyResult{}, err
	}
	p, err := credential.Decode(raw)
	if err != nil {
		logger.WithContext(ctx).Info("unreadable credential scanned", "error", err)
		return s.verify(ctx, actor, "")
	}
	return s.verify(ctx, actor, utils.NormalizeReference(p.BookingReference))
}

func (s VerificationService) verify(ctx context.Context, actor domain.Actor, reference string) (VerifyResult, error) {
	var res VerifyResult
	err := s.Store.InTx(ctx, "verify", func(tx repositories.Tx) error {
		entry := models.VerificationLogEntry{
			Reference:  utils.TruncateRunes(reference, maxLoggedReference),
			VerifierID: int64(actor.ID),
			CreatedAt:  s.now(),
		}
		outcome, b, err := s.classify(ctx, tx, reference)
		if err != nil {
			return err
		}
		if b != nil {
			id := b.ID
			entry.BookingID = &id
		}
		if outcome == models.OutcomeValid {
			if err := tx.UpdateVerificationStatus(ctx, b.ID, models.VerificationUsed); err != nil {
				return err
			}
			b.VerificationStatus = models.VerificationUsed
		}
		entry.Outcome = outcome
		if err := tx.InsertVerificationLog(ctx, &entry); err != nil {
			return err
		}
		res = VerifyResult{Outcome: outcome, Booking: b, Message: outcomeMessages[outcome]}
		return nil
	})
	if err != nil {
		err = contextErr("verify", err)
		metrics.Verifications.WithLabelValues(metrics.Result(err)).Inc()
		return VerifyResult{}, err
	}

	metrics.Verifications.WithLabelValues(string(res.Outcome)).Inc()
	logger.WithContext(ctx).Info("ticket scanned", "reference", reference, "outcome", res.Outcome, "verifier_id", actor.ID)
	if res.Outcome == models.OutcomeInvalid {
		res.Booking = nil
	}
	return res, nil
}

// classify decides the outcome under the booking row lock. Order matters:
// invalid, then duplicate, then expired.
func (s VerificationService) classify(ctx context.Context, tx repositories.Tx, reference string) (models.VerifyOutcome, *models.Booking, error) {
	if reference == "" || len(reference) > utils.MaxReferenceLen {
		return models.OutcomeInvalid, nil, nil
	}
	b, err := tx.LockBookingByReference(ctx, reference)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.OutcomeInvalid, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	if b.PaymentStatus != models.PaymentCompleted {
		return models.OutcomeInvalid, &b, nil
	}
	if b.VerificationStatus == models.VerificationUsed {
		return models.OutcomeDuplicate, &b, nil
	}
	trip, err := tx.LockTrip(ctx, b.TripID)
	if err != nil {
		return "", nil, tripNotFound(err)
	}
	if utils.DayBefore(trip.DepartureAt, s.now(), s.loc()) {
		return models.OutcomeExpired, &b, nil
	}
	if !b.VerificationStatus.CanTransition(models.VerificationUsed) {
		return "", nil, domain.ConflictError{Resource: "booking", Code: domain.CodeInvalidTransition, Current: string(b.VerificationStatus)}
	}
	return models.OutcomeValid, &b, nil
}
