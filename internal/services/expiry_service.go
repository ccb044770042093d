package services

import (
	"context"
	"errors"
	"time"

	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/metrics"
	"bustix/internal/repositories"
)

const defaultExpiryBatch = 100

// ExpiryService fails unpaid bookings that outlived PendingTTL and puts their
// seats back on sale.
type ExpiryService struct {
	Deps
	PendingTTL time.Duration
	BatchSize  int
}

// ExpireStale runs one sweep and returns how many bookings it expired.
func (s ExpiryService) ExpireStale(ctx context.Context) (int, error) {
	if s.PendingTTL <= 0 {
		return 0, nil
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	cutoff := s.now().Add(-s.PendingTTL)
	ids, err := s.Store.StalePendingBookings(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		tripID, ok, err := s.expireOne(ctx, id, cutoff)
		if err != nil {
			logger.WithContext(ctx).Error("expire booking failed", "booking_id", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		expired++
		metrics.BookingsExpired.Inc()
		s.invalidateSeatMap(ctx, tripID)
	}
	if expired > 0 {
		logger.WithContext(ctx).Info("expired unpaid bookings", "count", expired)
	}
	return expired, nil
}

// expireOne re-checks the booking under its lock; a payment that landed since
// the scan wins.
func (s ExpiryService) expireOne(ctx context.Context, id int64, cutoff time.Time) (int64, bool, error) {
	ctx, done := s.begin(ctx, "expire_booking")
	defer done()

	var (
		tripID  int64
		changed bool
	)
	err := s.Store.InTx(ctx, "expire_booking", func(tx repositories.Tx) error {
		b, err := tx.LockBookingByID(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if b.PaymentStatus != models.PaymentPending || b.CreatedAt.After(cutoff) {
			return nil
		}
		if err := b.PaymentStatus.ValidateTransition(models.PaymentFailed); err != nil {
			return err
		}
		if err := tx.UpdatePaymentStatus(ctx, b.ID, models.PaymentFailed); err != nil {
			return err
		}
		if err := tx.AdjustAvailableSeats(ctx, b.TripID, 1); err != nil {
			return err
		}
		tripID, changed = b.TripID, true
		return nil
	})
	return tripID, changed, contextErr("expire_booking", err)
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s ExpiryService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Get().Info("booking expiry job started", "interval", interval, "pending_ttl", s.PendingTTL)
	for {
		if _, err := s.ExpireStale(ctx); err != nil && ctx.Err() == nil {
			logger.Get().Error("booking expiry sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Get().Info("booking expiry job stopped")
			return
		case <-ticker.C:
		}
	}
}
