package services

import (
	"context"
	"errors"
	"time"

	"bustix/internal/clock"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/metrics"
	"bustix/internal/notify"
	"bustix/internal/repositories"
)

const defaultOpTimeout = 5 * time.Second

// SeatCache is the display seat-map cache. A nil SeatCache disables caching.
// Invalidate bumps a per-trip generation; Set only stores when the generation
// passed in is still current, so a fill that raced with a commit is dropped.
type SeatCache interface {
	Get(ctx context.Context, tripID int64) (models.SeatMap, bool, error)
	Generation(ctx context.Context, tripID int64) (int64, error)
	Set(ctx context.Context, m models.SeatMap, generation int64) (bool, error)
	Invalidate(ctx context.Context, tripID int64) error
}

// Deps is what every booking core service needs. Zero values fall back to the
// wall clock, UTC, a no-op notifier and the default timeout.
type Deps struct {
	Store     repositories.Store
	Clock     clock.Clock
	Notifier  notify.Notifier
	SeatCache SeatCache
	Location  *time.Location
	Timeout   time.Duration
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock.Now()
}

func (d Deps) loc() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

func (d Deps) notifier() notify.Notifier {
	if d.Notifier == nil {
		return notify.Nop{}
	}
	return d.Notifier
}

// begin bounds one operation by the configured timeout and records its latency.
func (d Deps) begin(ctx context.Context, op string) (context.Context, func()) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	return ctx, func() {
		cancel()
		metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// invalidateSeatMap runs after commit; the cache only serves displays so a
// failure is logged and otherwise ignored.
func (d Deps) invalidateSeatMap(ctx context.Context, tripID int64) {
	if d.SeatCache == nil {
		return
	}
	if err := d.SeatCache.Invalidate(context.WithoutCancel(ctx), tripID); err != nil {
		logger.WithContext(ctx).Warn("seat map invalidate failed", "trip_id", tripID, "error", err)
	}
}

// contextErr turns a timed out or cancelled context into a retryable error.
func contextErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.RetryableError{Op: op, Err: err}
	}
	return err
}

func tripNotFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFoundError{Resource: "trip", Code: domain.CodeTripNotFound, Err: err}
	}
	return err
}

func bookingNotFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFoundError{Resource: "booking", Code: domain.CodeBookingNotFound, Err: err}
	}
	return err
}

func cancellationNotFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFoundError{Resource: "cancellation request", Code: domain.CodeCancellationMissing, Err: err}
	}
	return err
}

// logSecurity records a rejected authenticity check.
func logSecurity(ctx context.Context, err error, fields ...any) {
	code := domain.CodeOf(err)
	metrics.SecurityEvents.WithLabelValues(string(code)).Inc()
	logger.Security(ctx).Warn(err.Error(), append([]any{"code", code}, fields...)...)
}

func staffOnly(actor domain.Actor) error {
	if !actor.IsStaff() {
		return domain.ForbiddenError{Msg: "staff role required"}
	}
	return nil
}

func adminOnly(actor domain.Actor) error {
	if !actor.IsAdmin() {
		return domain.ForbiddenError{Msg: "admin role required"}
	}
	return nil
}
